package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/relaykit-io/relay/pkg/relay"
)

// NewSendCommand creates the send command.
func NewSendCommand() *cobra.Command {
	var (
		headerFlags []string
		queryFlags  []string
		dataFlag    string
		fromCache   bool
	)

	cmd := &cobra.Command{
		Use:   "send METHOD PATH",
		Short: "Send a request through the pipeline",
		Long: `Send a single request through the full interceptor pipeline and print
the classified result. The path is resolved against the configured API
base URL.`,
		Example: `  relay send GET /v1/widgets
  relay send GET /v1/widgets --query page=2 --from-cache
  relay send POST /v1/widgets --data '{"name":"gear"}' --header X-Tenant=acme`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient()
			if err != nil {
				return err
			}

			req, err := buildRequest(args[0], args[1], headerFlags, queryFlags, dataFlag)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			if fromCache {
				cached, err := client.LookupCachedResponse(ctx, req)
				if err == nil {
					return printResponse(cached, true)
				}

				if !errors.Is(err, relay.ErrCacheKeyNotFound) && !errors.Is(err, relay.ErrCacheEntryExpired) {
					return fmt.Errorf("cache lookup: %w", err)
				}
			}

			resp, err := client.Do(ctx, req)
			if err != nil {
				// A classified error still carries the response; show it before
				// failing so the caller sees what the server said.
				if resp != nil {
					_ = printResponse(resp, false)
				}

				return err
			}

			return printResponse(resp, false)
		},
	}

	cmd.Flags().StringSliceVarP(&headerFlags, "header", "H", nil, "request header (Key=Value, repeatable)")
	cmd.Flags().StringSliceVarP(&queryFlags, "query", "q", nil, "query parameter (key=value, repeatable)")
	cmd.Flags().StringVarP(&dataFlag, "data", "d", "", "JSON object to send as the request body")
	cmd.Flags().BoolVar(&fromCache, "from-cache", false, "serve from the response cache when possible")

	return cmd
}

func buildRequest(method, path string, headerFlags, queryFlags []string, data string) (*relay.Request, error) {
	headers, err := parsePairs(headerFlags, ErrInvalidHeaderFormat)
	if err != nil {
		return nil, err
	}

	queryPairs, err := parsePairs(queryFlags, ErrInvalidQueryFormat)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	for key, value := range queryPairs {
		query.Set(key, value)
	}

	var params map[string]any
	if data != "" {
		err = json.Unmarshal([]byte(data), &params)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBodyJSON, err)
		}
	}

	return &relay.Request{
		Method:  strings.ToUpper(method),
		Path:    path,
		Query:   query,
		Headers: headers,
		Params:  params,
	}, nil
}

func printResponse(resp *relay.Response, cached bool) error {
	type responseView struct {
		Status  int               `json:"status"           yaml:"status"`
		Cached  bool              `json:"cached,omitempty" yaml:"cached,omitempty"`
		Headers map[string]string `json:"headers"          yaml:"headers"`
		Body    any               `json:"body"             yaml:"body"`
	}

	view := responseView{
		Status:  resp.StatusCode,
		Cached:  cached,
		Headers: make(map[string]string, len(resp.Headers)),
	}

	for key := range resp.Headers {
		view.Headers[key] = resp.Headers.Get(key)
	}

	// Keep JSON bodies structured in json/yaml output instead of embedding
	// them as an escaped string.
	var decoded any
	if json.Unmarshal(resp.Body, &decoded) == nil {
		view.Body = decoded
	} else {
		view.Body = string(resp.Body)
	}

	rendered, err := renderValue(view, viper.GetString("output"))
	if rendered || err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Property", "Value")
	_ = table.Append("Status", fmt.Sprintf("%d", resp.StatusCode))

	if cached {
		_ = table.Append("Cached", "yes")
	}

	if contentType := resp.Headers.Get("Content-Type"); contentType != "" {
		_ = table.Append("Content-Type", contentType)
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	if len(resp.Body) > 0 {
		fmt.Println(string(resp.Body))
	}

	return nil
}
