package commands

import (
	"fmt"
	"net/url"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/relaykit-io/relay/pkg/relay"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
		Long: `Inspect and manage the response cache. With the default in-memory cache
these commands only see the current process; configure a NATS cache
('relay config set cache_type nats') to share entries across invocations.`,
	}

	cmd.AddCommand(newCacheSizeCommand())
	cmd.AddCommand(newCacheClearCommand())
	cmd.AddCommand(newCacheRemoveCommand())

	return cmd
}

func newCacheSizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "size",
		Short: "Show cached payload size",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient()
			if err != nil {
				return err
			}

			size, err := client.CacheSizeBytes(cmd.Context())
			if err != nil {
				return err
			}

			type sizeInfo struct {
				SizeBytes int64 `json:"size_bytes" yaml:"size_bytes"`
			}

			rendered, err := renderValue(sizeInfo{SizeBytes: size}, viper.GetString("output"))
			if rendered || err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Property", "Value")
			_ = table.Append("Size (bytes)", fmt.Sprintf("%d", size))

			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}

func newCacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient()
			if err != nil {
				return err
			}

			err = client.ClearCache(cmd.Context())
			if err != nil {
				return err
			}

			cmd.Println("Cache cleared")

			return nil
		},
	}
}

func newCacheRemoveCommand() *cobra.Command {
	var queryFlags []string

	cmd := &cobra.Command{
		Use:   "remove PATH",
		Short: "Remove one cached response",
		Long:  "Remove the cached response for a path, resolved against the configured API base URL.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient()
			if err != nil {
				return err
			}

			queryPairs, err := parsePairs(queryFlags, ErrInvalidQueryFormat)
			if err != nil {
				return err
			}

			query := url.Values{}
			for key, value := range queryPairs {
				query.Set(key, value)
			}

			req := &relay.Request{Path: args[0], Query: query}

			err = client.RemoveCachedResponse(cmd.Context(), req)
			if err != nil {
				return err
			}

			cmd.Println("Removed", args[0])

			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&queryFlags, "query", "q", nil, "query parameter of the cached request (key=value, repeatable)")

	return cmd
}
