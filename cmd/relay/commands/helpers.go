package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/relaykit-io/relay/internal/constants"
	"github.com/relaykit-io/relay/pkg/relay"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	OutputFormatJSON = "json"
	OutputFormatYAML = "yaml"
)

// Common static errors used throughout the commands package.
var (
	ErrAPIEndpointRequired = errors.New("API endpoint is required (use --api, RELAY_API, or 'relay config set api')")
	ErrInvalidHeaderFormat = errors.New("invalid header format, expected Key=Value")
	ErrInvalidQueryFormat  = errors.New("invalid query format, expected key=value")
	ErrInvalidBodyJSON     = errors.New("request body must be a JSON object")
	ErrUnknownConfigKey    = errors.New("unknown configuration key")
)

// buildClient constructs a relay client from the effective viper settings.
func buildClient() (*relay.Client, error) {
	endpoint := viper.GetString("api")
	if endpoint == "" {
		return nil, ErrAPIEndpointRequired
	}

	config := &relay.Config{
		BaseURL:   endpoint,
		UserAgent: "relay-cli",
		Cache:     cacheConfigFromViper(),
	}

	if viper.GetBool("verbose") {
		config.Debug = true
		config.Logger = relay.NewZerologLogger(
			zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(zerolog.DebugLevel).
				With().Timestamp().Logger(),
		)
	}

	client, err := relay.New(config)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	if token := viper.GetString("token"); token != "" {
		client.AddInterceptor(relay.NewAuthInterceptor(relay.NewStaticTokenManager(token)))
	}

	if viper.GetBool("verbose") {
		client.AddInterceptor(relay.NewLoggingInterceptor(config.Logger))
	}

	return client, nil
}

// cacheConfigFromViper maps the cache settings onto a cache config. A NATS
// cache survives across CLI invocations; memory only lives for one.
func cacheConfigFromViper() *relay.CacheConfig {
	switch viper.GetString("cache_type") {
	case "nats":
		return &relay.CacheConfig{
			Type: relay.CacheTypeNATS,
			NATS: &relay.NATSKVConfig{
				URL:    viper.GetString("nats_url"),
				Bucket: viper.GetString("nats_bucket"),
				TTL:    constants.DefaultCacheTTL,
			},
			TTL: constants.DefaultCacheTTL,
		}
	case "none":
		return nil
	default:
		return relay.DefaultCacheConfig()
	}
}

// parsePairs splits repeated Key=Value flags into a map.
func parsePairs(pairs []string, formatErr error) (map[string]string, error) {
	result := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: %q", formatErr, pair)
		}

		result[key] = value
	}

	return result, nil
}

// renderValue writes value to stdout in the requested output format. The
// table fallback is handled by callers, which know their own columns.
func renderValue(value any, output string) (bool, error) {
	switch output {
	case OutputFormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		return true, encoder.Encode(value)
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		return true, encoder.Encode(value)
	default:
		return false, nil
	}
}
