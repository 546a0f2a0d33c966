package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/relaykit-io/relay/internal/constants"
)

// Config represents the persisted CLI configuration.
type Config struct {
	API        string `json:"api,omitempty"         yaml:"api,omitempty"`
	Token      string `json:"token,omitempty"       yaml:"token,omitempty"`
	Output     string `json:"output,omitempty"      yaml:"output,omitempty"`
	CacheType  string `json:"cache_type,omitempty"  yaml:"cache_type,omitempty"`
	NATSURL    string `json:"nats_url,omitempty"    yaml:"nats_url,omitempty"`
	NATSBucket string `json:"nats_bucket,omitempty" yaml:"nats_bucket,omitempty"`
}

// configKeys maps settable key names to struct field accessors.
func configKeys(config *Config) map[string]*string {
	return map[string]*string{
		"api":         &config.API,
		"token":       &config.Token,
		"output":      &config.Output,
		"cache_type":  &config.CacheType,
		"nats_url":    &config.NATSURL,
		"nats_bucket": &config.NATSBucket,
	}
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Manage relay CLI configuration persisted in the config file",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())
	cmd.AddCommand(newConfigSetTokenCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			shown := *config
			if shown.Token != "" {
				shown.Token = "***"
			}

			rendered, err := renderValue(shown, viper.GetString("output"))
			if rendered || err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Key", "Value")

			for key, field := range configKeys(&shown) {
				if *field != "" {
					_ = table.Append(key, *field)
				}
			}

			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			field, ok := configKeys(config)[args[0]]
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnknownConfigKey, args[0])
			}

			*field = args[1]

			err := saveConfig(config)
			if err != nil {
				return err
			}

			cmd.Printf("Set %s\n", args[0])

			return nil
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Remove a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			field, ok := configKeys(config)[args[0]]
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnknownConfigKey, args[0])
			}

			*field = ""

			err := saveConfig(config)
			if err != nil {
				return err
			}

			cmd.Printf("Unset %s\n", args[0])

			return nil
		},
	}
}

func newConfigSetTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-token",
		Short: "Set the bearer token without echoing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(os.Stderr, "Token: ")

			tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(os.Stderr)

			if err != nil {
				return fmt.Errorf("reading token: %w", err)
			}

			config := loadConfig()
			config.Token = string(tokenBytes)

			err = saveConfig(config)
			if err != nil {
				return err
			}

			cmd.Println("Token saved")

			return nil
		},
	}
}

func loadConfig() *Config {
	return &Config{
		API:        viper.GetString("api"),
		Token:      viper.GetString("token"),
		Output:     viper.GetString("output"),
		CacheType:  viper.GetString("cache_type"),
		NATSURL:    viper.GetString("nats_url"),
		NATSBucket: viper.GetString("nats_bucket"),
	}
}

func saveConfig(config *Config) error {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}

		configDir := filepath.Join(home, ".relay")

		err = os.MkdirAll(configDir, constants.ConfigDirPerm)
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}

		configFile = filepath.Join(configDir, "config.yml")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
