package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/fuzzbrake/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage fuzzbrake configuration",
		Long: `View and initialize fuzzbrake configuration settings.

Configuration is read from <data-dir>/config.yaml (default ~/.fuzzbrake)
and FUZZBRAKE_* environment variables override file values.

Examples:
  fuzzbrake config show                   # Show the effective settings
  fuzzbrake config get server.addr        # Get one setting
  fuzzbrake config init                   # Write a config file with defaults`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigGetCmd(),
		newConfigInitCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if env.jsonOut {
				return writeJSON(cmd.OutOrStdout(), env.cfg)
			}
			data, err := yaml.Marshal(env.cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value by dotted key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			key := args[0]

			value, found, err := getConfigValue(env.cfg, key)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if env.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file populated with defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			if dataDir == "" {
				dataDir = config.DefaultDataDir()
			}
			force, _ := cmd.Flags().GetBool("force")
			path := filepath.Join(dataDir, "config.yaml")

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(dataDir, 0700); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}

			data, err := yaml.Marshal(config.Default())
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			if err := os.WriteFile(path, data, 0600); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing config file")
	return cmd
}

// getConfigValue walks a dotted key (e.g. "simulation.max_ticks") through
// the config's YAML form.
func getConfigValue(cfg *config.FuzzbrakeConfig, key string) (any, bool, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, false, fmt.Errorf("marshal config: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, false, fmt.Errorf("unmarshal config: %w", err)
	}

	var cur any = tree
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		if cur, ok = m[part]; !ok {
			return nil, false, nil
		}
	}
	return cur, true, nil
}
