package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/fuzzbrake/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run fuzzbrake as an MCP server over stdio",
		Long: `Expose the fuzzy brake controller and simulation as MCP tools.

Tools: fuzzbrake_infer, fuzzbrake_state, fuzzbrake_set_inputs,
fuzzbrake_update_membership, fuzzbrake_rules, fuzzbrake_simulation,
fuzzbrake_curves. Resources: fuzzbrake://state, fuzzbrake://rules.

Stdout carries the protocol; logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			rs, err := env.openRunStore()
			if err != nil {
				return err
			}
			defer rs.Close()

			auditDir := ""
			if env.cfg.MCP.Audit {
				auditDir = env.dataDir
			}

			srv, err := mcp.NewServer(&mcp.Config{
				Name:       "fuzzbrake",
				Version:    version,
				Simulation: env.newSimulation(),
				Runs:       rs,
				AuditDir:   auditDir,
				Logger:     env.logger,
			})
			if err != nil {
				return fmt.Errorf("create MCP server: %w", err)
			}
			defer srv.Close()

			env.logger.Info("mcp server starting", "data_dir", env.dataDir, "audit", env.cfg.MCP.Audit)
			return srv.Run(cmd.Context())
		},
	}
	return cmd
}
