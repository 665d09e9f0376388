package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pario-ai/promptlab/pkg/budget"
	"github.com/pario-ai/promptlab/pkg/cache"
	"github.com/pario-ai/promptlab/pkg/mcp"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve templates, cache and usage to MCP clients over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			tr, err := a.openTracker()
			if err != nil {
				return err
			}
			var enforcer *budget.Enforcer
			if a.cfg.Budget.Enabled {
				enforcer = budget.New(a.cfg.Budget.Policies, tr, nil)
			}
			if a.cfg.Cache.PurgeInterval > 0 {
				j := cache.StartJanitor(a.cache, a.cfg.Cache.PurgeInterval, a.log)
				defer j.Close()
			}

			srv := mcp.New(a.prompts, a.cache, tr, enforcer, a.log, version)
			a.log.Info().Msg("mcp server listening on stdio")
			return srv.Run(cmd.Context(), os.Stdin, os.Stdout)
		},
	}
}
