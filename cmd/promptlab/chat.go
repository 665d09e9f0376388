package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pario-ai/promptlab/pkg/cache"
	"github.com/pario-ai/promptlab/pkg/chat"
)

func newChatCmd(configPath *string) *cobra.Command {
	var flags callFlags
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: "Start an interactive conversation. The template, if given, opens the first turn.\n" +
			"Commands: /history, /reset, /exit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			if a.cfg.Cache.PurgeInterval > 0 {
				j := cache.StartJanitor(a.cache, a.cfg.Cache.PurgeInterval, a.log)
				defer j.Close()
			}

			session := chat.NewSession(svc, flags.call())
			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case "/exit", "/quit":
					return nil
				case "/reset":
					session.Reset()
					fmt.Fprintln(out, "Conversation cleared.")
					continue
				case "/history":
					for _, m := range session.History() {
						fmt.Fprintf(out, "[%s] %s\n", m.Role, m.Content)
					}
					continue
				}

				reply, err := session.Send(ctx, line)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					a.log.Error().Err(err).Msg("chat turn failed")
					continue
				}
				fmt.Fprintln(out, reply)
			}
		},
	}
	flags.register(cmd)
	return cmd
}
