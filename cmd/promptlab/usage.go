package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUsageCmd(configPath *string) *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show token usage statistics",
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
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if recent > 0 {
				recs, err := tr.Recent(ctx, recent)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Fprintln(out, "No usage data found.")
					return nil
				}
				w := newTable(out)
				fmt.Fprintln(w, "TIME\tMODEL\tTEMPLATE\tVERSION\tCACHE\tPROMPT\tCACHED\tCOMPLETION\tTOTAL")
				for _, r := range recs {
					version := "-"
					if r.VersionID > 0 {
						version = fmt.Sprint(r.VersionID)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
						formatTime(r.CreatedAt), r.Model, dash(r.TemplateID), version, dash(r.CacheHandle),
						r.PromptTokens, r.CachedTokens, r.CompletionTokens, r.TotalTokens)
				}
				return w.Flush()
			}

			summaries, err := tr.Summary(ctx)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No usage data found.")
				return nil
			}
			w := newTable(out)
			fmt.Fprintln(w, "MODEL\tREQUESTS\tPROMPT\tCACHED\tCOMPLETION\tTOTAL")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n",
					s.Model, s.RequestCount, s.TotalPrompt, s.TotalCached, s.TotalCompletion, s.TotalTokens)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 0, "list the N most recent calls instead of the summary")
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
