package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pario-ai/promptlab/pkg/generate"
)

// callFlags select what a generation is built from.
type callFlags struct {
	template string
	bindings map[string]string
	cache    string
	model    string
}

func (f *callFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.template, "template", "t", "", "template id to assemble")
	cmd.Flags().StringToStringVar(&f.bindings, "set", nil, "placeholder binding name=value (repeatable)")
	cmd.Flags().StringVar(&f.cache, "cache", "", "cache handle whose content is sent with the prompt")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "model id or alias")
}

func (f *callFlags) call() generate.Call {
	return generate.Call{
		TemplateID:  f.template,
		Bindings:    f.bindings,
		CacheHandle: f.cache,
		Model:       f.model,
	}
}

func newGenerateCmd(configPath *string) *cobra.Command {
	var (
		flags     callFlags
		showUsage bool
	)
	cmd := &cobra.Command{
		Use:   "generate [TEXT...]",
		Short: "Run a single generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openOneShot(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}

			call := flags.call()
			call.Text = strings.Join(args, " ")
			res, err := svc.Run(ctx, call)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Text)
			if showUsage {
				u := res.Usage
				fmt.Fprintf(out, "\nmodel=%s prompt=%d cached=%d completion=%d total=%d\n",
					res.Model, u.PromptTokens, u.CachedTokens, u.CompletionTokens, u.TotalTokens)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&showUsage, "usage", false, "print token usage after the reply")
	return cmd
}
