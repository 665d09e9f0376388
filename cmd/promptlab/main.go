package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "promptlab",
		Short:         "promptlab - versioned prompt templates and cached context for Gemini",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "promptlab.yaml", "path to config file")

	root.AddCommand(
		newPromptCmd(&configPath),
		newCacheCmd(&configPath),
		newGenerateCmd(&configPath),
		newChatCmd(&configPath),
		newUsageCmd(&configPath),
		newBudgetCmd(&configPath),
		newMCPCmd(&configPath),
	)
	return root
}
