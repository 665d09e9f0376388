package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/pario-ai/promptlab/pkg/budget"
	"github.com/pario-ai/promptlab/pkg/cache"
	cachesqlite "github.com/pario-ai/promptlab/pkg/cache/sqlite"
	"github.com/pario-ai/promptlab/pkg/config"
	"github.com/pario-ai/promptlab/pkg/generate"
	"github.com/pario-ai/promptlab/pkg/logging"
	"github.com/pario-ai/promptlab/pkg/prompts"
	promptsqlite "github.com/pario-ai/promptlab/pkg/prompts/sqlite"
	"github.com/pario-ai/promptlab/pkg/router"
	"github.com/pario-ai/promptlab/pkg/tracker"
)

// app holds the stores opened for one command invocation.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	prompts prompts.Store
	cache   cache.Store
	tracker tracker.Tracker
}

func openApp(configPath string) (*app, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}
	switch cfg.Backend {
	case config.BackendMemory:
		a.prompts = prompts.NewMemory(prompts.WithLogger(log))
		a.cache = cache.NewMemory(cache.WithLogger(log))
	default:
		ps, err := promptsqlite.New(cfg.DBPath, prompts.WithLogger(log))
		if err != nil {
			return nil, err
		}
		a.prompts = ps
		cs, err := cachesqlite.New(cfg.DBPath, cache.WithLogger(log))
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.cache = cs
	}
	log.Debug().Str("backend", cfg.Backend).Str("db_path", cfg.DBPath).Msg("stores opened")
	return a, nil
}

// openOneShot opens stores for a command that exits when done. The memory
// backend would drop its writes on exit, so only chat and mcp accept it.
func openOneShot(configPath string) (*app, error) {
	a, err := openApp(configPath)
	if err != nil {
		return nil, err
	}
	if a.cfg.Backend == config.BackendMemory {
		_ = a.Close()
		return nil, fmt.Errorf("backend %q keeps nothing between commands; use %q, or the chat and mcp commands", config.BackendMemory, config.BackendSQLite)
	}
	return a, nil
}

// openTracker opens usage tracking. Usage always lives in SQLite at db_path.
func (a *app) openTracker() (tracker.Tracker, error) {
	if a.tracker != nil {
		return a.tracker, nil
	}
	tr, err := tracker.New(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.tracker = tr
	return tr, nil
}

// service wires a generation service against the Gemini API.
func (a *app) service(ctx context.Context) (*generate.Service, error) {
	gen, err := generate.NewGemini(ctx, a.cfg.Generation.APIKey)
	if err != nil {
		return nil, err
	}
	tr, err := a.openTracker()
	if err != nil {
		return nil, err
	}
	opts := []generate.Option{generate.WithTracker(tr), generate.WithLogger(a.log)}
	if a.cfg.Budget.Enabled {
		opts = append(opts, generate.WithEnforcer(budget.New(a.cfg.Budget.Policies, tr, nil)))
	}
	return generate.NewService(gen, a.prompts, a.cache, router.New(a.cfg), opts...), nil
}

func (a *app) Close() error {
	var errs []error
	if a.tracker != nil {
		errs = append(errs, a.tracker.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.prompts != nil {
		errs = append(errs, a.prompts.Close())
	}
	return errors.Join(errs...)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02T15:04:05")
}

func readBody(body, file string) (string, error) {
	if file == "" {
		return body, nil
	}
	if body != "" {
		return "", fmt.Errorf("use either --body or --file, not both")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read body file: %w", err)
	}
	return string(data), nil
}
