package main

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/promptlab/pkg/models"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached context",
	}

	cmd.AddCommand(
		newCacheCreateCmd(configPath),
		newCacheShowCmd(configPath),
		newCacheListCmd(configPath),
		newCacheDeleteCmd(configPath),
		newCacheExtendCmd(configPath),
		newCachePurgeCmd(configPath),
		newCacheStatsCmd(configPath),
	)
	return cmd
}

func newCacheCreateCmd(configPath *string) *cobra.Command {
	var (
		model  string
		files  []string
		uris   []string
		system string
		name   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Cache files or remote URIs for reuse across generations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := buildPayload(files, uris)
			if err != nil {
				return err
			}
			a, err := openOneShot(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if model == "" {
				model = a.cfg.Generation.Model
			}
			if ttl == 0 {
				ttl = a.cfg.Cache.DefaultTTL
			}
			e, err := a.cache.Create(cmd.Context(), models.NewCacheEntry{
				ModelID:           model,
				Payload:           payload,
				SystemInstruction: system,
				TTL:               ttl,
				DisplayName:       name,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.Handle)
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "model the content is cached for (default from config)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "file to cache inline (repeatable)")
	cmd.Flags().StringArrayVar(&uris, "uri", nil, "remote content as MIME=URI (repeatable)")
	cmd.Flags().StringVarP(&system, "system", "s", "", "system instruction stored with the content")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "time to live (default from config)")
	return cmd
}

// buildPayload reads files inline and parses MIME=URI references.
func buildPayload(files, uris []string) ([]models.PayloadRef, error) {
	var payload []models.PayloadRef
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read cache file: %w", err)
		}
		payload = append(payload, models.PayloadRef{MIMEType: detectMIME(f, data), Data: data})
	}
	for _, u := range uris {
		mimeType, uri, ok := strings.Cut(u, "=")
		if !ok || mimeType == "" || uri == "" {
			return nil, fmt.Errorf("invalid --uri %q: want MIME=URI", u)
		}
		payload = append(payload, models.PayloadRef{MIMEType: mimeType, URI: uri})
	}
	return payload, nil
}

func detectMIME(path string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		mediaType, _, err := mime.ParseMediaType(t)
		if err == nil {
			return mediaType
		}
	}
	mediaType, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mediaType
}

func newCacheShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show HANDLE",
		Short: "Show a cache entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openOneShot(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			e, err := a.cache.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Handle:  %s\nName:    %s\nModel:   %s\nCreated: %s\nExpires: %s\n",
				e.Handle, e.DisplayName, e.ModelID, formatTime(e.CreatedAt), formatTime(e.ExpiresAt))
			if e.SystemInstruction != "" {
				fmt.Fprintf(out, "System:  %s\n", e.SystemInstruction)
			}
			w := newTable(out)
			fmt.Fprintln(w, "\nMIME\tSOURCE")
			for _, p := range e.Payload {
				src := p.URI
				if src == "" {
					src = fmt.Sprintf("inline, %d bytes", len(p.Data))
				}
				fmt.Fprintf(w, "%s\t%s\n", p.MIMEType, src)
			}
			return w.Flush()
		},
	}
}

func newCacheListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openOneShot(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			list, err := a.cache.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No cache entries found.")
				return nil
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "HANDLE\tNAME\tMODEL\tPARTS\tEXPIRES")
			for _, e := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					e.Handle, e.DisplayName, e.ModelID, len(e.Payload), formatTime(e.ExpiresAt))
			}
			return w.Flush()
		},
	}
}

func newCacheDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete HANDLE",
		Short: "Delete a cache entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openOneShot(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.cache.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache entry deleted.")
			return nil
		},
	}
}

func newCacheExtendCmd(configPath *string) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "extend HANDLE",
		Short: "Reset a live entry's expiry to now plus --ttl",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openOneShot(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if ttl == 0 {
				ttl = a.cfg.Cache.DefaultTTL
			}
			e, err := a.cache.ExtendTTL(cmd.Context(), args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expires %s.\n", formatTime(e.ExpiresAt))
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "new time to live (default from config)")
	return cmd
}

func newCachePurgeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove expired cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openOneShot(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			n, err := a.cache.Purge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired entries.\n", n)
			return nil
		},
	}
}

func newCacheStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openOneShot(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stats, err := a.cache.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Entries: %d\nActive:  %d\n", stats.Entries, stats.Active)
			return nil
		},
	}
}
