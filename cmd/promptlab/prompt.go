package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pario-ai/promptlab/pkg/models"
	"github.com/pario-ai/promptlab/pkg/prompts"
)

func newPromptCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Manage versioned prompt templates",
	}

	cmd.AddCommand(
		newPromptCreateCmd(configPath),
		newPromptVersionCmd(configPath),
		newPromptShowCmd(configPath),
		newPromptListCmd(configPath),
		newPromptVersionsCmd(configPath),
		newPromptRestoreCmd(configPath),
		newPromptRenameCmd(configPath),
		newPromptDeleteCmd(configPath),
		newPromptAssembleCmd(configPath),
	)
	return cmd
}

// snapshotFlags are shared by create and version.
type snapshotFlags struct {
	body   string
	file   string
	model  string
	system string
}

func (f *snapshotFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.body, "body", "b", "", "template body with {placeholders}")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read the body from a file")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "model id for this version")
	cmd.Flags().StringVarP(&f.system, "system", "s", "", "system instruction for this version")
}

func (f *snapshotFlags) snapshot() (models.PromptSnapshot, error) {
	body, err := readBody(f.body, f.file)
	if err != nil {
		return models.PromptSnapshot{}, err
	}
	return models.PromptSnapshot{Body: body, ModelID: f.model, SystemInstruction: f.system}, nil
}

func newPromptCreateCmd(configPath *string) *cobra.Command {
	var flags snapshotFlags
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := flags.snapshot()
			if err != nil {
				return err
			}
			a, err := openOneShot(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			t, err := a.prompts.Create(cmd.Context(), args[0], snap)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.ID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newPromptVersionCmd(configPath *string) *cobra.Command {
	var flags snapshotFlags
	cmd := &cobra.Command{
		Use:   "version ID",
		Short: "Append a new version to a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := flags.snapshot()
			if err != nil {
				return err
			}
			a, err := openOneShot(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			v, err := a.prompts.CreateVersion(cmd.Context(), args[0], snap)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created version %d.\n", v.VersionID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newPromptShowCmd(configPath *string) *cobra.Command {
	var versionID int
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a template or one of its versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openOneShot(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := cmd.Context()
			t, err := a.prompts.Get(ctx, args[0])
			if err != nil {
				return err
			}
			v := t.Latest()
			if versionID > 0 {
				pv, err := a.prompts.GetVersion(ctx, args[0], versionID)
				if err != nil {
					return err
				}
				v = *pv
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:      %s\nName:    %s\nVersion: %d of %d\nCreated: %s\n",
				t.ID, t.Name, v.VersionID, t.Latest().VersionID, formatTime(v.CreatedAt))
			if v.Snapshot.ModelID != "" {
				fmt.Fprintf(out, "Model:   %s\n", v.Snapshot.ModelID)
			}
			if v.Snapshot.SystemInstruction != "" {
				fmt.Fprintf(out, "System:  %s\n", v.Snapshot.SystemInstruction)
			}
			fmt.Fprintf(out, "\n%s\n", v.Snapshot.Body)
			return nil
		},
	}
	cmd.Flags().IntVar(&versionID, "version", 0, "show this version instead of the latest")
	return cmd
}

func newPromptListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openOneShot(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			list, err := a.prompts.ListTemplates(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No templates found.")
				return nil
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tNAME")
			for _, t := range list {
				fmt.Fprintf(w, "%s\t%s\n", t.ID, t.Name)
			}
			return w.Flush()
		},
	}
}

func newPromptVersionsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "versions ID",
		Short: "List a template's versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openOneShot(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			list, err := a.prompts.ListVersions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "VERSION\tCREATED")
			for _, v := range list {
				fmt.Fprintf(w, "%d\t%s\n", v.VersionID, formatTime(v.CreatedAt))
			}
			return w.Flush()
		},
	}
}

func newPromptRestoreCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "restore ID VERSION",
		Short: "Append a copy of an older version as the new latest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			versionID, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[1], err)
			}
			a, err := openOneShot(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			v, err := a.prompts.RestoreVersion(cmd.Context(), args[0], versionID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored version %d as version %d.\n", versionID, v.VersionID)
			return nil
		},
	}
}

func newPromptRenameCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a template",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openOneShot(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			return a.prompts.Rename(cmd.Context(), args[0], args[1])
		},
	}
}

func newPromptDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a template and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openOneShot(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.prompts.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Template deleted.")
			return nil
		},
	}
}

func newPromptAssembleCmd(configPath *string) *cobra.Command {
	var bindings map[string]string
	cmd := &cobra.Command{
		Use:   "assemble ID",
		Short: "Fill a template's placeholders and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openOneShot(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			t, err := a.prompts.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			text, err := prompts.Assemble(t, bindings)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringToStringVar(&bindings, "set", nil, "placeholder binding name=value (repeatable)")
	return cmd
}
