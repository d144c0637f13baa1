// cmd/tools/registry-updater/main.go
package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"carehub/pkg/registry"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var path string

	root := &cobra.Command{
		Use:           "registry-updater",
		Short:         "Maintain the activity registry served by the worker manager",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&path, "path", "configs/activity-registry.json", "Path to registry file")

	root.AddCommand(
		newAddCmd(&path),
		newUpdateCmd(&path),
		newValidateCmd(&path),
		newListCmd(&path),
	)
	return root
}

func newAddCmd(path *string) *cobra.Command {
	a := registry.Activity{
		InputSchema:  map[string]interface{}{},
		OutputSchema: map[string]interface{}{},
		ErrorCodes:   []string{},
	}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new activity",
		Example: `  registry-updater add --id check-coverage --display-name "Check Coverage" \
    --description "Resolves a member's plan eligibility" --category claims --task-type check-coverage`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.TaskType == "" {
				a.TaskType = a.ID
			}
			if a.Workflows == nil {
				a.Workflows = []string{}
			}
			if a.Tags == nil {
				a.Tags = []string{}
			}
			if !registry.IsKnownStatus(a.ImplementationStatus) {
				return fmt.Errorf("unknown status %q", a.ImplementationStatus)
			}

			reg, err := registry.LoadOrNew(*path)
			if err != nil {
				return err
			}
			if err := reg.Add(a); err != nil {
				return err
			}
			if err := reg.Save(*path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added activity: %s\n", a.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&a.ID, "id", "", "Activity ID (e.g. validate-claim)")
	f.StringVar(&a.DisplayName, "display-name", "", "Display name")
	f.StringVar(&a.Description, "description", "", "Description")
	f.StringVar(&a.Category, "category", "", "Category (e.g. claims)")
	f.StringVar(&a.TaskType, "task-type", "", "Job type, defaults to the id")
	f.StringVar(&a.Version, "version", "1.0.0", "Version")
	f.StringVar(&a.ImplementationStatus, "status", registry.StatusPlanned, "Implementation status (planned, in-progress, completed, verified)")
	f.StringVar(&a.Timeout, "timeout", "10s", "Job timeout")
	f.IntVar(&a.Retries, "retries", 3, "Job retries")
	f.StringSliceVar(&a.Workflows, "workflow", nil, "Workflow using the activity (repeatable)")
	f.StringSliceVar(&a.Tags, "tag", nil, "Tag (repeatable)")
	for _, name := range []string{"id", "display-name", "description", "category"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newUpdateCmd(path *string) *cobra.Command {
	var id, field, value string

	cmd := &cobra.Command{
		Use:     "update",
		Short:   "Update one field of an existing activity",
		Example: "  registry-updater update --id check-coverage --field status --value completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(*path)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			if err := reg.SetField(id, field, value); err != nil {
				return err
			}
			if err := reg.Save(*path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated activity %s, field %s to %s\n", id, field, value)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&id, "id", "", "Activity ID to update")
	f.StringVar(&field, "field", "", "Field to update (status, version, displayName, description, category, taskType, timeout, retries)")
	f.StringVar(&value, "value", "", "New value for the field")
	for _, name := range []string{"id", "field", "value"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newValidateCmd(path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the registry file",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(*path)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			if err := reg.Validate(); err != nil {
				return fmt.Errorf("registry validation failed:\n%w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d activities.\n", len(reg.Activities))
			return nil
		},
	}
}

func newListCmd(path *string) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(*path)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			return printActivities(cmd.OutOrStdout(), reg, category)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only list this category")
	return cmd
}

func printActivities(out io.Writer, reg *registry.ActivityRegistry, category string) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tTASK TYPE\tSTATUS\tVERSION")
	for _, a := range reg.Activities {
		if category != "" && a.Category != category {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Category, a.TaskType, a.ImplementationStatus, a.Version)
	}
	return w.Flush()
}
