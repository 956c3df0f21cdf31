package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eval-hub/eval-dashboard/internal/app"
	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/pkg/api"
)

func (c *cli) datasetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "datasets",
		Aliases: []string{"dataset"},
		Short:   "Manage datasets",
	}
	cmd.AddCommand(
		c.datasetsListCmd(),
		c.datasetsGetCmd(),
		c.datasetsCreateCmd(),
		c.datasetsUpdateCmd(),
		c.datasetsDeleteCmd(),
		c.datasetsMembershipCmd("add-test-case", "Add a test case to a dataset", true),
		c.datasetsMembershipCmd("remove-test-case", "Remove a test case from a dataset", false),
	)
	return cmd
}

func (c *cli) datasetsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return c.run(cmd, "/datasets", func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				datasets, err := a.Datasets.List(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(datasets))
				for _, ds := range datasets {
					rows = append(rows, []string{ds.ID, ds.Name, fmt.Sprint(ds.IsGlobal), optional(ds.CurrentVersionID), timestamp(ds.UpdatedAt)})
				}
				return p.table(datasets, []string{"ID", "NAME", "GLOBAL", "CURRENT VERSION", "UPDATED"}, rows)
			})
		},
	}
}

func (c *cli) datasetsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <dataset-id>",
		Short: "Show a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return c.run(cmd, "/datasets/"+args[0], func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				ds, err := a.Datasets.GetByID(ctx, args[0])
				if err != nil {
					return err
				}
				return printDataset(p, ds)
			})
		},
	}
}

func (c *cli) datasetsCreateCmd() *cobra.Command {
	var (
		config      api.DatasetConfig
		description string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("description") {
				config.Description = &description
			}
			return c.run(cmd, "/datasets", func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				ds, err := a.Datasets.Create(ctx, &config)
				if err != nil {
					return err
				}
				return printDataset(p, ds)
			})
		},
	}
	cmd.Flags().StringVar(&config.Name, "name", "", "Dataset name")
	cmd.Flags().StringVar(&description, "description", "", "Dataset description")
	cmd.Flags().BoolVar(&config.IsGlobal, "global", false, "Share the dataset with every user")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) datasetsUpdateCmd() *cobra.Command {
	var (
		name, description string
		global            bool
	)
	cmd := &cobra.Command{
		Use:   "update <dataset-id>",
		Short: "Change the name, description or sharing of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			patch := &api.DatasetPatch{}
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("description") {
				patch.Description = nullableText(description)
			}
			if cmd.Flags().Changed("global") {
				patch.IsGlobal = &global
			}
			return c.run(cmd, "/datasets/"+args[0], func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				// updates apply to the cached dataset, load it first
				if _, err := a.Datasets.GetByID(ctx, args[0]); err != nil {
					return err
				}
				ds, err := a.Datasets.Update(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return printDataset(p, ds)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&description, "description", "", "New description, an empty value removes it")
	cmd.Flags().BoolVar(&global, "global", false, "Share the dataset with every user")
	return cmd
}

func (c *cli) datasetsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <dataset-id>",
		Short: "Delete a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, "/datasets/"+args[0], func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				if err := a.Datasets.Delete(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted dataset %s\n", args[0])
				return err
			})
		},
	}
}

func (c *cli) datasetsMembershipCmd(use string, short string, add bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <dataset-id> <test-case-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, "/datasets/"+args[0], func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				change := a.Datasets.RemoveTestCase
				verb := "Removed"
				if add {
					change = a.Datasets.AddTestCase
					verb = "Added"
				}
				if err := change(ctx, args[0], args[1]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s test case %s\n", verb, args[1])
				return err
			})
		},
	}
}

func printDataset(p *printer, ds *api.Dataset) error {
	return p.fields(ds,
		"ID", ds.ID,
		"Name", ds.Name,
		"Description", optional(ds.Description),
		"Global", fmt.Sprint(ds.IsGlobal),
		"Current version", optional(ds.CurrentVersionID),
		"Created", timestamp(ds.CreatedAt),
		"Updated", timestamp(ds.UpdatedAt),
	)
}
