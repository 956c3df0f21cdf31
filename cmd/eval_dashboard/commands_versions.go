package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/eval-hub/eval-dashboard/internal/app"
	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/pkg/api"
)

func (c *cli) versionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "versions",
		Aliases: []string{"version"},
		Short:   "Snapshot and compare the test cases of datasets",
	}
	cmd.AddCommand(c.versionsListCmd(), c.versionsGetCmd(), c.versionsCreateCmd(), c.versionsCompareCmd())
	return cmd
}

func (c *cli) versionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <dataset-id>",
		Short: "List the versions of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return c.run(cmd, "/datasets/"+args[0]+"/versions", func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				versions, err := a.DatasetVersions.List(ctx, args[0])
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(versions))
				for _, v := range versions {
					rows = append(rows, []string{v.ID, strconv.Itoa(v.VersionNumber), strconv.Itoa(len(v.TestCaseIDs)), optional(v.ChangeSummary), timestamp(v.CreatedAt)})
				}
				return p.table(versions, []string{"ID", "VERSION", "TEST CASES", "SUMMARY", "CREATED"}, rows)
			})
		},
	}
}

func (c *cli) versionsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <version-id>",
		Short: "Show a dataset version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return c.run(cmd, "/versions/"+args[0], func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				v, err := a.DatasetVersions.GetByID(ctx, args[0])
				if err != nil {
					return err
				}
				return printVersion(p, v)
			})
		},
	}
}

func (c *cli) versionsCreateCmd() *cobra.Command {
	var (
		testCaseIDs []string
		summary     string
	)
	cmd := &cobra.Command{
		Use:   "create <dataset-id>",
		Short: "Create a version of a dataset and make it the current one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			config := &api.DatasetVersionConfig{TestCaseIDs: testCaseIDs}
			if summary != "" {
				config.ChangeSummary = &summary
			}
			return c.run(cmd, "/datasets/"+args[0]+"/versions", func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				v, err := a.DatasetVersions.Create(ctx, args[0], config)
				if err != nil {
					return err
				}
				return printVersion(p, v)
			})
		},
	}
	cmd.Flags().StringSliceVar(&testCaseIDs, "test-case", nil, "Test case IDs of the version (repeat or separate with commas)")
	cmd.Flags().StringVar(&summary, "summary", "", "What changed since the previous version")
	_ = cmd.MarkFlagRequired("test-case")
	return cmd
}

func (c *cli) versionsCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <source-version-id> <target-version-id>",
		Short: "Show the test cases added, removed and kept between two versions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return c.run(cmd, "/versions/compare", func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				comparison, err := a.DatasetVersions.Compare(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return p.fields(comparison,
					"Source", fmt.Sprintf("%s (v%d)", comparison.Source.ID, comparison.Source.VersionNumber),
					"Target", fmt.Sprintf("%s (v%d)", comparison.Target.ID, comparison.Target.VersionNumber),
					"Added", list(comparison.Added),
					"Removed", list(comparison.Removed),
					"Unchanged", list(comparison.Unchanged),
				)
			})
		},
	}
}

func printVersion(p *printer, v *api.DatasetVersion) error {
	return p.fields(v,
		"ID", v.ID,
		"Dataset", v.DatasetID,
		"Version", strconv.Itoa(v.VersionNumber),
		"Test cases", list(v.TestCaseIDs),
		"Summary", optional(v.ChangeSummary),
		"Created", timestamp(v.CreatedAt),
	)
}
