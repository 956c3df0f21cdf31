package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/eval-hub/eval-dashboard/internal/app"
	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/internal/managers"
	"github.com/eval-hub/eval-dashboard/pkg/api"
)

func (c *cli) experimentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "experiments",
		Aliases: []string{"experiment"},
		Short:   "Manage experiments",
	}
	cmd.AddCommand(c.experimentsListCmd(), c.experimentsGetCmd(), c.experimentsCreateCmd(), c.experimentsUpdateCmd(), c.experimentsDeleteCmd())
	return cmd
}

func (c *cli) experimentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List experiments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return c.run(cmd, "/experiments", func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				experiments, err := a.Experiments.List(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(experiments))
				for _, e := range experiments {
					rows = append(rows, []string{e.ID, e.Name, optional(e.Description), timestamp(e.UpdatedAt)})
				}
				return p.table(experiments, []string{"ID", "NAME", "DESCRIPTION", "UPDATED"}, rows)
			})
		},
	}
}

func (c *cli) experimentsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <experiment-id>",
		Short: "Show an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return c.run(cmd, "/experiments/"+args[0], func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				e, err := a.Experiments.GetByID(ctx, args[0])
				if err != nil {
					return err
				}
				return printExperiment(p, e)
			})
		},
	}
}

func (c *cli) experimentsCreateCmd() *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an experiment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			config := &api.ExperimentConfig{Name: name}
			if description != "" {
				config.Description = &description
			}
			return c.run(cmd, "/experiments", func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				e, err := a.Experiments.Create(ctx, config)
				if err != nil {
					return err
				}
				return printExperiment(p, e)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Experiment name")
	cmd.Flags().StringVar(&description, "description", "", "Experiment description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) experimentsUpdateCmd() *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "update <experiment-id>",
		Short: "Change the name or description of an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			patch := &api.ExperimentPatch{}
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("description") {
				patch.Description = nullableText(description)
			}
			return c.run(cmd, "/experiments/"+args[0], func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				if _, err := a.Experiments.GetByID(ctx, args[0]); err != nil {
					return err
				}
				e, err := a.Experiments.Update(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return printExperiment(p, e)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&description, "description", "", "New description, an empty value removes it")
	return cmd
}

func (c *cli) experimentsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <experiment-id>",
		Short: "Delete an experiment and its runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, "/experiments/"+args[0], func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				if err := a.Experiments.Delete(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted experiment %s\n", args[0])
				return err
			})
		},
	}
}

func (c *cli) runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "runs",
		Aliases: []string{"run"},
		Short:   "Inspect and delete evaluation runs",
	}
	cmd.AddCommand(c.runsListCmd(), c.runsGetCmd(), c.runsDeleteCmd())
	return cmd
}

func (c *cli) runsListCmd() *cobra.Command {
	var experimentID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, optionally of one experiment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return c.run(cmd, "/runs", func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				runs, err := a.Runs.ListByExperiment(ctx, experimentID)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					rows = append(rows, []string{r.ID, r.ExperimentID, r.Status.String(), optional(r.DatasetVersionID), r.Duration().String(), timestamp(r.CreatedAt)})
				}
				return p.table(runs, []string{"ID", "EXPERIMENT", "STATUS", "DATASET VERSION", "DURATION", "CREATED"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&experimentID, "experiment", "", "Only list the runs of this experiment")
	return cmd
}

func (c *cli) runsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <run-id>",
		Short: "Show a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return c.run(cmd, "/runs/"+args[0], func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				r, err := a.Runs.GetByID(ctx, args[0])
				if err != nil {
					return err
				}
				experiment := r.ExperimentID
				if _, err := a.Experiments.GetByID(ctx, r.ExperimentID); err != nil {
					// a run may outlive its experiment
					experiment += " (unavailable)"
				}
				return p.fields(r,
					"ID", r.ID,
					"Experiment", experiment,
					"Status", r.Status.String(),
					"Dataset version", optional(r.DatasetVersionID),
					"Git commit", optional(r.GitCommit),
					"Duration", r.Duration().String(),
					"Created", timestamp(r.CreatedAt),
				)
			})
		},
	}
}

func (c *cli) runsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run and its results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, "/runs/"+args[0], func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				if err := a.Runs.Delete(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
				return err
			})
		},
	}
}

func (c *cli) resultsCmd() *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "results <run-id>",
		Short: "List the test results of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return c.run(cmd, "/runs/"+args[0]+"/results", func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				results, err := a.TestResults.ListByRun(ctx, args[0])
				if err != nil {
					return err
				}
				if summary {
					metrics := managers.SummarizeMetrics(results)
					rows := make([][]string, 0, len(metrics)+1)
					for _, m := range metrics {
						rows = append(rows, []string{m.Name, strconv.Itoa(m.Count), formatRatio(m.AverageScore), formatRatio(m.PassRate), strconv.FormatFloat(m.TotalCost, 'f', 4, 64)})
					}
					if len(results) > 0 {
						rows = append(rows, []string{"(all test cases)", strconv.Itoa(len(results)), "-", formatRatio(managers.PassRate(results)), "-"})
					}
					return p.table(metrics, []string{"METRIC", "COUNT", "AVG SCORE", "PASS RATE", "COST"}, rows)
				}
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{r.ID, r.TestCaseID, fmt.Sprint(r.Success), strconv.Itoa(len(r.MetricsData))})
				}
				return p.table(results, []string{"ID", "TEST CASE", "SUCCESS", "METRICS"}, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "Aggregate the metrics instead of listing the results")
	return cmd
}

func printExperiment(p *printer, e *api.Experiment) error {
	return p.fields(e,
		"ID", e.ID,
		"Name", e.Name,
		"Description", optional(e.Description),
		"Created", timestamp(e.CreatedAt),
		"Updated", timestamp(e.UpdatedAt),
	)
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
