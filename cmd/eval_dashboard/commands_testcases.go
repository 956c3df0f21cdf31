package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eval-hub/eval-dashboard/internal/app"
	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/pkg/api"
)

func (c *cli) testCasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "testcases",
		Aliases: []string{"testcase", "test-cases"},
		Short:   "Manage test cases",
	}
	cmd.AddCommand(c.testCasesListCmd(), c.testCasesGetCmd(), c.testCasesCreateCmd(), c.testCasesUpdateCmd(), c.testCasesDeleteCmd())
	return cmd
}

func (c *cli) testCasesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List test cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return c.run(cmd, "/test-cases", func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				testCases, err := a.TestCases.List(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(testCases))
				for _, tc := range testCases {
					rows = append(rows, []string{tc.ID, tc.Name, string(tc.Type), fmt.Sprint(tc.IsGlobal), timestamp(tc.UpdatedAt)})
				}
				return p.table(testCases, []string{"ID", "NAME", "TYPE", "GLOBAL", "UPDATED"}, rows)
			})
		},
	}
}

func (c *cli) testCasesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <test-case-id>",
		Short: "Show a test case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return c.run(cmd, "/test-cases/"+args[0], func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				tc, err := a.TestCases.GetByID(ctx, args[0])
				if err != nil {
					return err
				}
				return printTestCase(p, tc)
			})
		},
	}
}

// testCaseFlags are the content flags shared by create and update.
type testCaseFlags struct {
	name           string
	input          string
	images         []string
	expectedOutput string
	context        []string
}

func (f *testCaseFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Test case name")
	cmd.Flags().StringVar(&f.input, "input", "", "Input text")
	cmd.Flags().StringSliceVar(&f.images, "image", nil, "Image URL appended to the input, makes the input multimodal")
	cmd.Flags().StringVar(&f.expectedOutput, "expected-output", "", "Expected output")
	cmd.Flags().StringSliceVar(&f.context, "context", nil, "Context passages")
}

func (f *testCaseFlags) inputValue() api.TestCaseInput {
	if len(f.images) == 0 {
		return api.TestCaseInput{Text: f.input}
	}
	items := make([]api.InputItem, 0, len(f.images)+1)
	if f.input != "" {
		items = append(items, api.InputItem{Text: f.input})
	}
	for _, url := range f.images {
		items = append(items, api.InputItem{ImageURL: url})
	}
	return api.TestCaseInput{Items: items}
}

func (c *cli) testCasesCreateCmd() *cobra.Command {
	var (
		flags    testCaseFlags
		caseType string
		global   bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a test case",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			config := &api.TestCaseConfig{
				Name:     flags.name,
				Type:     api.TestCaseType(caseType),
				Input:    flags.inputValue(),
				Context:  flags.context,
				IsGlobal: global,
			}
			if len(flags.images) > 0 && !cmd.Flags().Changed("type") {
				config.Type = api.TestCaseTypeMultimodal
			}
			if flags.expectedOutput != "" {
				config.ExpectedOutput = &flags.expectedOutput
			}
			return c.run(cmd, "/test-cases", func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				tc, err := a.TestCases.Create(ctx, config)
				if err != nil {
					return err
				}
				return printTestCase(p, tc)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&caseType, "type", string(api.TestCaseTypeLLM), "Test case type: llm, conversational or multimodal")
	cmd.Flags().BoolVar(&global, "global", false, "Share the test case with every user")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) testCasesUpdateCmd() *cobra.Command {
	var flags testCaseFlags
	cmd := &cobra.Command{
		Use:   "update <test-case-id>",
		Short: "Change a test case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			patch := &api.TestCasePatch{}
			if cmd.Flags().Changed("name") {
				patch.Name = &flags.name
			}
			if cmd.Flags().Changed("input") || cmd.Flags().Changed("image") {
				input := flags.inputValue()
				patch.Input = &input
			}
			if cmd.Flags().Changed("expected-output") {
				patch.ExpectedOutput = nullableText(flags.expectedOutput)
			}
			if cmd.Flags().Changed("context") {
				patch.Context = api.Value(flags.context)
				if len(flags.context) == 0 {
					patch.Context = api.Null[[]string]()
				}
			}
			return c.run(cmd, "/test-cases/"+args[0], func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				if _, err := a.TestCases.GetByID(ctx, args[0]); err != nil {
					return err
				}
				tc, err := a.TestCases.Update(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return printTestCase(p, tc)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *cli) testCasesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <test-case-id>",
		Short: "Delete a test case, global test cases need an administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, "/test-cases/"+args[0], func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				// the admin check needs the signed in user
				if _, err := a.User.Load(ctx); err != nil {
					return err
				}
				if err := a.TestCases.Delete(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted test case %s\n", args[0])
				return err
			})
		},
	}
}

func printTestCase(p *printer, tc *api.TestCase) error {
	input := tc.Input.Text
	if tc.Input.IsMultimodal() {
		input = fmt.Sprintf("%d items", len(tc.Input.Items))
	}
	return p.fields(tc,
		"ID", tc.ID,
		"Name", tc.Name,
		"Type", string(tc.Type),
		"Input", input,
		"Expected output", optional(tc.ExpectedOutput),
		"Context", list(tc.Context),
		"Global", fmt.Sprint(tc.IsGlobal),
		"Updated", timestamp(tc.UpdatedAt),
	)
}
