package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eval-hub/eval-dashboard/internal/app"
	"github.com/eval-hub/eval-dashboard/internal/config"
	"github.com/eval-hub/eval-dashboard/internal/constants"
	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient"
)

// Pages reported to the API client, a 401 on an auth page does not end the session.
const (
	pageHome     = "/"
	pageLogin    = "/login"
	pageRegister = "/register"
)

var errSessionExpired = errors.New("the session has expired, sign in again with 'eval-dashboard login'")

// cli holds the state shared by the commands of one invocation.
type cli struct {
	viper      *viper.Viper
	configPath string
	output     string
	appOptions []app.Option
}

func newCLI(opts ...app.Option) *cli {
	return &cli{viper: config.NewViper(), appOptions: opts}
}

func buildRootCmd() *cobra.Command {
	return newCLI().rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "eval-dashboard",
		Short:        "Manage LLM evaluation datasets, test cases, experiments and runs",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "Path to the YAML configuration file (default "+config.DefaultConfigFile+")")
	flags.StringVarP(&c.output, "output", "o", "table", "Output format: table or json")
	flags.String("api-url", "", "Base URL of the evaluation API")
	flags.String("token-file", defaultTokenFile(), "File that keeps the access token between invocations")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("database", "", "Local cache backend (sql or memory)")
	if err := bindFlags(c.viper, flags); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		c.loginCmd(),
		c.registerCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.datasetsCmd(),
		c.versionsCmd(),
		c.testCasesCmd(),
		c.experimentsCmd(),
		c.runsCmd(),
		c.resultsCmd(),
	)
	return rootCmd
}

// bindFlags maps the global flags on the configuration keys they override.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"api.base_url":     "api-url",
		"api.token_file":   "token-file",
		"logging.level":    "log-level",
		"database.backend": "database",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "eval-dashboard", "token")
}

// run builds the application for one command, runs fn as if the user was on page and
// releases the application again.
func (c *cli) run(cmd *cobra.Command, page string, fn func(a *app.App, ctx *executioncontext.ExecutionContext) error) error {
	cfg, err := config.LoadConfig(c.viper, c.configPath)
	if err != nil {
		return err
	}
	if cfg.API.TokenFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.API.TokenFile), 0o700); err != nil {
			return fmt.Errorf("token directory: %w", err)
		}
	}
	a, err := app.New(cmd.Context(), cfg, c.appOptions...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(cmd.Context())); cerr != nil {
			a.Logger.Warn("Failed to release the application", constants.LOG_ERROR, cerr)
		}
	}()

	a.Navigator.Navigate(page)
	a.Navigator.Redirected()
	err = fn(a, a.NewContext(cmd.Context()))
	if err != nil && a.Navigator.Redirected() && evalclient.IsUnauthorized(err) {
		return fmt.Errorf("%w: %w", errSessionExpired, err)
	}
	return err
}

func (c *cli) printer(cmd *cobra.Command) (*printer, error) {
	switch c.output {
	case "table", "":
		return &printer{out: cmd.OutOrStdout()}, nil
	case "json":
		return &printer{out: cmd.OutOrStdout(), json: true}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", c.output)
	}
}
