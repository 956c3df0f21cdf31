package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eval-hub/eval-dashboard/internal/app"
	"github.com/eval-hub/eval-dashboard/internal/config"
	"github.com/eval-hub/eval-dashboard/internal/constants"
	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/pkg/api"
)

const passwordEnv = config.EnvPrefix + "_PASSWORD"

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the evaluation API",
		Long:  "Sign in to the evaluation API. The password is read from --password, " + passwordEnv + " or standard input.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			secret, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			return c.run(cmd, pageLogin, func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				user, err := a.Auth.Login(ctx, &api.Credentials{Email: email, Password: secret})
				if err != nil {
					return err
				}
				return p.message(user, "Signed in as %s", user.Email)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in with it",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			secret, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			return c.run(cmd, pageRegister, func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				registration := &api.Registration{Email: email, Password: secret}
				if name != "" {
					registration.Name = &name
				}
				user, err := a.Auth.Register(ctx, registration)
				if err != nil {
					return err
				}
				return p.message(user, "Registered and signed in as %s", user.Email)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, pageLogin, func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				if err := a.Auth.Logout(ctx); err != nil {
					// the local session is gone either way
					ctx.Logger.Warn("Sign out was not confirmed by the server", constants.LOG_ERROR, err)
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return err
			})
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return c.run(cmd, pageHome, func(a *app.App, ctx *executioncontext.ExecutionContext) error {
				user, err := a.Auth.CheckStatus(ctx)
				if err != nil {
					return err
				}
				if user == nil {
					return p.message(map[string]any{"authenticated": false}, "Not signed in")
				}
				return p.fields(user,
					"ID", user.ID,
					"Email", user.Email,
					"Name", optional(user.Name),
					"Admin", fmt.Sprint(user.IsAdmin),
				)
			})
		},
	}
}

// readPassword returns the flag value, the environment value or the first line of stdin.
func readPassword(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(passwordEnv); env != "" {
		return env, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
