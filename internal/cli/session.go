package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/quiz-admin/auth"
	"github.com/jrsteele09/quiz-admin/internal/app"
	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
	"github.com/jrsteele09/quiz-admin/sessions"
)

func (c *console) newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Start an operator session (valid for 15 minutes)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.Wrap(err, "read password")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				// A new login replaces whatever session this terminal held.
				if id := currentSessionID(ctx, a); id != "" {
					_ = a.Guard.End(ctx, id)
				}

				s, err := a.Guard.Establish(ctx, auth.Credentials{Email: email, Password: password})
				if err != nil {
					return err
				}
				token, err := a.Tokens.Sign(s)
				if err != nil {
					return err
				}
				if err := a.Sessions.SetCurrent(ctx, token); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s. Session expires at %s.\n",
					s.OperatorEmail, s.ExpiresAt().Local().Format("15:04:05"))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Operator email")
	cmd.Flags().StringVar(&password, "password", "", "Operator password (prompted if omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *console) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the operator session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Guard.End(ctx, currentSessionID(ctx, a)); err != nil {
					return err
				}
				if err := a.Sessions.ClearCurrent(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
				return nil
			})
		},
	}
}

// currentSessionID resolves the stored token. An unreadable or forged token
// counts as no session.
func currentSessionID(ctx context.Context, a *app.App) string {
	token, err := a.Sessions.Current(ctx)
	if err != nil || token == "" {
		return ""
	}
	id, _, err := a.Tokens.Parse(token)
	if err != nil {
		return ""
	}
	return id
}

// guarded runs fn only while the operator session is valid. The invocation
// that first sees the session expired prints the expiry notice.
func (c *console) guarded(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
		return a.Guard.Guard(ctx, currentSessionID(ctx, a),
			func(*sessions.Session) error {
				return fn(ctx, a)
			},
			func(notice string) error {
				_ = a.Sessions.ClearCurrent(ctx)
				if notice != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), notice)
					return adminerrors.ErrSessionExpired
				}
				return errors.Wrap(adminerrors.ErrSessionMissing, "not logged in, run 'adminctl login'")
			},
		)
	})
}
