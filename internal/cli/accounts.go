package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/quiz-admin/accounts"
	"github.com/jrsteele09/quiz-admin/internal/app"
	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
)

func (c *console) newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"users"},
		Short:   "List and manage user accounts",
	}
	cmd.AddCommand(
		c.newAccountsListCmd(),
		c.newAccountsStatusCmd(),
		c.newAccountsTrustCmd(),
		c.newAccountsWalletCmd(),
		c.newAccountsDeleteCmd(),
	)
	return cmd
}

// refreshAccounts pulls the user list. On failure the cached list is used.
func refreshAccounts(ctx context.Context, cmd *cobra.Command, a *app.App) {
	if err := a.Accounts.Refresh(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: showing cached users: %v\n", err)
	}
}

func printAccount(cmd *cobra.Command, rec accounts.Record) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  status=%s trust=%t coin=%s\n",
		rec.ID, rec.FullName, rec.Status.Label(), rec.Trust, humanize.CommafWithDigits(rec.Coin, 2))
}

func (c *console) newAccountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.guarded(cmd, func(ctx context.Context, a *app.App) error {
				refreshAccounts(ctx, cmd, a)

				list := a.Accounts.List()
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No users found.")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tSTATUS\tTRUST\tCOIN\tNOTE")
				for _, rec := range list {
					note := ""
					if rec.StalePaused {
						note = "pause expired"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
						rec.ID, rec.FullName, rec.Email, rec.Status.Label(), rec.Trust,
						humanize.CommafWithDigits(rec.Coin, 2), note)
				}
				return tw.Flush()
			})
		},
	}
}

func (c *console) newAccountsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <active|paused|blocked>",
		Short: "Set an account's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := accounts.ParseStatus(args[1])
			if err != nil {
				return err
			}
			return c.guarded(cmd, func(ctx context.Context, a *app.App) error {
				refreshAccounts(ctx, cmd, a)
				if err := a.Accounts.StageStatus(args[0], status); err != nil {
					return err
				}
				rec, err := a.Dispatcher.CommitStatus(ctx, args[0])
				if err != nil {
					return err
				}
				printAccount(cmd, rec)
				return nil
			})
		},
	}
}

func (c *console) newAccountsTrustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust <id> <true|false>",
		Short: "Set an account's trust flag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			trust, err := strconv.ParseBool(args[1])
			if err != nil {
				return errors.Wrapf(adminerrors.ErrInvalidInput, "trust %q", args[1])
			}
			return c.guarded(cmd, func(ctx context.Context, a *app.App) error {
				refreshAccounts(ctx, cmd, a)
				if err := a.Accounts.StageTrust(args[0], trust); err != nil {
					return err
				}
				rec, err := a.Dispatcher.CommitTrust(ctx, args[0])
				if err != nil {
					return err
				}
				printAccount(cmd, rec)
				return nil
			})
		},
	}
}

func (c *console) newAccountsWalletCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wallet <id> <coin>",
		Short: "Set an account's coin balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			coin, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return errors.Wrapf(adminerrors.ErrInvalidInput, "coin %q", args[1])
			}
			return c.guarded(cmd, func(ctx context.Context, a *app.App) error {
				refreshAccounts(ctx, cmd, a)
				rec, err := a.Dispatcher.SetWallet(ctx, args[0], coin)
				if err != nil {
					return err
				}
				printAccount(cmd, rec)
				return nil
			})
		},
	}
}

func (c *console) newAccountsDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete without --yes")
			}
			return c.guarded(cmd, func(ctx context.Context, a *app.App) error {
				refreshAccounts(ctx, cmd, a)
				if err := a.Dispatcher.DeleteAccount(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s.\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}
