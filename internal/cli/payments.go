package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/quiz-admin/internal/app"
	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
)

func (c *console) newPaymentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "List wallet deposits and set the due flag",
	}
	cmd.AddCommand(c.newPaymentsListCmd(), c.newPaymentsDueCmd())
	return cmd
}

func (c *console) newPaymentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List wallet deposits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.guarded(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Payments.Load(ctx); err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tUSER\tAMOUNT\tMETHOD\tSTATUS\tDUE\tDATE")
				for _, p := range a.Payments.List() {
					date := "-"
					if p.PaymentDate != nil {
						date = p.PaymentDate.Format("2006-01-02")
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
						p.ID, p.FullName, humanize.CommafWithDigits(p.Amount, 2), p.Method, p.Status, p.Due, date)
				}
				if err := tw.Flush(); err != nil {
					return err
				}

				st := a.Payments.Stats()
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d payments (%d pending, %d completed, %d due), total %s\n",
					st.Total, st.Pending, st.Completed, st.Due, humanize.CommafWithDigits(st.TotalAmount, 2))
				return nil
			})
		},
	}
}

func (c *console) newPaymentsDueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "due <payment-id> <true|false>",
		Short: "Set a payment's due flag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			due, err := strconv.ParseBool(args[1])
			if err != nil {
				return errors.Wrapf(adminerrors.ErrInvalidInput, "due %q", args[1])
			}
			return c.guarded(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Payments.Load(ctx); err != nil {
					return err
				}
				p, err := a.Dispatcher.SetDue(ctx, args[0], due)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Payment %s due=%t\n", p.ID, p.Due)
				return nil
			})
		},
	}
}
