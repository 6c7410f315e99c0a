package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/quiz-admin/internal/app"
	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
)

func (c *console) newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Show and run backend batch jobs",
	}
	cmd.AddCommand(c.newJobsStatusCmd(), c.newJobsRunCmd())
	return cmd
}

// loadCooldowns refreshes last-executed times. A failure is reported but not
// fatal; the cooldown state is then unknown.
func loadCooldowns(ctx context.Context, cmd *cobra.Command, a *app.App) {
	if err := a.Dispatcher.LoadCooldowns(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not load last run times: %v\n", err)
	}
}

func (c *console) newJobsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show each job's cooldown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.guarded(cmd, func(ctx context.Context, a *app.App) error {
				loadCooldowns(ctx, cmd, a)
				now := c.clock.Now()

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tJOB\tREADY\tWAIT\tLAST RUN")
				for _, j := range a.Dispatcher.Jobs() {
					ready := "yes"
					switch {
					case j.Unknown:
						ready = "unknown"
					case !j.CanExecute:
						ready = "no"
					}
					wait := "-"
					if j.Remaining != nil {
						wait = fmt.Sprintf("%dh %dm", j.Remaining.Hours, j.Remaining.Minutes)
					}
					last := "never"
					if j.LastExecuted != nil {
						last = humanize.RelTime(*j.LastExecuted, now, "ago", "from now")
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.Label, ready, wait, last)
				}
				return tw.Flush()
			})
		},
	}
}

func (c *console) newJobsRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <job-id>",
		Short: "Trigger a job (once per 24 hours)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.guarded(cmd, func(ctx context.Context, a *app.App) error {
				loadCooldowns(ctx, cmd, a)

				out, err := a.Dispatcher.Dispatch(ctx, args[0])
				var cooldownErr *adminerrors.CooldownError
				if errors.As(err, &cooldownErr) {
					fmt.Fprintln(cmd.OutOrStdout(), cooldownErr.Error())
					return err
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out.Message)
				return nil
			})
		},
	}
}
