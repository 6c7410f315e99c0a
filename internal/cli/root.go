// Package cli is the terminal admin console. Every command except login and
// logout runs behind the operator session guard; the session lives in the
// local state store, so it carries across invocations until it expires.
package cli

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/quiz-admin/internal/app"
	"github.com/jrsteele09/quiz-admin/internal/clock"
	"github.com/jrsteele09/quiz-admin/internal/config"
	"github.com/jrsteele09/quiz-admin/internal/obs"
)

// Builder assembles the console components for one invocation.
type Builder func(ctx context.Context, logger zerolog.Logger) (*app.App, error)

type console struct {
	build     Builder
	clock     clock.Clock
	logLevel  string
	logFormat string
}

type Option func(*console)

// WithBuilder replaces the default config-driven wiring (tests inject a fake backend).
func WithBuilder(b Builder) Option {
	return func(c *console) {
		c.build = b
	}
}

// WithClock sets the clock used for relative times in output.
func WithClock(clk clock.Clock) Option {
	return func(c *console) {
		c.clock = clk
	}
}

func defaultBuilder(ctx context.Context, logger zerolog.Logger) (*app.App, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}

// NewRootCmd creates the root cobra command for adminctl.
func NewRootCmd(options ...Option) *cobra.Command {
	c := &console{build: defaultBuilder, clock: clock.System{}}
	for _, option := range options {
		option(c)
	}

	root := &cobra.Command{
		Use:           "adminctl",
		Short:         "Quiz platform admin console",
		Long:          "adminctl runs batch jobs and manages accounts and payments on the quiz platform backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "console", "Log format (console, json)")

	root.AddCommand(
		c.newLoginCmd(),
		c.newLogoutCmd(),
		c.newJobsCmd(),
		c.newAccountsCmd(),
		c.newPaymentsCmd(),
	)
	return root
}

// withApp builds the components, runs fn and releases them.
func (c *console) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	logger := obs.NewLoggerWithWriter(c.logLevel, c.logFormat, cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := c.build(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing state store")
		}
	}()
	return fn(ctx, a)
}
