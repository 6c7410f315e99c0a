// Package dispatch is the single execution path for privileged console
// actions: batch job triggers and account/payment commits.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/quiz-admin/accounts"
	"github.com/jrsteele09/quiz-admin/actions"
	"github.com/jrsteele09/quiz-admin/cooldown"
	"github.com/jrsteele09/quiz-admin/internal/clock"
	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
	"github.com/jrsteele09/quiz-admin/internal/obs"
	"github.com/jrsteele09/quiz-admin/payments"
)

const defaultReconcileDelay = time.Second

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher closed")

// Trigger runs one batch job on the backend and returns its success message.
type Trigger interface {
	Trigger(ctx context.Context, job actions.Job) (string, error)
}

// State is where an action invocation stands.
//
//	Idle -> Validating -> Blocked -> Idle
//	                   -> Dispatching -> Succeeded | Failed -> Idle
type State int

const (
	Idle State = iota
	Validating
	Blocked
	Dispatching
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Validating:
		return "validating"
	case Blocked:
		return "blocked"
	case Dispatching:
		return "dispatching"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the terminal result of one invocation.
type Outcome struct {
	Action    actions.ID          `json:"action"`
	State     State               `json:"state"`
	Message   string              `json:"message,omitempty"`
	Remaining *cooldown.Remaining `json:"remaining,omitempty"`
	At        time.Time           `json:"at"`
}

type Dispatcher struct {
	trigger        Trigger
	registry       *cooldown.Registry
	accounts       *accounts.Machine
	payments       *payments.Ledger
	clock          clock.Clock
	logger         zerolog.Logger
	metrics        *obs.Metrics
	reconcileDelay time.Duration

	mu       sync.Mutex
	inFlight map[actions.ID]bool
	last     map[actions.ID]Outcome
	timers   map[actions.ID]*time.Timer
	gen      map[actions.ID]uint64
	closed   bool

	reconcileCtx    context.Context
	cancelReconcile context.CancelFunc
}

type Option func(*Dispatcher)

func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *obs.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithReconcileDelay sets how long after a success the cooldown state is reloaded.
func WithReconcileDelay(delay time.Duration) Option {
	return func(d *Dispatcher) {
		d.reconcileDelay = delay
	}
}

// WithAccounts routes account commits through the dispatcher.
func WithAccounts(m *accounts.Machine) Option {
	return func(d *Dispatcher) {
		d.accounts = m
	}
}

// WithPayments routes payment due-flag commits through the dispatcher.
func WithPayments(l *payments.Ledger) Option {
	return func(d *Dispatcher) {
		d.payments = l
	}
}

func New(trigger Trigger, registry *cooldown.Registry, options ...Option) (*Dispatcher, error) {
	if trigger == nil {
		return nil, errors.New("[dispatch.New] trigger is required")
	}
	if registry == nil {
		return nil, errors.New("[dispatch.New] cooldown registry is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		trigger:         trigger,
		registry:        registry,
		clock:           clock.System{},
		logger:          zerolog.Nop(),
		reconcileDelay:  defaultReconcileDelay,
		inFlight:        make(map[actions.ID]bool),
		last:            make(map[actions.ID]Outcome),
		timers:          make(map[actions.ID]*time.Timer),
		gen:             make(map[actions.ID]uint64),
		reconcileCtx:    ctx,
		cancelReconcile: cancel,
	}
	for _, option := range options {
		option(d)
	}
	return d, nil
}

// Dispatch validates and runs one batch job.
//
// Unknown ids fail with ErrUnknownAction and a second call for an id that is
// still in flight fails with ErrActionInFlight; neither reaches the backend or
// changes state. A cooldown block returns a Blocked outcome with a
// *CooldownError. A backend or network failure returns a Failed outcome with a
// *DispatchError carrying the error text verbatim. On success the cooldown is
// recorded immediately and a reload of the authoritative state is scheduled.
// Once dispatched, the backend call runs to completion even if ctx is
// cancelled.
func (d *Dispatcher) Dispatch(ctx context.Context, raw string) (Outcome, error) {
	id, err := actions.Parse(raw)
	if err != nil {
		return Outcome{}, err
	}
	job, _ := actions.Lookup(id)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return Outcome{}, ErrClosed
	}
	if d.inFlight[id] {
		d.mu.Unlock()
		d.metrics.Dispatch(id.String(), "in_flight")
		return Outcome{}, errors.Wrap(adminerrors.ErrActionInFlight, id.String())
	}
	if err := d.registry.Check(id); err != nil {
		out := Outcome{Action: id, State: Blocked, Message: err.Error(), At: d.clock.Now()}
		var cerr *adminerrors.CooldownError
		if errors.As(err, &cerr) {
			h, m := adminerrors.SplitHoursMinutes(cerr.Remaining)
			out.Remaining = &cooldown.Remaining{Hours: h, Minutes: m, Duration: cerr.Remaining}
		}
		d.last[id] = out
		d.mu.Unlock()
		d.metrics.Dispatch(id.String(), "blocked")
		d.logger.Info().Str("action", id.String()).Msg("dispatch blocked by cooldown")
		return out, err
	}
	if d.registry.Unknown() {
		d.logger.Warn().Str("action", id.String()).Msg("cooldown state unknown, dispatching anyway")
	}
	d.inFlight[id] = true
	d.mu.Unlock()

	d.metrics.DispatchStarted()
	d.logger.Info().Str("action", id.String()).Msg("dispatch started")
	start := time.Now()
	msg, callErr := d.trigger.Trigger(context.WithoutCancel(ctx), job)
	d.metrics.DispatchFinished(id.String(), time.Since(start))

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, id)

	if callErr != nil {
		out := Outcome{Action: id, State: Failed, Message: callErr.Error(), At: d.clock.Now()}
		d.last[id] = out
		d.metrics.Dispatch(id.String(), "failed")
		d.logger.Err(callErr).Str("action", id.String()).Msg("dispatch failed")
		return out, &adminerrors.DispatchError{Action: id.String(), Message: callErr.Error()}
	}

	now := d.clock.Now()
	d.registry.RecordSuccess(id, now)
	out := Outcome{Action: id, State: Succeeded, Message: msg, At: now}
	d.last[id] = out
	d.metrics.Dispatch(id.String(), "succeeded")
	d.logger.Info().Str("action", id.String()).Str("message", msg).Msg("dispatch succeeded")
	if !d.closed {
		d.scheduleReconcileLocked(id)
	}
	return out, nil
}

// scheduleReconcileLocked replaces any pending reload for id. Must hold mu.
func (d *Dispatcher) scheduleReconcileLocked(id actions.ID) {
	if t, ok := d.timers[id]; ok {
		t.Stop()
	}
	d.gen[id]++
	gen := d.gen[id]
	d.timers[id] = time.AfterFunc(d.reconcileDelay, func() { d.reconcile(id, gen) })
	d.logger.Debug().Str("action", id.String()).Dur("delay", d.reconcileDelay).Msg("reconcile scheduled")
}

func (d *Dispatcher) reconcile(id actions.ID, gen uint64) {
	d.mu.Lock()
	if d.closed || d.gen[id] != gen {
		d.mu.Unlock()
		return
	}
	delete(d.timers, id)
	ctx := d.reconcileCtx
	d.mu.Unlock()

	d.logger.Debug().Str("action", id.String()).Msg("reconcile fired")
	if err := d.registry.Load(ctx); err != nil {
		d.logger.Err(err).Str("action", id.String()).Msg("reconcile load failed")
	}
}

// PendingReconciles reports how many delayed reloads are scheduled.
func (d *Dispatcher) PendingReconciles() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Close cancels pending reloads. Dispatch fails with ErrClosed afterwards.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
		d.logger.Debug().Str("action", id.String()).Msg("reconcile cancelled")
	}
	d.cancelReconcile()
	return nil
}

// State reports Dispatching while a call for id is in flight, otherwise Idle.
func (d *Dispatcher) State(id actions.ID) State {
	if d.InFlight(id) {
		return Dispatching
	}
	return Idle
}

func (d *Dispatcher) InFlight(id actions.ID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight[id]
}

// LastOutcome returns the most recent terminal outcome for id.
func (d *Dispatcher) LastOutcome(id actions.ID) (Outcome, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out, ok := d.last[id]
	return out, ok
}

// LoadCooldowns reloads the cooldown registry from the backend.
func (d *Dispatcher) LoadCooldowns(ctx context.Context) error {
	return d.registry.Load(ctx)
}
