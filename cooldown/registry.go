// Package cooldown tracks the last successful run of each batch job and
// decides whether another run is allowed inside the rolling window.
// The cache is advisory: the backend stays authoritative.
package cooldown

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/quiz-admin/actions"
	"github.com/jrsteele09/quiz-admin/internal/clock"
	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
	"github.com/jrsteele09/quiz-admin/internal/obs"
)

const defaultWindow = 24 * time.Hour

// Source fetches the authoritative last-run instants. Absent ids were never run.
type Source interface {
	LastExecuted(ctx context.Context) (map[actions.ID]time.Time, error)
}

// Remaining is the wait left before an action may run again, split for display.
type Remaining struct {
	Hours    int           `json:"hours"`
	Minutes  int           `json:"minutes"`
	Duration time.Duration `json:"-"`
}

type loadState int

const (
	notLoaded loadState = iota
	loaded
	unknown
)

// Status is a point-in-time view of one action's cooldown.
type Status struct {
	ID           actions.ID
	CanExecute   bool
	Remaining    *Remaining
	LastExecuted *time.Time
}

type Registry struct {
	source  Source
	window  time.Duration
	clock   clock.Clock
	logger  zerolog.Logger
	metrics *obs.Metrics

	mu      sync.RWMutex
	entries map[actions.ID]time.Time
	state   loadState
	loading int
	loadErr error

	// gen numbers Loads in start order; applied is the newest one whose
	// result was kept. recorded stamps each RecordSuccess with the gen
	// current when it ran.
	gen      uint64
	applied  uint64
	recorded map[actions.ID]recordedRun
}

type recordedRun struct {
	at  time.Time
	gen uint64
}

type Option func(*Registry)

func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

func WithWindow(window time.Duration) Option {
	return func(r *Registry) {
		r.window = window
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func WithMetrics(m *obs.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

func NewRegistry(source Source, options ...Option) *Registry {
	r := &Registry{
		source:  source,
		window:  defaultWindow,
		clock:   clock.System{},
		logger:  zerolog.Nop(),
		entries:  make(map[actions.ID]time.Time),
		recorded: make(map[actions.ID]recordedRun),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Load replaces the cache wholesale from the source. On failure the entries
// are dropped and the registry reports itself unknown until the next success.
// In both cases successes recorded after the Load began are kept when newer
// than the loaded instant. A Load that finishes after a later-started one is
// discarded.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	r.loading++
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	last, err := r.source.LastExecuted(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading--

	if gen < r.applied {
		r.logger.Debug().Uint64("gen", gen).Msg("stale cooldown load discarded")
		if err != nil {
			return errors.Wrapf(adminerrors.ErrRegistryNotLoaded, "[Registry.Load] %v", err)
		}
		return nil
	}
	r.applied = gen

	entries := make(map[actions.ID]time.Time, len(last))
	for id, at := range last {
		if at.IsZero() {
			continue
		}
		entries[id] = at
	}
	for id, run := range r.recorded {
		if run.gen < gen {
			delete(r.recorded, id)
			continue
		}
		if cur, ok := entries[id]; !ok || run.at.After(cur) {
			entries[id] = run.at
		}
	}
	r.entries = entries

	if err != nil {
		r.state = unknown
		r.loadErr = err
		r.metrics.CooldownLoad("fail")
		r.logger.Err(err).Msg("cooldown state load failed")
		return errors.Wrapf(adminerrors.ErrRegistryNotLoaded, "[Registry.Load] %v", err)
	}

	r.state = loaded
	r.loadErr = nil
	r.metrics.CooldownLoad("success")
	r.logger.Debug().Int("entries", len(entries)).Msg("cooldown state loaded")
	return nil
}

// CanExecute reports whether id has no entry or its window has fully elapsed.
func (r *Registry) CanExecute(id actions.ID) bool {
	_, blocked := r.Remaining(id)
	return !blocked
}

// Remaining returns the wait left for id and true, or false when id may run now.
func (r *Registry) Remaining(id actions.ID) (Remaining, bool) {
	r.mu.RLock()
	last, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return Remaining{}, false
	}
	return r.remainingAt(last, r.clock.Now())
}

func (r *Registry) remainingAt(last, now time.Time) (Remaining, bool) {
	elapsed := now.Sub(last)
	if elapsed >= r.window {
		return Remaining{}, false
	}
	left := r.window - elapsed
	if left > r.window {
		// last run reported in the future
		left = r.window
	}
	h, m := adminerrors.SplitHoursMinutes(left)
	return Remaining{Hours: h, Minutes: m, Duration: left}, true
}

// Check is CanExecute expressed as an error: nil, or a *CooldownError.
func (r *Registry) Check(id actions.ID) error {
	if rem, blocked := r.Remaining(id); blocked {
		return &adminerrors.CooldownError{Action: id.String(), Remaining: rem.Duration}
	}
	return nil
}

// RecordSuccess notes a successful run optimistically, ahead of the next Load.
// An older instant never replaces a newer one, so repeats are idempotent.
func (r *Registry) RecordSuccess(id actions.ID, executedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.recorded[id]; !ok || run.gen < r.gen || executedAt.After(run.at) {
		r.recorded[id] = recordedRun{at: executedAt, gen: r.gen}
	}
	if cur, ok := r.entries[id]; ok && !executedAt.After(cur) {
		return
	}
	r.entries[id] = executedAt
}

func (r *Registry) LastExecuted(id actions.ID) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	at, ok := r.entries[id]
	return at, ok
}

// Known reports whether the last Load succeeded.
func (r *Registry) Known() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == loaded
}

// Unknown reports whether the last Load failed.
func (r *Registry) Unknown() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == unknown
}

func (r *Registry) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading > 0
}

// LoadErr returns the error of the last failed Load, if the registry is unknown.
func (r *Registry) LoadErr() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadErr
}

// Snapshot returns the status of every catalog action at the current instant.
func (r *Registry) Snapshot() []Status {
	now := r.clock.Now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(actions.IDs()))
	for _, id := range actions.IDs() {
		st := Status{ID: id, CanExecute: true}
		if last, ok := r.entries[id]; ok {
			at := last
			st.LastExecuted = &at
			if rem, blocked := r.remainingAt(last, now); blocked {
				st.CanExecute = false
				st.Remaining = &rem
			}
		}
		out = append(out, st)
	}
	return out
}
