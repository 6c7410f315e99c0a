package accounts

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/quiz-admin/internal/clock"
	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
)

const defaultPauseGrace = 5 * time.Minute

// Backend is the authoritative user store.
type Backend interface {
	ListUsers(ctx context.Context) ([]Account, error)
	// UpdateStatus returns the backend's echo of the record, or nil when the
	// backend acknowledged without echoing one.
	UpdateStatus(ctx context.Context, accountID string, change StatusChange) (*Echo, error)
	UpdateTrust(ctx context.Context, accountID string, trust bool) (*Echo, error)
	UpdateWallet(ctx context.Context, accountID string, coin float64) error
	DeleteUser(ctx context.Context, accountID string) error
}

// Cache persists the user list between runs. It is never authoritative.
type Cache interface {
	Load(ctx context.Context) ([]Account, error)
	Save(ctx context.Context, accounts []Account) error
}

// Record is an account together with its unsaved staged values.
type Record struct {
	Account
	StagedStatus *Status `json:"staged_status,omitempty"`
	StagedTrust  *bool   `json:"staged_trust,omitempty"`
	StalePaused  bool    `json:"stale_paused"`
}

type entry struct {
	committed    Account
	stagedStatus *Status
	stagedTrust  *bool
	// set once this process has seen the record from the backend (refresh or
	// commit echo); the durable cache may no longer overwrite it
	fresh bool
}

// Machine runs the two-phase stage/commit protocol for account status and
// trust, and owns the process-local copy of the user list.
type Machine struct {
	backend    Backend
	cache      Cache
	clock      clock.Clock
	logger     zerolog.Logger
	pauseGrace time.Duration

	mu      sync.RWMutex
	entries map[string]*entry
}

type Option func(*Machine)

func WithClock(c clock.Clock) Option {
	return func(m *Machine) {
		m.clock = c
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithCache enables the durable user-list cache.
func WithCache(c Cache) Option {
	return func(m *Machine) {
		m.cache = c
	}
}

func WithPauseGrace(d time.Duration) Option {
	return func(m *Machine) {
		m.pauseGrace = d
	}
}

func NewMachine(backend Backend, options ...Option) *Machine {
	m := &Machine{
		backend:    backend,
		clock:      clock.System{},
		logger:     zerolog.Nop(),
		pauseGrace: defaultPauseGrace,
		entries:    make(map[string]*entry),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// LoadCached restores the user list from the durable cache. Accounts already
// refreshed or committed in this process keep their local values.
func (m *Machine) LoadCached(ctx context.Context) error {
	if m.cache == nil {
		return nil
	}
	cached, err := m.cache.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "[Machine.LoadCached] cache.Load")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range cached {
		if e, ok := m.entries[a.ID]; ok {
			if e.fresh {
				continue
			}
			e.committed = a.clone()
			continue
		}
		m.entries[a.ID] = &entry{committed: a.clone()}
	}
	return nil
}

// Refresh replaces the user list from the backend and rewrites the cache.
// Staged values survive for accounts that still exist.
func (m *Machine) Refresh(ctx context.Context) error {
	list, err := m.backend.ListUsers(ctx)
	if err != nil {
		m.logger.Err(err).Msg("user list refresh failed")
		return errors.Wrap(err, "[Machine.Refresh] backend.ListUsers")
	}

	m.mu.Lock()
	next := make(map[string]*entry, len(list))
	for _, a := range list {
		e := &entry{committed: a.clone(), fresh: true}
		if prev, ok := m.entries[a.ID]; ok {
			e.stagedStatus = prev.stagedStatus
			e.stagedTrust = prev.stagedTrust
		}
		next[a.ID] = e
	}
	m.entries = next
	m.mu.Unlock()

	m.logger.Debug().Int("accounts", len(list)).Msg("user list refreshed")
	m.persist(ctx)
	return nil
}

// StageStatus records a proposed status without any external effect.
func (m *Machine) StageStatus(accountID string, status Status) error {
	if !status.Valid() {
		return errors.Wrapf(adminerrors.ErrInvalidStatus, "%q", status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[accountID]
	if !ok {
		return errors.Wrap(adminerrors.ErrAccountNotFound, accountID)
	}
	e.stagedStatus = &status
	return nil
}

// StageTrust records a proposed trust flag. Independent of any staged status.
func (m *Machine) StageTrust(accountID string, trust bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[accountID]
	if !ok {
		return errors.Wrap(adminerrors.ErrAccountNotFound, accountID)
	}
	e.stagedTrust = &trust
	return nil
}

// Discard drops both staged values.
func (m *Machine) Discard(accountID string) error {
	return m.withEntry(accountID, func(e *entry) {
		e.stagedStatus = nil
		e.stagedTrust = nil
	})
}

func (m *Machine) DiscardStatus(accountID string) error {
	return m.withEntry(accountID, func(e *entry) { e.stagedStatus = nil })
}

func (m *Machine) DiscardTrust(accountID string) error {
	return m.withEntry(accountID, func(e *entry) { e.stagedTrust = nil })
}

func (m *Machine) withEntry(accountID string, fn func(*entry)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[accountID]
	if !ok {
		return errors.Wrap(adminerrors.ErrAccountNotFound, accountID)
	}
	fn(e)
	return nil
}

// CommitStatus sends the staged status (or the committed one when nothing is
// staged) with its derived timestamps. On success the sent values are applied,
// any fields the backend echoed are merged over them, and the staged status is
// cleared; on failure nothing changes.
// Concurrent commits on one account are not ordered: the last response wins.
func (m *Machine) CommitStatus(ctx context.Context, accountID string) (Record, error) {
	m.mu.RLock()
	e, ok := m.entries[accountID]
	if !ok {
		m.mu.RUnlock()
		return Record{}, errors.Wrap(adminerrors.ErrAccountNotFound, accountID)
	}
	target := e.committed.Status
	if e.stagedStatus != nil {
		target = *e.stagedStatus
	}
	m.mu.RUnlock()

	if !target.Valid() {
		return Record{}, errors.Wrapf(adminerrors.ErrInvalidStatus, "%q", target)
	}

	change := Transition(target, m.clock.Now())
	echo, err := m.backend.UpdateStatus(ctx, accountID, change)
	if err != nil {
		m.logger.Err(err).Str("account_id", accountID).Str("status", string(target)).Msg("status commit failed")
		return Record{}, &adminerrors.CommitError{AccountID: accountID, Field: "status", Message: err.Error()}
	}

	m.mu.Lock()
	e, ok = m.entries[accountID]
	if !ok {
		// deleted while the commit was in flight
		m.mu.Unlock()
		return Record{}, errors.Wrap(adminerrors.ErrAccountNotFound, accountID)
	}
	e.committed.Apply(change)
	if echo != nil && echo.ID != "" {
		echo.MergeInto(&e.committed)
	}
	if e.stagedStatus != nil && *e.stagedStatus == target {
		e.stagedStatus = nil
	}
	e.fresh = true
	rec := m.record(e)
	m.mu.Unlock()

	m.logger.Info().Str("account_id", accountID).Str("status", string(rec.Status)).Msg("status committed")
	m.persist(ctx)
	return rec, nil
}

// CommitTrust is CommitStatus for the trust flag, which has no timestamp side effects.
func (m *Machine) CommitTrust(ctx context.Context, accountID string) (Record, error) {
	m.mu.RLock()
	e, ok := m.entries[accountID]
	if !ok {
		m.mu.RUnlock()
		return Record{}, errors.Wrap(adminerrors.ErrAccountNotFound, accountID)
	}
	trust := e.committed.Trust
	if e.stagedTrust != nil {
		trust = *e.stagedTrust
	}
	m.mu.RUnlock()

	echo, err := m.backend.UpdateTrust(ctx, accountID, trust)
	if err != nil {
		m.logger.Err(err).Str("account_id", accountID).Bool("trust", trust).Msg("trust commit failed")
		return Record{}, &adminerrors.CommitError{AccountID: accountID, Field: "trust", Message: err.Error()}
	}

	m.mu.Lock()
	e, ok = m.entries[accountID]
	if !ok {
		m.mu.Unlock()
		return Record{}, errors.Wrap(adminerrors.ErrAccountNotFound, accountID)
	}
	e.committed.Trust = trust
	if echo != nil && echo.ID != "" {
		echo.MergeInto(&e.committed)
	}
	if e.stagedTrust != nil && *e.stagedTrust == trust {
		e.stagedTrust = nil
	}
	e.fresh = true
	rec := m.record(e)
	m.mu.Unlock()

	m.logger.Info().Str("account_id", accountID).Bool("trust", rec.Trust).Msg("trust committed")
	m.persist(ctx)
	return rec, nil
}

// SetWallet replaces the account's coin balance in a single step.
func (m *Machine) SetWallet(ctx context.Context, accountID string, coin float64) (Record, error) {
	if math.IsNaN(coin) || math.IsInf(coin, 0) {
		return Record{}, errors.Wrap(adminerrors.ErrInvalidInput, "coin must be a finite number")
	}
	if _, err := m.Get(accountID); err != nil {
		return Record{}, err
	}

	if err := m.backend.UpdateWallet(ctx, accountID, coin); err != nil {
		m.logger.Err(err).Str("account_id", accountID).Msg("wallet update failed")
		return Record{}, &adminerrors.CommitError{AccountID: accountID, Field: "wallet", Message: err.Error()}
	}

	m.mu.Lock()
	e, ok := m.entries[accountID]
	if !ok {
		m.mu.Unlock()
		return Record{}, errors.Wrap(adminerrors.ErrAccountNotFound, accountID)
	}
	e.committed.Coin = coin
	e.fresh = true
	rec := m.record(e)
	m.mu.Unlock()

	m.logger.Info().Str("account_id", accountID).Float64("coin", coin).Msg("wallet updated")
	m.persist(ctx)
	return rec, nil
}

// Delete removes the account from the backend, then locally and from the cache.
func (m *Machine) Delete(ctx context.Context, accountID string) error {
	if _, err := m.Get(accountID); err != nil {
		return err
	}
	if err := m.backend.DeleteUser(ctx, accountID); err != nil {
		m.logger.Err(err).Str("account_id", accountID).Msg("account delete failed")
		return &adminerrors.CommitError{AccountID: accountID, Field: "delete", Message: err.Error()}
	}

	m.mu.Lock()
	delete(m.entries, accountID)
	m.mu.Unlock()

	m.logger.Info().Str("account_id", accountID).Msg("account deleted")
	m.persist(ctx)
	return nil
}

func (m *Machine) Get(accountID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[accountID]
	if !ok {
		return Record{}, errors.Wrap(adminerrors.ErrAccountNotFound, accountID)
	}
	return m.record(e), nil
}

// List returns every account ordered by id (numerically when both ids are numbers).
func (m *Machine) List() []Record {
	m.mu.RLock()
	out := make([]Record, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, m.record(e))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out
}

// IsStalePaused reports the advisory stale-pause hint for one account.
func (m *Machine) IsStalePaused(accountID string) (bool, error) {
	rec, err := m.Get(accountID)
	if err != nil {
		return false, err
	}
	return rec.StalePaused, nil
}

// record must be called with mu held.
func (m *Machine) record(e *entry) Record {
	rec := Record{Account: e.committed.clone()}
	if e.stagedStatus != nil {
		s := *e.stagedStatus
		rec.StagedStatus = &s
	}
	if e.stagedTrust != nil {
		t := *e.stagedTrust
		rec.StagedTrust = &t
	}
	rec.StalePaused = rec.IsStalePaused(m.clock.Now(), m.pauseGrace)
	return rec
}

func (m *Machine) persist(ctx context.Context) {
	if m.cache == nil {
		return
	}
	recs := m.List()
	list := make([]Account, 0, len(recs))
	for _, r := range recs {
		list = append(list, r.Account)
	}
	if err := m.cache.Save(ctx, list); err != nil {
		m.logger.Err(err).Msg("user list cache write failed")
	}
}

func lessID(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
