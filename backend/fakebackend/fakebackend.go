// Package fakebackend is an in-memory stand-in for the quiz platform's admin
// API. It satisfies the same Go interfaces as backend.Client and can also
// serve the HTTP wire contract.
package fakebackend

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/quiz-admin/accounts"
	"github.com/jrsteele09/quiz-admin/actions"
	"github.com/jrsteele09/quiz-admin/internal/clock"
	"github.com/jrsteele09/quiz-admin/payments"
)

// Op names a backend operation for failure injection and call counting.
type Op string

const (
	OpLastExecuted Op = "last-executed"
	OpTrigger      Op = "trigger"
	OpListUsers    Op = "list-users"
	OpUpdateStatus Op = "update-status"
	OpUpdateTrust  Op = "update-trust"
	OpUpdateWallet Op = "update-wallet"
	OpDeleteUser   Op = "delete-user"
	OpListPayments Op = "list-payments"
	OpSetDue       Op = "set-due"
)

var (
	ErrUserNotFound    = errors.New("User not found")
	ErrPaymentNotFound = errors.New("Payment not found")
)

type Backend struct {
	clock clock.Clock

	mu           sync.Mutex
	users        map[string]accounts.Account
	payments     []payments.Payment
	lastExecuted map[actions.ID]time.Time
	failures     map[Op]error
	calls        map[Op]int
	omitEcho     bool
	echoFields   map[string]bool
	gate         chan struct{}
}

func New(c clock.Clock) *Backend {
	if c == nil {
		c = clock.System{}
	}
	return &Backend{
		clock:        c,
		users:        make(map[string]accounts.Account),
		lastExecuted: make(map[actions.ID]time.Time),
		failures:     make(map[Op]error),
		calls:        make(map[Op]int),
	}
}

func (b *Backend) SeedUsers(list ...accounts.Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range list {
		b.users[a.ID] = a
	}
}

func (b *Backend) SeedPayments(list ...payments.Payment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payments = append(b.payments, list...)
}

func (b *Backend) SetLastExecuted(id actions.ID, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastExecuted[id] = at
}

// Fail makes every later call of op return err. A nil err clears it.
func (b *Backend) Fail(op Op, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, op)
		return
	}
	b.failures[op] = err
}

// OmitEcho makes status and trust updates acknowledge without returning the user.
func (b *Backend) OmitEcho(omit bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.omitEcho = omit
}

// EchoFields makes status and trust updates echo only the named JSON keys of
// the user. With no fields the whole record is echoed again.
func (b *Backend) EchoFields(fields ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.echoFields = nil
	if len(fields) == 0 {
		return
	}
	b.echoFields = make(map[string]bool, len(fields))
	for _, f := range fields {
		b.echoFields[f] = true
	}
}

// echo must be called with mu held.
func (b *Backend) echo(a accounts.Account) *accounts.Echo {
	if b.omitEcho {
		return nil
	}
	e := &accounts.Echo{Account: a}
	if b.echoFields != nil {
		e.Fields = make(map[string]bool, len(b.echoFields))
		for f := range b.echoFields {
			e.Fields[f] = true
		}
		var keep accounts.Account
		if e.Has("id") {
			keep.ID = a.ID
		}
		e.MergeInto(&keep)
		e.Account = keep
	}
	return e
}

// Hold makes Trigger block until the returned release func is called.
func (b *Backend) Hold() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gate = gate
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.gate == gate {
				b.gate = nil
			}
			b.mu.Unlock()
			close(gate)
		})
	}
}

func (b *Backend) Calls(op Op) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *Backend) User(id string) (accounts.Account, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.users[id]
	return a, ok
}

// begin counts the call and returns any injected failure. Must hold mu.
func (b *Backend) begin(op Op) error {
	b.calls[op]++
	return b.failures[op]
}

func (b *Backend) LastExecuted(context.Context) (map[actions.ID]time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpLastExecuted); err != nil {
		return nil, err
	}
	out := make(map[actions.ID]time.Time, len(b.lastExecuted))
	for k, v := range b.lastExecuted {
		out[k] = v
	}
	return out, nil
}

func (b *Backend) Trigger(ctx context.Context, job actions.Job) (string, error) {
	b.mu.Lock()
	err := b.begin(OpTrigger)
	gate := b.gate
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	b.lastExecuted[job.ID] = b.clock.Now()
	b.mu.Unlock()
	return job.Label + " completed successfully", nil
}

func (b *Backend) ListUsers(context.Context) ([]accounts.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpListUsers); err != nil {
		return nil, err
	}
	out := make([]accounts.Account, 0, len(b.users))
	for _, a := range b.users {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *Backend) UpdateStatus(_ context.Context, accountID string, change accounts.StatusChange) (*accounts.Echo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpUpdateStatus); err != nil {
		return nil, err
	}
	a, ok := b.users[accountID]
	if !ok {
		return nil, ErrUserNotFound
	}
	a.Apply(change)
	b.users[accountID] = a
	return b.echo(a), nil
}

func (b *Backend) UpdateTrust(_ context.Context, accountID string, trust bool) (*accounts.Echo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpUpdateTrust); err != nil {
		return nil, err
	}
	a, ok := b.users[accountID]
	if !ok {
		return nil, ErrUserNotFound
	}
	a.Trust = trust
	b.users[accountID] = a
	return b.echo(a), nil
}

func (b *Backend) UpdateWallet(_ context.Context, accountID string, coin float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpUpdateWallet); err != nil {
		return err
	}
	a, ok := b.users[accountID]
	if !ok {
		return ErrUserNotFound
	}
	a.Coin = coin
	b.users[accountID] = a
	return nil
}

func (b *Backend) DeleteUser(_ context.Context, accountID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpDeleteUser); err != nil {
		return err
	}
	if _, ok := b.users[accountID]; !ok {
		return ErrUserNotFound
	}
	delete(b.users, accountID)
	return nil
}

func (b *Backend) ListPayments(context.Context) ([]payments.Payment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpListPayments); err != nil {
		return nil, err
	}
	out := make([]payments.Payment, len(b.payments))
	copy(out, b.payments)
	return out, nil
}

func (b *Backend) SetDue(_ context.Context, paymentID string, due bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpSetDue); err != nil {
		return err
	}
	for i := range b.payments {
		if b.payments[i].ID == paymentID {
			b.payments[i].Due = due
			return nil
		}
	}
	return ErrPaymentNotFound
}
