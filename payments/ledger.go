// Package payments holds the wallet-deposit ledger and its one privileged
// mutation, the due flag.
package payments

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Payment is one wallet deposit as reported by the backend.
type Payment struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	Amount      float64    `json:"amount"`
	Method      string     `json:"method"`
	UTRNumber   string     `json:"utr_number"`
	Status      string     `json:"status"`
	Due         bool       `json:"due"`
	PaymentDate *time.Time `json:"payment_date,omitempty"`
}

type Stats struct {
	Total       int     `json:"total"`
	Pending     int     `json:"pending"`
	Completed   int     `json:"completed"`
	Due         int     `json:"due"`
	TotalAmount float64 `json:"total_amount"`
}

type Backend interface {
	ListPayments(ctx context.Context) ([]Payment, error)
	SetDue(ctx context.Context, paymentID string, due bool) error
}

type Ledger struct {
	backend Backend
	logger  zerolog.Logger

	mu       sync.RWMutex
	payments []Payment
	index    map[string]int
}

type Option func(*Ledger)

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func NewLedger(backend Backend, options ...Option) *Ledger {
	l := &Ledger{
		backend: backend,
		logger:  zerolog.Nop(),
		index:   make(map[string]int),
	}
	for _, option := range options {
		option(l)
	}
	return l
}

// Load replaces the ledger with the backend's list, keeping its order.
func (l *Ledger) Load(ctx context.Context) error {
	list, err := l.backend.ListPayments(ctx)
	if err != nil {
		l.logger.Err(err).Msg("payment list load failed")
		return errors.Wrap(err, "[Ledger.Load] backend.ListPayments")
	}

	index := make(map[string]int, len(list))
	for i, p := range list {
		index[p.ID] = i
	}

	l.mu.Lock()
	l.payments = list
	l.index = index
	l.mu.Unlock()
	return nil
}

func (l *Ledger) List() []Payment {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Payment, len(l.payments))
	copy(out, l.payments)
	return out
}

func (l *Ledger) Get(paymentID string) (Payment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.index[paymentID]
	if !ok {
		return Payment{}, errors.Wrap(adminerrors.ErrPaymentNotFound, paymentID)
	}
	return l.payments[i], nil
}

// SetDue commits the due flag. The local copy changes only after the backend accepts it.
func (l *Ledger) SetDue(ctx context.Context, paymentID string, due bool) (Payment, error) {
	if _, err := l.Get(paymentID); err != nil {
		return Payment{}, err
	}

	if err := l.backend.SetDue(ctx, paymentID, due); err != nil {
		l.logger.Err(err).Str("payment_id", paymentID).Msg("due flag update failed")
		return Payment{}, &adminerrors.CommitError{AccountID: paymentID, Field: "due", Message: err.Error()}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.index[paymentID]
	if !ok {
		return Payment{}, errors.Wrap(adminerrors.ErrPaymentNotFound, paymentID)
	}
	l.payments[i].Due = due
	l.logger.Info().Str("payment_id", paymentID).Bool("due", due).Msg("due flag updated")
	return l.payments[i], nil
}

func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{Total: len(l.payments)}
	for _, p := range l.payments {
		switch p.Status {
		case StatusPending:
			s.Pending++
		case StatusCompleted:
			s.Completed++
		}
		if p.Due {
			s.Due++
		}
		s.TotalAmount += p.Amount
	}
	return s
}
