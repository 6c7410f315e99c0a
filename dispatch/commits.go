package dispatch

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jrsteele09/quiz-admin/accounts"
	"github.com/jrsteele09/quiz-admin/payments"
)

var (
	errNoAccounts = errors.New("dispatcher has no account machine")
	errNoPayments = errors.New("dispatcher has no payment ledger")
)

func (d *Dispatcher) observeCommit(field, accountID string, err error) {
	if err != nil {
		d.metrics.Commit(field, "fail")
		return
	}
	d.metrics.Commit(field, "success")
	d.logger.Debug().Str("field", field).Str("id", accountID).Msg("commit recorded")
}

// CommitStatus commits the account's staged status. Commits on different
// accounts are independent; on one account the last response wins.
// Like Dispatch, commits are not cancelled by ctx once sent.
func (d *Dispatcher) CommitStatus(ctx context.Context, accountID string) (accounts.Record, error) {
	if d.accounts == nil {
		return accounts.Record{}, errNoAccounts
	}
	rec, err := d.accounts.CommitStatus(context.WithoutCancel(ctx), accountID)
	d.observeCommit("status", accountID, err)
	return rec, err
}

func (d *Dispatcher) CommitTrust(ctx context.Context, accountID string) (accounts.Record, error) {
	if d.accounts == nil {
		return accounts.Record{}, errNoAccounts
	}
	rec, err := d.accounts.CommitTrust(context.WithoutCancel(ctx), accountID)
	d.observeCommit("trust", accountID, err)
	return rec, err
}

func (d *Dispatcher) SetWallet(ctx context.Context, accountID string, coin float64) (accounts.Record, error) {
	if d.accounts == nil {
		return accounts.Record{}, errNoAccounts
	}
	rec, err := d.accounts.SetWallet(context.WithoutCancel(ctx), accountID, coin)
	d.observeCommit("wallet", accountID, err)
	return rec, err
}

func (d *Dispatcher) DeleteAccount(ctx context.Context, accountID string) error {
	if d.accounts == nil {
		return errNoAccounts
	}
	err := d.accounts.Delete(context.WithoutCancel(ctx), accountID)
	d.observeCommit("delete", accountID, err)
	return err
}

func (d *Dispatcher) SetDue(ctx context.Context, paymentID string, due bool) (payments.Payment, error) {
	if d.payments == nil {
		return payments.Payment{}, errNoPayments
	}
	p, err := d.payments.SetDue(context.WithoutCancel(ctx), paymentID, due)
	d.observeCommit("due", paymentID, err)
	return p, err
}
