// Package ledger moves units of the portal's single asset between accounts.
//
// Every function expects b to be a transactional view: a failed call may
// have written one side of a transfer, and it is the surrounding transaction
// that guarantees nothing of it survives.
package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/irsalhamdi/course-portal/core/failure"
)

// Posting carries what every journal line needs besides its accounts.
type Posting struct {
	ID     string
	Amount int64
	Memo   string
	At     time.Time
}

// Deposit credits an inflow from outside the system.
func Deposit(ctx context.Context, b Book, to AccountID, p Posting) (Entry, error) {
	if p.Amount <= 0 {
		return Entry{}, fmt.Errorf("%w: deposit amount must be positive, got %d", failure.ErrInvalidInput, p.Amount)
	}

	acc, err := b.Account(ctx, to)
	if err != nil {
		return Entry{}, fmt.Errorf("fetching account[%s]: %w", to, err)
	}

	if err := credit(&acc, p.Amount); err != nil {
		return Entry{}, err
	}
	acc.UpdatedAt = p.At

	if err := b.SaveAccount(ctx, acc); err != nil {
		return Entry{}, fmt.Errorf("saving account[%s]: %w", to, err)
	}

	return record(ctx, b, Entry{Kind: KindDeposit, To: to}, p)
}

// Transfer moves amount from one account to another. A zero amount is
// allowed and still journaled.
func Transfer(ctx context.Context, b Book, from, to AccountID, p Posting) (Entry, error) {
	if p.Amount < 0 {
		return Entry{}, fmt.Errorf("%w: transfer amount must not be negative, got %d", failure.ErrInvalidInput, p.Amount)
	}

	src, err := b.Account(ctx, from)
	if err != nil {
		return Entry{}, fmt.Errorf("fetching account[%s]: %w", from, err)
	}

	if err := debit(&src, p.Amount); err != nil {
		return Entry{}, err
	}

	if from == to {
		src.Balance += p.Amount
	}
	src.UpdatedAt = p.At

	if from != to {
		dst, err := b.Account(ctx, to)
		if err != nil {
			return Entry{}, fmt.Errorf("fetching account[%s]: %w", to, err)
		}

		if err := credit(&dst, p.Amount); err != nil {
			return Entry{}, err
		}
		dst.UpdatedAt = p.At

		if err := b.SaveAccount(ctx, dst); err != nil {
			return Entry{}, fmt.Errorf("saving account[%s]: %w", to, err)
		}
	}

	if err := b.SaveAccount(ctx, src); err != nil {
		return Entry{}, fmt.Errorf("saving account[%s]: %w", from, err)
	}

	return record(ctx, b, Entry{Kind: KindTransfer, From: from, To: to}, p)
}

// Withdraw removes amount from the system. Callers are responsible for
// checking who may do so.
func Withdraw(ctx context.Context, b Book, from AccountID, p Posting) (Entry, error) {
	if p.Amount <= 0 {
		return Entry{}, fmt.Errorf("%w: withdrawal amount must be positive, got %d", failure.ErrInvalidInput, p.Amount)
	}

	acc, err := b.Account(ctx, from)
	if err != nil {
		return Entry{}, fmt.Errorf("fetching account[%s]: %w", from, err)
	}

	if err := debit(&acc, p.Amount); err != nil {
		return Entry{}, err
	}
	acc.UpdatedAt = p.At

	if err := b.SaveAccount(ctx, acc); err != nil {
		return Entry{}, fmt.Errorf("saving account[%s]: %w", from, err)
	}

	return record(ctx, b, Entry{Kind: KindWithdrawal, From: from}, p)
}

func credit(acc *Account, amount int64) error {
	if acc.Balance > math.MaxInt64-amount {
		return fmt.Errorf("%w: crediting %d overflows account[%s]", failure.ErrInvalidInput, amount, acc.ID)
	}
	acc.Balance += amount
	return nil
}

func debit(acc *Account, amount int64) error {
	if amount > acc.Balance {
		return fmt.Errorf("%w: account[%s] holds %d, needs %d", failure.ErrInsufficientBalance, acc.ID, acc.Balance, amount)
	}
	acc.Balance -= amount
	return nil
}

func record(ctx context.Context, b Book, e Entry, p Posting) (Entry, error) {
	e.ID = p.ID
	e.Amount = p.Amount
	e.Memo = p.Memo
	e.CreatedAt = p.At

	if err := b.AppendEntry(ctx, e); err != nil {
		return Entry{}, fmt.Errorf("appending %s entry: %w", e.Kind, err)
	}
	return e, nil
}
