package ledger

import (
	"context"
	"time"
)

// AccountID names a balance holder. Portals, students and educators each
// live in their own namespace.
type AccountID string

func PortalAccount(portalID string) AccountID { return AccountID("portal:" + portalID) }

func StudentAccount(studentID string) AccountID { return AccountID("student:" + studentID) }

func EducatorAccount(address string) AccountID { return AccountID("educator:" + address) }

type Account struct {
	ID        AccountID `json:"id" db:"account_id"`
	Balance   int64     `json:"balance" db:"balance"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindTransfer   Kind = "transfer"
	KindWithdrawal Kind = "withdrawal"
)

// Entry is one journal line. From is empty for deposits and To is empty for
// withdrawals.
type Entry struct {
	ID        string    `json:"id" db:"entry_id"`
	Kind      Kind      `json:"kind" db:"kind"`
	From      AccountID `json:"from,omitempty" db:"from_account"`
	To        AccountID `json:"to,omitempty" db:"to_account"`
	Amount    int64     `json:"amount" db:"amount"`
	Memo      string    `json:"memo" db:"memo"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Book is the storage a ledger operation runs against. Account must return
// a zero balance account for an id it has never seen.
type Book interface {
	Account(ctx context.Context, id AccountID) (Account, error)
	SaveAccount(ctx context.Context, acc Account) error
	AppendEntry(ctx context.Context, e Entry) error
}
