// Package academy runs the portal's state transitions: catalog management,
// deposits, enrollment, completion certificates, withdrawals and refunds.
//
// Each exported operation executes inside a single store transaction and
// re-checks all of its preconditions there, in a fixed order. The first
// failing precondition is the error the caller sees and nothing is written.
package academy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/course-portal/core/capability"
	"github.com/irsalhamdi/course-portal/core/claims"
	"github.com/irsalhamdi/course-portal/core/failure"
	"github.com/irsalhamdi/course-portal/core/ledger"
	"github.com/irsalhamdi/course-portal/core/portal"
	"github.com/irsalhamdi/course-portal/metrics"
	"github.com/irsalhamdi/course-portal/store"
	"github.com/irsalhamdi/course-portal/validate"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Store   store.Store
	Log     logrus.FieldLogger
	Metrics *metrics.Metrics

	// Clock must never go backwards. Defaults to UTC wall time.
	Clock func() time.Time
	// NewID generates identifiers for new records. Defaults to uuids.
	NewID func() string
	// CapabilityCost is the bcrypt cost used to hash capability tokens.
	CapabilityCost int
}

type Service struct {
	store   store.Store
	log     logrus.FieldLogger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
	capCost int
}

func New(cfg Config) *Service {
	s := &Service{
		store:   cfg.Store,
		log:     cfg.Log,
		metrics: cfg.Metrics,
		now:     cfg.Clock,
		newID:   cfg.NewID,
		capCost: cfg.CapabilityCost,
	}

	if s.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		s.log = l
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = validate.GenerateID
	}

	return s
}

func (s *Service) update(ctx context.Context, op string, fn func(store.Tx) error) error {
	err := s.store.Update(ctx, fn)
	s.metrics.Observe(op, err)
	return err
}

func (s *Service) view(ctx context.Context, fn func(store.Tx) error) error {
	return s.store.View(ctx, fn)
}

func (s *Service) posting(amount int64, memo string, at time.Time) ledger.Posting {
	return ledger.Posting{ID: s.newID(), Amount: amount, Memo: memo, At: at}
}

// caller returns the authenticated identity behind ctx.
func caller(ctx context.Context) (string, error) {
	id, err := claims.Identity(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", failure.ErrUnauthorized, err)
	}
	return id, nil
}

// authorize resolves the role c holds on its portal and checks it against
// allowed. A capability for a portal that does not exist is unauthorized.
func authorize(ctx context.Context, tx store.Tx, c capability.Capability, allowed ...portal.Role) (portal.Portal, error) {
	p, err := tx.Portal(ctx, c.PortalID)
	if err != nil {
		if errors.Is(err, failure.ErrNotFound) {
			return portal.Portal{}, fmt.Errorf("%w: unknown portal[%s]", failure.ErrUnauthorized, c.PortalID)
		}
		return portal.Portal{}, fmt.Errorf("fetching portal[%s]: %w", c.PortalID, err)
	}

	var admin *portal.Administrator
	if c.Holder != p.Owner {
		a, err := tx.Administrator(ctx, p.ID, c.Holder)
		switch {
		case err == nil:
			admin = &a
		case !errors.Is(err, failure.ErrNotFound):
			return portal.Portal{}, fmt.Errorf("fetching administrator[%s]: %w", c.Holder, err)
		}
	}

	role, err := p.RoleOf(c, admin)
	if err != nil {
		return portal.Portal{}, err
	}

	if err := portal.Allow(role, allowed...); err != nil {
		return portal.Portal{}, err
	}
	return p, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, failure.ErrNotFound)
}

// Balance returns the balance of any ledger account.
func (s *Service) Balance(ctx context.Context, id ledger.AccountID) (int64, error) {
	var bal int64
	err := s.view(ctx, func(tx store.Tx) error {
		acc, err := tx.Account(ctx, id)
		if err != nil {
			return fmt.Errorf("fetching account[%s]: %w", id, err)
		}
		bal = acc.Balance
		return nil
	})
	return bal, err
}

// Entries lists the journal lines touching an account, oldest first.
func (s *Service) Entries(ctx context.Context, id ledger.AccountID) ([]ledger.Entry, error) {
	var es []ledger.Entry
	err := s.view(ctx, func(tx store.Tx) error {
		var err error
		es, err = tx.Entries(ctx, id)
		return err
	})
	return es, err
}
