package academy

import (
	"context"
	"fmt"

	"github.com/irsalhamdi/course-portal/core/capability"
	"github.com/irsalhamdi/course-portal/core/failure"
	"github.com/irsalhamdi/course-portal/core/ledger"
	"github.com/irsalhamdi/course-portal/core/portal"
	"github.com/irsalhamdi/course-portal/store"
	"github.com/sirupsen/logrus"
)

// CreatePortal registers a portal owned by the caller and returns the owner
// capability. The token inside it is not stored and cannot be recovered.
func (s *Service) CreatePortal(ctx context.Context) (portal.Portal, capability.Capability, error) {
	owner, err := caller(ctx)
	if err != nil {
		s.metrics.Observe("create_portal", err)
		return portal.Portal{}, capability.Capability{}, err
	}

	id := s.newID()
	cp, hash, err := capability.Issue(id, owner, s.capCost)
	if err != nil {
		return portal.Portal{}, capability.Capability{}, fmt.Errorf("issuing owner capability: %w", err)
	}

	p := portal.Portal{
		ID:        id,
		Owner:     owner,
		CapHash:   hash,
		CreatedAt: s.now(),
	}

	err = s.update(ctx, "create_portal", func(tx store.Tx) error {
		return tx.CreatePortal(ctx, p)
	})
	if err != nil {
		return portal.Portal{}, capability.Capability{}, fmt.Errorf("creating portal for %q: %w", owner, err)
	}

	s.log.WithFields(logrus.Fields{"portal_id": p.ID, "owner": owner}).Info("portal created")
	return p, cp, nil
}

func (s *Service) Portal(ctx context.Context, id string) (portal.Portal, error) {
	var p portal.Portal
	err := s.view(ctx, func(tx store.Tx) error {
		var err error
		p, err = tx.Portal(ctx, id)
		return err
	})
	return p, err
}

// AddAdministrator lets the owner grant identity administrator rights and
// returns the capability the new administrator authenticates with.
func (s *Service) AddAdministrator(ctx context.Context, c capability.Capability, identity string) (capability.Capability, error) {
	if identity == "" {
		err := fmt.Errorf("%w: administrator identity is empty", failure.ErrInvalidInput)
		s.metrics.Observe("add_administrator", err)
		return capability.Capability{}, err
	}

	cp, hash, err := capability.Issue(c.PortalID, identity, s.capCost)
	if err != nil {
		return capability.Capability{}, fmt.Errorf("issuing administrator capability: %w", err)
	}

	err = s.update(ctx, "add_administrator", func(tx store.Tx) error {
		p, err := authorize(ctx, tx, c, portal.RoleOwner)
		if err != nil {
			return err
		}

		if identity == p.Owner {
			return fmt.Errorf("%w: %q already owns portal[%s]", failure.ErrInvalidInput, identity, p.ID)
		}

		_, err = tx.Administrator(ctx, p.ID, identity)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %q is already an administrator of portal[%s]", failure.ErrInvalidInput, identity, p.ID)
		case !isNotFound(err):
			return fmt.Errorf("fetching administrator: %w", err)
		}

		a := portal.Administrator{
			PortalID:  p.ID,
			Identity:  identity,
			CapHash:   hash,
			CreatedAt: s.now(),
		}
		return tx.CreateAdministrator(ctx, a)
	})
	if err != nil {
		return capability.Capability{}, err
	}

	s.log.WithFields(logrus.Fields{"portal_id": c.PortalID, "administrator": identity}).Info("administrator added")
	return cp, nil
}

// RemoveAdministrator revokes identity's rights; its capability stops
// working immediately.
func (s *Service) RemoveAdministrator(ctx context.Context, c capability.Capability, identity string) error {
	err := s.update(ctx, "remove_administrator", func(tx store.Tx) error {
		p, err := authorize(ctx, tx, c, portal.RoleOwner)
		if err != nil {
			return err
		}

		if err := tx.DeleteAdministrator(ctx, p.ID, identity); err != nil {
			return fmt.Errorf("removing administrator[%s]: %w", identity, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"portal_id": c.PortalID, "administrator": identity}).Info("administrator removed")
	return nil
}

// Administrators lists a portal's administrators in the order they were added.
func (s *Service) Administrators(ctx context.Context, portalID string) ([]string, error) {
	var ids []string
	err := s.view(ctx, func(tx store.Tx) error {
		if _, err := tx.Portal(ctx, portalID); err != nil {
			return err
		}

		as, err := tx.Administrators(ctx, portalID)
		if err != nil {
			return err
		}

		ids = make([]string, 0, len(as))
		for _, a := range as {
			ids = append(ids, a.Identity)
		}
		return nil
	})
	return ids, err
}

// FundPortal deposits into a portal's balance, which backs refunds.
func (s *Service) FundPortal(ctx context.Context, portalID string, amount int64) (ledger.Entry, error) {
	now := s.now()

	var e ledger.Entry
	err := s.update(ctx, "fund_portal", func(tx store.Tx) error {
		if _, err := tx.Portal(ctx, portalID); err != nil {
			return fmt.Errorf("fetching portal[%s]: %w", portalID, err)
		}

		var err error
		e, err = ledger.Deposit(ctx, tx, ledger.PortalAccount(portalID), s.posting(amount, "portal funding", now))
		return err
	})
	if err != nil {
		return ledger.Entry{}, err
	}

	s.metrics.Moved(e)
	s.log.WithFields(logrus.Fields{"portal_id": portalID, "amount": amount}).Info("portal funded")
	return e, nil
}

// Withdraw moves amount out of the portal balance. Owner or administrator.
func (s *Service) Withdraw(ctx context.Context, c capability.Capability, amount int64) (ledger.Entry, error) {
	now := s.now()

	var e ledger.Entry
	err := s.update(ctx, "withdraw", func(tx store.Tx) error {
		p, err := authorize(ctx, tx, c, portal.RoleOwner, portal.RoleAdmin)
		if err != nil {
			return err
		}

		memo := fmt.Sprintf("withdrawal by %s", c.Holder)
		e, err = ledger.Withdraw(ctx, tx, ledger.PortalAccount(p.ID), s.posting(amount, memo, now))
		return err
	})
	if err != nil {
		return ledger.Entry{}, err
	}

	s.metrics.Moved(e)
	s.log.WithFields(logrus.Fields{"portal_id": c.PortalID, "holder": c.Holder, "amount": amount}).Info("portal withdrawal")
	return e, nil
}

// WithdrawEarnings moves amount out of the caller's educator balance.
func (s *Service) WithdrawEarnings(ctx context.Context, amount int64) (ledger.Entry, error) {
	educator, err := caller(ctx)
	if err != nil {
		s.metrics.Observe("withdraw_earnings", err)
		return ledger.Entry{}, err
	}
	now := s.now()

	var e ledger.Entry
	err = s.update(ctx, "withdraw_earnings", func(tx store.Tx) error {
		var err error
		e, err = ledger.Withdraw(ctx, tx, ledger.EducatorAccount(educator), s.posting(amount, "educator payout", now))
		return err
	})
	if err != nil {
		return ledger.Entry{}, err
	}

	s.metrics.Moved(e)
	s.log.WithFields(logrus.Fields{"educator": educator, "amount": amount}).Info("educator payout")
	return e, nil
}
