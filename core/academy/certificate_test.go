package academy_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/irsalhamdi/course-portal/core/academy"
	"github.com/irsalhamdi/course-portal/core/course"
	"github.com/irsalhamdi/course-portal/core/failure"
	"github.com/irsalhamdi/course-portal/store"
	"github.com/irsalhamdi/course-portal/store/memstore"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

func TestCertificateBoundary(t *testing.T) {
	e := newEnv(t)

	cp := e.portal(t, "owner")
	c := e.course(t, cp, 10, 500*time.Millisecond)
	s := e.student(t, "alice", 10)
	ctx := as("alice")

	e.clock.setMillis(100)
	r, err := e.svc.Enroll(ctx, s.ID, c.ID)
	if err != nil {
		t.Fatal(err)
	}

	e.clock.setMillis(599)
	_, err = e.svc.GetCertificate(ctx, s.ID, c.ID, r.ID)
	expectErr(t, err, failure.ErrIncompleteCourseDuration)

	e.clock.setMillis(600)
	if _, err := e.svc.GetCertificate(ctx, s.ID, c.ID, r.ID); err != nil {
		t.Fatalf("certificate at exactly paid+duration: %v", err)
	}
}

func TestCertificateOnce(t *testing.T) {
	e := newEnv(t)

	cp := e.portal(t, "owner")
	c := e.course(t, cp, 10, 0)
	s := e.student(t, "alice", 10)
	ctx := as("alice")

	r, err := e.svc.Enroll(ctx, s.ID, c.ID)
	if err != nil {
		t.Fatal(err)
	}

	first, err := e.svc.GetCertificate(ctx, s.ID, c.ID, r.ID)
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.svc.GetCertificate(ctx, s.ID, c.ID, r.ID)
	expectErr(t, err, failure.ErrAlreadyCompleted)

	completed, err := e.svc.Completed(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(completed) != 1 {
		t.Fatalf("expected one completed course, got %v", completed)
	}

	got, err := e.svc.Certificate(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("fetching certificate: %v", err)
	}
	if got.ReceiptID != r.ID || got.StudentID != s.ID {
		t.Fatalf("unexpected stored certificate %+v", got)
	}
}

func TestCertificatePreconditions(t *testing.T) {
	e := newEnv(t)

	cp := e.portal(t, "owner")
	c1 := e.course(t, cp, 10, time.Hour)
	c2 := e.course(t, cp, 10, time.Hour)
	alice := e.student(t, "alice", 100)
	bob := e.student(t, "bob", 100)

	ra, err := e.svc.Enroll(as("alice"), alice.ID, c1.ID)
	if err != nil {
		t.Fatal(err)
	}
	rb, err := e.svc.Enroll(as("bob"), bob.ID, c1.ID)
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.svc.GetCertificate(as("bob"), alice.ID, c1.ID, ra.ID)
	expectErr(t, err, failure.ErrUnauthorized)

	// bob's receipt presented for alice
	_, err = e.svc.GetCertificate(as("alice"), alice.ID, c1.ID, rb.ID)
	expectErr(t, err, failure.ErrInvalidCourse)

	// alice's receipt presented for another course
	_, err = e.svc.GetCertificate(as("alice"), alice.ID, c2.ID, ra.ID)
	expectErr(t, err, failure.ErrInvalidCourse)

	// not enrolled, no receipt to resolve
	_, err = e.svc.GetCertificate(as("alice"), alice.ID, c2.ID, "")
	expectErr(t, err, failure.ErrInvalidCourse)

	// receipt ownership is checked before duration
	_, err = e.svc.GetCertificate(as("alice"), alice.ID, c1.ID, "unknown")
	expectErr(t, err, failure.ErrInvalidCourse)

	_, err = e.svc.GetCertificate(as("alice"), alice.ID, c1.ID, "")
	expectErr(t, err, failure.ErrIncompleteCourseDuration)
}

func TestCertificateApproval(t *testing.T) {
	e := newEnv(t)

	cp := e.portal(t, "owner")
	c, err := e.svc.AddCourse(context.Background(), cp, course.CourseNew{
		Title:            "Audited",
		URL:              "https://example.com/audited",
		Educator:         "0xeducator",
		Price:            10,
		Duration:         time.Second,
		RequiresApproval: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	s := e.student(t, "alice", 10)
	ctx := as("alice")

	if _, err := e.svc.Enroll(ctx, s.ID, c.ID); err != nil {
		t.Fatal(err)
	}

	// duration is checked before approval
	_, err = e.svc.GetCertificate(ctx, s.ID, c.ID, "")
	expectErr(t, err, failure.ErrIncompleteCourseDuration)

	e.clock.setMillis(1000)
	_, err = e.svc.GetCertificate(ctx, s.ID, c.ID, "")
	expectErr(t, err, failure.ErrUnauthorized)

	err = e.svc.ApproveCompletion(context.Background(), cp, "missing", c.ID)
	expectErr(t, err, failure.ErrNotFound)

	if err := e.svc.ApproveCompletion(context.Background(), cp, s.ID, c.ID); err != nil {
		t.Fatalf("approving: %v", err)
	}

	if _, err := e.svc.GetCertificate(ctx, s.ID, c.ID, ""); err != nil {
		t.Fatalf("certificate after approval: %v", err)
	}
}

var errConflict = errors.New("conflicting transaction")

// conflictStore fails the next Update after fn has run, lets interleave
// commit other work, then runs fn again the way pgstore retries a
// serialization failure.
type conflictStore struct {
	*memstore.Store
	interleave func()
}

func (s *conflictStore) Update(ctx context.Context, fn func(store.Tx) error) error {
	interleave := s.interleave
	if interleave == nil {
		return s.Store.Update(ctx, fn)
	}
	s.interleave = nil

	err := s.Store.Update(ctx, func(tx store.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return errConflict
	})
	if !errors.Is(err, errConflict) {
		return err
	}

	interleave()
	return s.Store.Update(ctx, fn)
}

func TestCertificateRetryRereadsReceipt(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	st := &conflictStore{Store: memstore.New()}
	svc := academy.New(academy.Config{Store: st, Log: log, CapabilityCost: bcrypt.MinCost})
	ctx := context.Background()

	_, cp, err := svc.CreatePortal(as("owner"))
	if err != nil {
		t.Fatal(err)
	}
	c, err := svc.AddCourse(ctx, cp, course.CourseNew{Title: "T", URL: "u", Educator: "0xeducator", Price: 10})
	if err != nil {
		t.Fatal(err)
	}
	s, err := svc.CreateStudent(as("alice"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Deposit(ctx, s.ID, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.FundPortal(ctx, cp.PortalID, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Enroll(as("alice"), s.ID, c.ID); err != nil {
		t.Fatal(err)
	}

	var second string
	st.interleave = func() {
		if _, err := svc.Refund(ctx, cp, s.ID, c.ID); err != nil {
			t.Fatalf("refunding between attempts: %v", err)
		}
		r, err := svc.Enroll(as("alice"), s.ID, c.ID)
		if err != nil {
			t.Fatalf("re-enrolling between attempts: %v", err)
		}
		second = r.ID
	}

	cert, err := svc.GetCertificate(as("alice"), s.ID, c.ID, "")
	if err != nil {
		t.Fatalf("certificate after retry: %v", err)
	}
	if cert.ReceiptID != second {
		t.Fatalf("certificate references receipt %q, expected the current receipt %q", cert.ReceiptID, second)
	}
}
