package academy_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/irsalhamdi/course-portal/core/capability"
	"github.com/irsalhamdi/course-portal/core/course"
	"github.com/irsalhamdi/course-portal/core/failure"
	"github.com/irsalhamdi/course-portal/core/ledger"
	"github.com/irsalhamdi/course-portal/core/student"
)

func TestCatalog(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cp := e.portal(t, "owner")
	admin, err := e.svc.AddAdministrator(ctx, cp, "admin")
	if err != nil {
		t.Fatal(err)
	}

	first := e.course(t, cp, 10, time.Hour)
	second := e.course(t, admin, 20, time.Hour)

	_, err = e.svc.AddCourse(ctx, cp, course.CourseNew{Title: "No URL", Educator: "0xeducator"})
	expectErr(t, err, failure.ErrInvalidInput)

	_, err = e.svc.AddCourse(ctx, cp, course.CourseNew{Title: "Negative", URL: "u", Educator: "e", Price: -1})
	expectErr(t, err, failure.ErrInvalidInput)

	rival := e.portal(t, "rival")
	_, err = e.svc.UpdateCourse(ctx, rival, first.ID, course.CourseUp{})
	expectErr(t, err, failure.ErrNotFound)

	title := "Consensus"
	_, err = e.svc.UpdateCourse(ctx, admin, first.ID, course.CourseUp{Title: &title})
	expectErr(t, err, failure.ErrUnauthorized)

	empty := ""
	_, err = e.svc.UpdateCourse(ctx, cp, first.ID, course.CourseUp{Title: &empty})
	expectErr(t, err, failure.ErrInvalidInput)

	price := int64(15)
	updated, err := e.svc.UpdateCourse(ctx, cp, first.ID, course.CourseUp{Title: &title, Price: &price})
	if err != nil {
		t.Fatalf("updating course: %v", err)
	}
	if updated.Title != title || updated.Price != 15 || updated.URL != first.URL {
		t.Fatalf("unexpected updated course %+v", updated)
	}

	cs, err := e.svc.Courses(ctx, cp.PortalID)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 2 || cs[0].ID != first.ID || cs[1].ID != second.ID {
		t.Fatalf("unexpected catalog order %+v", cs)
	}

	err = e.svc.RemoveCourse(ctx, admin, second.ID)
	expectErr(t, err, failure.ErrUnauthorized)

	if err := e.svc.RemoveCourse(ctx, cp, second.ID); err != nil {
		t.Fatalf("removing course: %v", err)
	}
	_, err = e.svc.Course(ctx, second.ID)
	expectErr(t, err, failure.ErrNotFound)
}

func TestRemoveCourseWithReceipts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cp := e.portal(t, "owner")
	c := e.course(t, cp, 25, time.Hour)
	s := e.student(t, "alice", 25)

	if _, err := e.svc.Enroll(as("alice"), s.ID, c.ID); err != nil {
		t.Fatal(err)
	}

	err := e.svc.RemoveCourse(ctx, cp, c.ID)
	expectErr(t, err, failure.ErrInvalidInput)

	if _, err := e.svc.Course(ctx, c.ID); err != nil {
		t.Fatalf("course vanished after refused removal: %v", err)
	}
}

// TestConservation runs a seeded random mix of operations and checks that
// deposits minus withdrawals, portal and educator alike, always equals the
// sum of all balances.
func TestConservation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(7))

	owners := []string{"o1", "o2"}
	var caps []capability.Capability
	for _, o := range owners {
		caps = append(caps, e.portal(t, o))
	}

	var courses []course.Course
	for i := 0; i < 6; i++ {
		courses = append(courses, e.course(t, caps[i%len(caps)], int64(rnd.Intn(50)), 0))
	}

	var students []student.Student
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		students = append(students, e.student(t, id, 0))
	}

	var in, out int64
	for i := 0; i < 400; i++ {
		amount := int64(rnd.Intn(60))
		st := students[rnd.Intn(len(students))]
		crs := courses[rnd.Intn(len(courses))]
		cp := caps[rnd.Intn(len(caps))]

		switch rnd.Intn(7) {
		case 0:
			if en, err := e.svc.Deposit(ctx, st.ID, amount); err == nil {
				in += en.Amount
			}
		case 1:
			if en, err := e.svc.FundPortal(ctx, cp.PortalID, amount); err == nil {
				in += en.Amount
			}
		case 2:
			e.svc.Enroll(as(st.Owner), st.ID, crs.ID)
		case 3:
			e.svc.GetCertificate(as(st.Owner), st.ID, crs.ID, "")
		case 4:
			e.svc.Refund(ctx, cp, st.ID, crs.ID)
		case 5:
			if en, err := e.svc.Withdraw(ctx, cp, amount); err == nil {
				out += en.Amount
			}
		case 6:
			if en, err := e.svc.WithdrawEarnings(as("0xeducator"), amount); err == nil {
				out += en.Amount
			}
		}

		var total int64
		for _, c := range caps {
			total += e.balance(t, ledger.PortalAccount(c.PortalID))
		}
		for _, s := range students {
			total += e.balance(t, ledger.StudentAccount(s.ID))
		}
		total += e.balance(t, ledger.EducatorAccount("0xeducator"))

		if total != in-out {
			t.Fatalf("step %d: balances sum to %d, expected %d", i, total, in-out)
		}
	}
}
