package academy

import (
	"context"
	"fmt"

	"github.com/irsalhamdi/course-portal/core/certificate"
	"github.com/irsalhamdi/course-portal/core/enrollment"
	"github.com/irsalhamdi/course-portal/core/ledger"
	"github.com/irsalhamdi/course-portal/core/student"
	"github.com/irsalhamdi/course-portal/store"
	"github.com/sirupsen/logrus"
)

// StudentView is a student with its balance and course sets.
type StudentView struct {
	student.Student
	Balance   int64    `json:"balance"`
	Enrolled  []string `json:"enrolled"`
	Completed []string `json:"completed"`
}

// CreateStudent registers a student account controlled by the caller.
func (s *Service) CreateStudent(ctx context.Context) (student.Student, error) {
	owner, err := caller(ctx)
	if err != nil {
		s.metrics.Observe("create_student", err)
		return student.Student{}, err
	}

	st := student.Student{
		ID:        s.newID(),
		Owner:     owner,
		CreatedAt: s.now(),
	}

	err = s.update(ctx, "create_student", func(tx store.Tx) error {
		return tx.CreateStudent(ctx, st)
	})
	if err != nil {
		return student.Student{}, fmt.Errorf("creating student for %q: %w", owner, err)
	}

	s.log.WithFields(logrus.Fields{"student_id": st.ID, "owner": owner}).Info("student created")
	return st, nil
}

func (s *Service) Student(ctx context.Context, id string) (StudentView, error) {
	var v StudentView
	err := s.view(ctx, func(tx store.Tx) error {
		st, err := tx.Student(ctx, id)
		if err != nil {
			return err
		}

		acc, err := tx.Account(ctx, ledger.StudentAccount(id))
		if err != nil {
			return err
		}

		es, err := tx.Enrollments(ctx, id)
		if err != nil {
			return err
		}

		cs, err := tx.Certificates(ctx, id)
		if err != nil {
			return err
		}

		v = StudentView{
			Student:   st,
			Balance:   acc.Balance,
			Enrolled:  enrollment.CourseIDs(es),
			Completed: certificate.CourseIDs(cs),
		}
		return nil
	})
	return v, err
}

// Deposit credits a student's balance. Anyone may deposit.
func (s *Service) Deposit(ctx context.Context, studentID string, amount int64) (ledger.Entry, error) {
	now := s.now()

	var e ledger.Entry
	err := s.update(ctx, "deposit", func(tx store.Tx) error {
		if _, err := tx.Student(ctx, studentID); err != nil {
			return fmt.Errorf("fetching student[%s]: %w", studentID, err)
		}

		var err error
		e, err = ledger.Deposit(ctx, tx, ledger.StudentAccount(studentID), s.posting(amount, "student deposit", now))
		return err
	})
	if err != nil {
		return ledger.Entry{}, err
	}

	s.metrics.Moved(e)
	s.log.WithFields(logrus.Fields{"student_id": studentID, "amount": amount}).Info("deposit")
	return e, nil
}

// Enrolled lists the student's enrolled course ids in enrollment order.
func (s *Service) Enrolled(ctx context.Context, studentID string) ([]string, error) {
	var ids []string
	err := s.view(ctx, func(tx store.Tx) error {
		if _, err := tx.Student(ctx, studentID); err != nil {
			return err
		}

		es, err := tx.Enrollments(ctx, studentID)
		if err != nil {
			return err
		}
		ids = enrollment.CourseIDs(es)
		return nil
	})
	return ids, err
}

// Completed lists the student's completed course ids in completion order.
func (s *Service) Completed(ctx context.Context, studentID string) ([]string, error) {
	var ids []string
	err := s.view(ctx, func(tx store.Tx) error {
		if _, err := tx.Student(ctx, studentID); err != nil {
			return err
		}

		cs, err := tx.Certificates(ctx, studentID)
		if err != nil {
			return err
		}
		ids = certificate.CourseIDs(cs)
		return nil
	})
	return ids, err
}
