package academy

import (
	"context"
	"fmt"

	"github.com/irsalhamdi/course-portal/core/capability"
	"github.com/irsalhamdi/course-portal/core/enrollment"
	"github.com/irsalhamdi/course-portal/core/failure"
	"github.com/irsalhamdi/course-portal/core/ledger"
	"github.com/irsalhamdi/course-portal/core/portal"
	"github.com/irsalhamdi/course-portal/core/receipt"
	"github.com/irsalhamdi/course-portal/core/student"
	"github.com/irsalhamdi/course-portal/store"
	"github.com/sirupsen/logrus"
)

// ownedStudent fetches a student the caller must control.
func ownedStudent(ctx context.Context, tx store.Tx, identity, studentID string) (student.Student, error) {
	st, err := tx.Student(ctx, studentID)
	if err != nil {
		return student.Student{}, fmt.Errorf("fetching student[%s]: %w", studentID, err)
	}
	if !st.Owned(identity) {
		return student.Student{}, fmt.Errorf("%w: %q does not control student[%s]", failure.ErrUnauthorized, identity, studentID)
	}
	return st, nil
}

// Enroll pays for a course out of the student's balance and records the
// enrollment. The price goes straight to the course educator; the portal
// balance is not involved.
func (s *Service) Enroll(ctx context.Context, studentID, courseID string) (receipt.Receipt, error) {
	identity, err := caller(ctx)
	if err != nil {
		s.metrics.Observe("enroll", err)
		return receipt.Receipt{}, err
	}
	now := s.now()

	var (
		rcpt  receipt.Receipt
		entry ledger.Entry
	)
	err = s.update(ctx, "enroll", func(tx store.Tx) error {
		if _, err := ownedStudent(ctx, tx, identity, studentID); err != nil {
			return err
		}

		crs, err := tx.Course(ctx, courseID)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: course[%s] does not exist", failure.ErrInvalidCourse, courseID)
			}
			return fmt.Errorf("fetching course[%s]: %w", courseID, err)
		}

		_, err = tx.Enrollment(ctx, studentID, courseID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: student[%s] in course[%s]", failure.ErrAlreadyEnrolled, studentID, courseID)
		case !isNotFound(err):
			return fmt.Errorf("fetching enrollment: %w", err)
		}

		memo := fmt.Sprintf("enrollment in course[%s]", courseID)
		entry, err = ledger.Transfer(ctx, tx,
			ledger.StudentAccount(studentID),
			ledger.EducatorAccount(crs.Educator),
			s.posting(crs.Price, memo, now),
		)
		if err != nil {
			return err
		}

		rcpt = receipt.Receipt{
			ID:        s.newID(),
			PortalID:  crs.PortalID,
			StudentID: studentID,
			CourseID:  courseID,
			Amount:    crs.Price,
			PaidAt:    now,
		}
		if err := tx.CreateReceipt(ctx, rcpt); err != nil {
			return fmt.Errorf("creating receipt: %w", err)
		}

		e := enrollment.Enrollment{
			StudentID:  studentID,
			CourseID:   courseID,
			PortalID:   crs.PortalID,
			ReceiptID:  rcpt.ID,
			EnrolledAt: now,
		}
		if err := tx.CreateEnrollment(ctx, e); err != nil {
			return fmt.Errorf("creating enrollment: %w", err)
		}
		return nil
	})
	if err != nil {
		return receipt.Receipt{}, err
	}

	s.metrics.Moved(entry)
	s.log.WithFields(logrus.Fields{
		"student_id": studentID,
		"course_id":  courseID,
		"receipt_id": rcpt.ID,
		"amount":     rcpt.Amount,
	}).Info("enrolled")
	return rcpt, nil
}

// Refund returns a student's payment for a course out of the portal balance
// and removes the enrollment together with its receipt. Owner or
// administrator. Completed courses cannot be refunded.
func (s *Service) Refund(ctx context.Context, c capability.Capability, studentID, courseID string) (ledger.Entry, error) {
	now := s.now()

	var entry ledger.Entry
	err := s.update(ctx, "refund", func(tx store.Tx) error {
		p, err := authorize(ctx, tx, c, portal.RoleOwner, portal.RoleAdmin)
		if err != nil {
			return err
		}

		e, err := portalEnrollment(ctx, tx, p.ID, studentID, courseID)
		if err != nil {
			return err
		}

		if e.Completed() {
			return fmt.Errorf("%w: student[%s] in course[%s] cannot be refunded", failure.ErrAlreadyCompleted, studentID, courseID)
		}

		r, err := tx.Receipt(ctx, e.ReceiptID)
		if err != nil {
			return fmt.Errorf("fetching receipt[%s]: %w", e.ReceiptID, err)
		}

		memo := fmt.Sprintf("refund of receipt[%s]", r.ID)
		entry, err = ledger.Transfer(ctx, tx,
			ledger.PortalAccount(p.ID),
			ledger.StudentAccount(studentID),
			s.posting(r.Amount, memo, now),
		)
		if err != nil {
			return err
		}

		if err := tx.DeleteReceipt(ctx, r.ID); err != nil {
			return fmt.Errorf("deleting receipt[%s]: %w", r.ID, err)
		}
		if err := tx.DeleteEnrollment(ctx, studentID, courseID); err != nil {
			return fmt.Errorf("deleting enrollment: %w", err)
		}
		return nil
	})
	if err != nil {
		return ledger.Entry{}, err
	}

	s.metrics.Moved(entry)
	s.log.WithFields(logrus.Fields{
		"portal_id":  c.PortalID,
		"student_id": studentID,
		"course_id":  courseID,
		"amount":     entry.Amount,
	}).Info("refunded")
	return entry, nil
}

// ApproveCompletion puts a student on the approved list of a course that
// requires approval before certificates are issued. Owner or administrator.
func (s *Service) ApproveCompletion(ctx context.Context, c capability.Capability, studentID, courseID string) error {
	err := s.update(ctx, "approve_completion", func(tx store.Tx) error {
		p, err := authorize(ctx, tx, c, portal.RoleOwner, portal.RoleAdmin)
		if err != nil {
			return err
		}

		e, err := portalEnrollment(ctx, tx, p.ID, studentID, courseID)
		if err != nil {
			return err
		}

		if e.Approved {
			return nil
		}
		e.Approved = true
		return tx.UpdateEnrollment(ctx, e)
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"student_id": studentID, "course_id": courseID}).Info("completion approved")
	return nil
}

// portalEnrollment fetches an enrollment in a course of portalID.
func portalEnrollment(ctx context.Context, tx store.Tx, portalID, studentID, courseID string) (enrollment.Enrollment, error) {
	e, err := tx.Enrollment(ctx, studentID, courseID)
	if err != nil {
		return enrollment.Enrollment{}, fmt.Errorf("fetching enrollment of student[%s] in course[%s]: %w", studentID, courseID, err)
	}
	if e.PortalID != portalID {
		return enrollment.Enrollment{}, fmt.Errorf("%w: course[%s] is not in portal[%s]", failure.ErrNotFound, courseID, portalID)
	}
	return e, nil
}
