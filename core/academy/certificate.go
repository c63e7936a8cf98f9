package academy

import (
	"context"
	"fmt"

	"github.com/irsalhamdi/course-portal/core/certificate"
	"github.com/irsalhamdi/course-portal/core/enrollment"
	"github.com/irsalhamdi/course-portal/core/failure"
	"github.com/irsalhamdi/course-portal/store"
	"github.com/sirupsen/logrus"
)

// GetCertificate marks a course completed and issues its certificate.
// receiptID may be empty, in which case the receipt recorded on the
// enrollment is used.
//
// Preconditions, in order: the receipt belongs to the student and course,
// the student is enrolled, the course is not completed yet, the course
// duration has elapsed since payment (inclusive), and for courses requiring
// approval the student has been approved.
func (s *Service) GetCertificate(ctx context.Context, studentID, courseID, receiptID string) (certificate.Certificate, error) {
	identity, err := caller(ctx)
	if err != nil {
		s.metrics.Observe("get_certificate", err)
		return certificate.Certificate{}, err
	}
	now := s.now()

	var cert certificate.Certificate
	err = s.update(ctx, "get_certificate", func(tx store.Tx) error {
		if _, err := ownedStudent(ctx, tx, identity, studentID); err != nil {
			return err
		}

		e, enrollErr := tx.Enrollment(ctx, studentID, courseID)
		if enrollErr != nil && !isNotFound(enrollErr) {
			return fmt.Errorf("fetching enrollment: %w", enrollErr)
		}
		// The closure may run again after a conflict, so resolve into a local.
		rid := receiptID
		if rid == "" && enrollErr == nil {
			rid = e.ReceiptID
		}

		r, err := tx.Receipt(ctx, rid)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: no receipt[%s] for student[%s] in course[%s]", failure.ErrInvalidCourse, rid, studentID, courseID)
			}
			return fmt.Errorf("fetching receipt[%s]: %w", rid, err)
		}
		if !r.Covers(studentID, courseID) {
			return fmt.Errorf("%w: receipt[%s] was not issued to student[%s] for course[%s]", failure.ErrInvalidCourse, r.ID, studentID, courseID)
		}

		if enrollErr != nil {
			return fmt.Errorf("%w: student[%s] is not enrolled in course[%s]", failure.ErrInvalidCourse, studentID, courseID)
		}

		if e.Completed() {
			return fmt.Errorf("%w: student[%s] in course[%s]", failure.ErrAlreadyCompleted, studentID, courseID)
		}

		crs, err := tx.Course(ctx, courseID)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: course[%s] does not exist", failure.ErrInvalidCourse, courseID)
			}
			return fmt.Errorf("fetching course[%s]: %w", courseID, err)
		}

		if due := crs.CompletableAt(r.PaidAt); now.Before(due) {
			return fmt.Errorf("%w: course[%s] completes at %s", failure.ErrIncompleteCourseDuration, courseID, due)
		}

		if crs.RequiresApproval && !e.Approved {
			return fmt.Errorf("%w: student[%s] is not approved for course[%s]", failure.ErrUnauthorized, studentID, courseID)
		}

		e.CompletedAt = &now
		if err := tx.UpdateEnrollment(ctx, e); err != nil {
			return fmt.Errorf("completing enrollment: %w", err)
		}

		cert = certificate.Certificate{
			ID:        s.newID(),
			PortalID:  crs.PortalID,
			StudentID: studentID,
			CourseID:  courseID,
			ReceiptID: r.ID,
			StartedAt: r.PaidAt,
			IssuedAt:  now,
		}
		if err := tx.CreateCertificate(ctx, cert); err != nil {
			return fmt.Errorf("creating certificate: %w", err)
		}
		return nil
	})
	if err != nil {
		return certificate.Certificate{}, err
	}

	s.log.WithFields(logrus.Fields{
		"student_id":     studentID,
		"course_id":      courseID,
		"certificate_id": cert.ID,
	}).Info("certificate issued")
	return cert, nil
}

func (s *Service) Certificate(ctx context.Context, id string) (certificate.Certificate, error) {
	var cert certificate.Certificate
	err := s.view(ctx, func(tx store.Tx) error {
		var err error
		cert, err = tx.Certificate(ctx, id)
		return err
	})
	return cert, err
}

// Enrollment returns the enrollment record of a student in a course.
func (s *Service) Enrollment(ctx context.Context, studentID, courseID string) (enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	err := s.view(ctx, func(tx store.Tx) error {
		var err error
		e, err = tx.Enrollment(ctx, studentID, courseID)
		return err
	})
	return e, err
}
