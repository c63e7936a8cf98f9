package academy

import (
	"context"
	"fmt"

	"github.com/irsalhamdi/course-portal/core/capability"
	"github.com/irsalhamdi/course-portal/core/course"
	"github.com/irsalhamdi/course-portal/core/failure"
	"github.com/irsalhamdi/course-portal/core/portal"
	"github.com/irsalhamdi/course-portal/store"
	"github.com/irsalhamdi/course-portal/validate"
	"github.com/sirupsen/logrus"
)

// AddCourse adds a course to the catalog of the capability's portal. Owner
// or administrator.
func (s *Service) AddCourse(ctx context.Context, c capability.Capability, nc course.CourseNew) (course.Course, error) {
	now := s.now()

	var crs course.Course
	err := s.update(ctx, "add_course", func(tx store.Tx) error {
		p, err := authorize(ctx, tx, c, portal.RoleOwner, portal.RoleAdmin)
		if err != nil {
			return err
		}

		if err := validate.Check(nc); err != nil {
			return fmt.Errorf("%w: %v", failure.ErrInvalidInput, err)
		}

		crs = course.New(nc, s.newID(), p.ID, now)
		if err := tx.CreateCourse(ctx, crs); err != nil {
			return fmt.Errorf("creating course: %w", err)
		}
		return nil
	})
	if err != nil {
		return course.Course{}, err
	}

	s.log.WithFields(logrus.Fields{"portal_id": crs.PortalID, "course_id": crs.ID, "price": crs.Price}).Info("course added")
	return crs, nil
}

// UpdateCourse edits a course in place. Owner only.
func (s *Service) UpdateCourse(ctx context.Context, c capability.Capability, courseID string, up course.CourseUp) (course.Course, error) {
	now := s.now()

	var crs course.Course
	err := s.update(ctx, "update_course", func(tx store.Tx) error {
		p, err := authorize(ctx, tx, c, portal.RoleOwner)
		if err != nil {
			return err
		}

		old, err := catalogCourse(ctx, tx, p.ID, courseID)
		if err != nil {
			return err
		}

		if err := validate.Check(up); err != nil {
			return fmt.Errorf("%w: %v", failure.ErrInvalidInput, err)
		}

		crs = up.Apply(old, now)
		if err := tx.UpdateCourse(ctx, crs); err != nil {
			return fmt.Errorf("updating course[%s]: %w", courseID, err)
		}
		return nil
	})
	if err != nil {
		return course.Course{}, err
	}

	s.log.WithFields(logrus.Fields{"portal_id": crs.PortalID, "course_id": crs.ID}).Info("course updated")
	return crs, nil
}

// RemoveCourse deletes a course. Owner only, and only while no receipt
// refers to it.
func (s *Service) RemoveCourse(ctx context.Context, c capability.Capability, courseID string) error {
	err := s.update(ctx, "remove_course", func(tx store.Tx) error {
		p, err := authorize(ctx, tx, c, portal.RoleOwner)
		if err != nil {
			return err
		}

		if _, err := catalogCourse(ctx, tx, p.ID, courseID); err != nil {
			return err
		}

		n, err := tx.CountReceipts(ctx, courseID)
		if err != nil {
			return fmt.Errorf("counting receipts of course[%s]: %w", courseID, err)
		}
		if n > 0 {
			return fmt.Errorf("%w: course[%s] has %d outstanding receipts", failure.ErrInvalidInput, courseID, n)
		}

		return tx.DeleteCourse(ctx, courseID)
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"portal_id": c.PortalID, "course_id": courseID}).Info("course removed")
	return nil
}

func (s *Service) Course(ctx context.Context, id string) (course.Course, error) {
	var crs course.Course
	err := s.view(ctx, func(tx store.Tx) error {
		var err error
		crs, err = tx.Course(ctx, id)
		return err
	})
	return crs, err
}

// Courses lists a portal's catalog in the order courses were added.
func (s *Service) Courses(ctx context.Context, portalID string) ([]course.Course, error) {
	var cs []course.Course
	err := s.view(ctx, func(tx store.Tx) error {
		if _, err := tx.Portal(ctx, portalID); err != nil {
			return err
		}

		var err error
		cs, err = tx.Courses(ctx, portalID)
		return err
	})
	return cs, err
}

// catalogCourse fetches and locks a course that must belong to portalID.
func catalogCourse(ctx context.Context, tx store.Tx, portalID, courseID string) (course.Course, error) {
	crs, err := tx.LockCourse(ctx, courseID)
	if err != nil {
		return course.Course{}, fmt.Errorf("fetching course[%s]: %w", courseID, err)
	}
	if crs.PortalID != portalID {
		return course.Course{}, fmt.Errorf("%w: course[%s] is not in portal[%s]", failure.ErrNotFound, courseID, portalID)
	}
	return crs, nil
}
