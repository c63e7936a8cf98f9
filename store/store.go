// Package store declares the persistence contract the portal runs on.
//
// A Store applies a function atomically: either everything it wrote through
// its Tx is committed, or nothing is. Lookups of missing records fail with
// failure.ErrNotFound.
package store

import (
	"context"

	"github.com/irsalhamdi/course-portal/core/certificate"
	"github.com/irsalhamdi/course-portal/core/course"
	"github.com/irsalhamdi/course-portal/core/enrollment"
	"github.com/irsalhamdi/course-portal/core/ledger"
	"github.com/irsalhamdi/course-portal/core/portal"
	"github.com/irsalhamdi/course-portal/core/receipt"
	"github.com/irsalhamdi/course-portal/core/student"
)

type Store interface {
	// Update runs fn in a read-write transaction. fn's error aborts it.
	Update(ctx context.Context, fn func(Tx) error) error
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Tx) error) error
}

type Tx interface {
	ledger.Book
	Entries(ctx context.Context, id ledger.AccountID) ([]ledger.Entry, error)

	Portal(ctx context.Context, id string) (portal.Portal, error)
	CreatePortal(ctx context.Context, p portal.Portal) error

	Administrator(ctx context.Context, portalID, identity string) (portal.Administrator, error)
	// Administrators lists a portal's administrators in insertion order.
	Administrators(ctx context.Context, portalID string) ([]portal.Administrator, error)
	CreateAdministrator(ctx context.Context, a portal.Administrator) error
	DeleteAdministrator(ctx context.Context, portalID, identity string) error

	Course(ctx context.Context, id string) (course.Course, error)
	// LockCourse reads a course for modification. Concurrent writers that
	// read the same course wait until the transaction ends.
	LockCourse(ctx context.Context, id string) (course.Course, error)
	// Courses lists a portal's catalog in insertion order.
	Courses(ctx context.Context, portalID string) ([]course.Course, error)
	CreateCourse(ctx context.Context, c course.Course) error
	UpdateCourse(ctx context.Context, c course.Course) error
	DeleteCourse(ctx context.Context, id string) error

	Student(ctx context.Context, id string) (student.Student, error)
	CreateStudent(ctx context.Context, s student.Student) error

	Enrollment(ctx context.Context, studentID, courseID string) (enrollment.Enrollment, error)
	// Enrollments lists a student's enrollments in insertion order.
	Enrollments(ctx context.Context, studentID string) ([]enrollment.Enrollment, error)
	CreateEnrollment(ctx context.Context, e enrollment.Enrollment) error
	UpdateEnrollment(ctx context.Context, e enrollment.Enrollment) error
	DeleteEnrollment(ctx context.Context, studentID, courseID string) error

	Receipt(ctx context.Context, id string) (receipt.Receipt, error)
	CountReceipts(ctx context.Context, courseID string) (int, error)
	CreateReceipt(ctx context.Context, r receipt.Receipt) error
	DeleteReceipt(ctx context.Context, id string) error

	Certificate(ctx context.Context, id string) (certificate.Certificate, error)
	// Certificates lists a student's certificates in issue order.
	Certificates(ctx context.Context, studentID string) ([]certificate.Certificate, error)
	CreateCertificate(ctx context.Context, c certificate.Certificate) error
}
