// Package memstore keeps portal state in process memory.
//
// Writers are serialized by one lock and record an undo log while they run;
// a failed transaction replays the log backwards before releasing the lock,
// so readers never observe partial effects.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/irsalhamdi/course-portal/core/certificate"
	"github.com/irsalhamdi/course-portal/core/course"
	"github.com/irsalhamdi/course-portal/core/enrollment"
	"github.com/irsalhamdi/course-portal/core/failure"
	"github.com/irsalhamdi/course-portal/core/ledger"
	"github.com/irsalhamdi/course-portal/core/portal"
	"github.com/irsalhamdi/course-portal/core/receipt"
	"github.com/irsalhamdi/course-portal/core/student"
	"github.com/irsalhamdi/course-portal/store"
)

var errReadOnly = errors.New("write in read-only transaction")

type adminKey struct{ portalID, identity string }

type enrollKey struct{ studentID, courseID string }

type Store struct {
	mu  sync.RWMutex
	seq int64

	portals      map[string]portal.Portal
	admins       map[adminKey]portal.Administrator
	courses      map[string]course.Course
	students     map[string]student.Student
	enrollments  map[enrollKey]enrollment.Enrollment
	receipts     map[string]receipt.Receipt
	certificates map[string]certificate.Certificate
	accounts     map[ledger.AccountID]ledger.Account
	entries      []ledger.Entry
}

func New() *Store {
	return &Store{
		portals:      make(map[string]portal.Portal),
		admins:       make(map[adminKey]portal.Administrator),
		courses:      make(map[string]course.Course),
		students:     make(map[string]student.Student),
		enrollments:  make(map[enrollKey]enrollment.Enrollment),
		receipts:     make(map[string]receipt.Receipt),
		certificates: make(map[string]certificate.Certificate),
		accounts:     make(map[ledger.AccountID]ledger.Account),
	}
}

func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s, writable: true}
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
		if err != nil {
			t.rollback()
		}
	}()

	return fn(t)
}

func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&tx{s: s})
}

type tx struct {
	s        *Store
	writable bool
	undo     []func()
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) nextSeq() int64 {
	prev := t.s.seq
	t.undo = append(t.undo, func() { t.s.seq = prev })
	t.s.seq++
	return t.s.seq
}

// put stores v under k and records how to restore the previous state.
func put[K comparable, V any](t *tx, m map[K]V, k K, v V) error {
	if !t.writable {
		return errReadOnly
	}

	old, existed := m[k]
	t.undo = append(t.undo, func() {
		if existed {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
	m[k] = v
	return nil
}

func insert[K comparable, V any](t *tx, m map[K]V, k K, v V) error {
	if _, ok := m[k]; ok {
		return fmt.Errorf("record %v already exists", k)
	}
	return put(t, m, k, v)
}

func replace[K comparable, V any](t *tx, m map[K]V, k K, v V) error {
	if _, ok := m[k]; !ok {
		return fmt.Errorf("%w: record %v", failure.ErrNotFound, k)
	}
	return put(t, m, k, v)
}

func remove[K comparable, V any](t *tx, m map[K]V, k K) error {
	if !t.writable {
		return errReadOnly
	}

	old, ok := m[k]
	if !ok {
		return fmt.Errorf("%w: record %v", failure.ErrNotFound, k)
	}
	t.undo = append(t.undo, func() { m[k] = old })
	delete(m, k)
	return nil
}

func get[K comparable, V any](m map[K]V, k K, what string) (V, error) {
	v, ok := m[k]
	if !ok {
		var zero V
		return zero, fmt.Errorf("%w: %s[%v]", failure.ErrNotFound, what, k)
	}
	return v, nil
}

func (t *tx) Account(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	if acc, ok := t.s.accounts[id]; ok {
		return acc, nil
	}
	return ledger.Account{ID: id}, nil
}

func (t *tx) SaveAccount(ctx context.Context, acc ledger.Account) error {
	return put(t, t.s.accounts, acc.ID, acc)
}

func (t *tx) AppendEntry(ctx context.Context, e ledger.Entry) error {
	if !t.writable {
		return errReadOnly
	}

	n := len(t.s.entries)
	t.undo = append(t.undo, func() { t.s.entries = t.s.entries[:n] })
	t.s.entries = append(t.s.entries, e)
	return nil
}

func (t *tx) Entries(ctx context.Context, id ledger.AccountID) ([]ledger.Entry, error) {
	var es []ledger.Entry
	for _, e := range t.s.entries {
		if e.From == id || e.To == id {
			es = append(es, e)
		}
	}
	return es, nil
}

func (t *tx) Portal(ctx context.Context, id string) (portal.Portal, error) {
	return get(t.s.portals, id, "portal")
}

func (t *tx) CreatePortal(ctx context.Context, p portal.Portal) error {
	return insert(t, t.s.portals, p.ID, p)
}

func (t *tx) Administrator(ctx context.Context, portalID, identity string) (portal.Administrator, error) {
	return get(t.s.admins, adminKey{portalID, identity}, "administrator")
}

func (t *tx) Administrators(ctx context.Context, portalID string) ([]portal.Administrator, error) {
	var as []portal.Administrator
	for _, a := range t.s.admins {
		if a.PortalID == portalID {
			as = append(as, a)
		}
	}
	sort.Slice(as, func(i, j int) bool { return as[i].Seq < as[j].Seq })
	return as, nil
}

func (t *tx) CreateAdministrator(ctx context.Context, a portal.Administrator) error {
	if !t.writable {
		return errReadOnly
	}
	if _, ok := t.s.admins[adminKey{a.PortalID, a.Identity}]; ok {
		return fmt.Errorf("administrator[%s] already exists", a.Identity)
	}
	a.Seq = t.nextSeq()
	return insert(t, t.s.admins, adminKey{a.PortalID, a.Identity}, a)
}

func (t *tx) DeleteAdministrator(ctx context.Context, portalID, identity string) error {
	return remove(t, t.s.admins, adminKey{portalID, identity})
}

func (t *tx) Course(ctx context.Context, id string) (course.Course, error) {
	return get(t.s.courses, id, "course")
}

// LockCourse is Course; writers already hold the store lock.
func (t *tx) LockCourse(ctx context.Context, id string) (course.Course, error) {
	return t.Course(ctx, id)
}

func (t *tx) Courses(ctx context.Context, portalID string) ([]course.Course, error) {
	var cs []course.Course
	for _, c := range t.s.courses {
		if c.PortalID == portalID {
			cs = append(cs, c)
		}
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].Seq < cs[j].Seq })
	return cs, nil
}

func (t *tx) CreateCourse(ctx context.Context, c course.Course) error {
	if !t.writable {
		return errReadOnly
	}
	if _, ok := t.s.courses[c.ID]; ok {
		return fmt.Errorf("course[%s] already exists", c.ID)
	}
	c.Seq = t.nextSeq()
	return insert(t, t.s.courses, c.ID, c)
}

func (t *tx) UpdateCourse(ctx context.Context, c course.Course) error {
	old, err := get(t.s.courses, c.ID, "course")
	if err != nil {
		return err
	}
	c.Seq = old.Seq
	return replace(t, t.s.courses, c.ID, c)
}

func (t *tx) DeleteCourse(ctx context.Context, id string) error {
	return remove(t, t.s.courses, id)
}

func (t *tx) Student(ctx context.Context, id string) (student.Student, error) {
	return get(t.s.students, id, "student")
}

func (t *tx) CreateStudent(ctx context.Context, st student.Student) error {
	return insert(t, t.s.students, st.ID, st)
}

func (t *tx) Enrollment(ctx context.Context, studentID, courseID string) (enrollment.Enrollment, error) {
	return get(t.s.enrollments, enrollKey{studentID, courseID}, "enrollment")
}

func (t *tx) Enrollments(ctx context.Context, studentID string) ([]enrollment.Enrollment, error) {
	var es []enrollment.Enrollment
	for _, e := range t.s.enrollments {
		if e.StudentID == studentID {
			es = append(es, e)
		}
	}
	sort.Slice(es, func(i, j int) bool { return es[i].Seq < es[j].Seq })
	return es, nil
}

func (t *tx) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) error {
	if !t.writable {
		return errReadOnly
	}
	k := enrollKey{e.StudentID, e.CourseID}
	if _, ok := t.s.enrollments[k]; ok {
		return fmt.Errorf("enrollment of student[%s] in course[%s] already exists", e.StudentID, e.CourseID)
	}
	e.Seq = t.nextSeq()
	return insert(t, t.s.enrollments, k, e)
}

func (t *tx) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment) error {
	k := enrollKey{e.StudentID, e.CourseID}
	old, err := get(t.s.enrollments, k, "enrollment")
	if err != nil {
		return err
	}
	e.Seq = old.Seq
	return replace(t, t.s.enrollments, k, e)
}

func (t *tx) DeleteEnrollment(ctx context.Context, studentID, courseID string) error {
	return remove(t, t.s.enrollments, enrollKey{studentID, courseID})
}

func (t *tx) Receipt(ctx context.Context, id string) (receipt.Receipt, error) {
	return get(t.s.receipts, id, "receipt")
}

func (t *tx) CountReceipts(ctx context.Context, courseID string) (int, error) {
	n := 0
	for _, r := range t.s.receipts {
		if r.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

func (t *tx) CreateReceipt(ctx context.Context, r receipt.Receipt) error {
	return insert(t, t.s.receipts, r.ID, r)
}

func (t *tx) DeleteReceipt(ctx context.Context, id string) error {
	return remove(t, t.s.receipts, id)
}

func (t *tx) Certificate(ctx context.Context, id string) (certificate.Certificate, error) {
	return get(t.s.certificates, id, "certificate")
}

func (t *tx) Certificates(ctx context.Context, studentID string) ([]certificate.Certificate, error) {
	var cs []certificate.Certificate
	for _, c := range t.s.certificates {
		if c.StudentID == studentID {
			cs = append(cs, c)
		}
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].Seq < cs[j].Seq })
	return cs, nil
}

func (t *tx) CreateCertificate(ctx context.Context, c certificate.Certificate) error {
	if !t.writable {
		return errReadOnly
	}
	for _, other := range t.s.certificates {
		if other.StudentID == c.StudentID && other.CourseID == c.CourseID {
			return fmt.Errorf("certificate for student[%s] in course[%s] already exists", c.StudentID, c.CourseID)
		}
	}
	c.Seq = t.nextSeq()
	return insert(t, t.s.certificates, c.ID, c)
}
