// Package pgstore keeps portal state in Postgres.
//
// Write transactions run at READ COMMITTED and lock every row they read, so
// operations on disjoint students, courses and accounts proceed in parallel
// while operations on the same rows queue behind each other. Transactions
// aborted by a deadlock or serialization failure are retried.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/irsalhamdi/course-portal/core/certificate"
	"github.com/irsalhamdi/course-portal/core/course"
	"github.com/irsalhamdi/course-portal/core/enrollment"
	"github.com/irsalhamdi/course-portal/core/failure"
	"github.com/irsalhamdi/course-portal/core/ledger"
	"github.com/irsalhamdi/course-portal/core/portal"
	"github.com/irsalhamdi/course-portal/core/receipt"
	"github.com/irsalhamdi/course-portal/core/student"
	"github.com/irsalhamdi/course-portal/database"
	"github.com/irsalhamdi/course-portal/store"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const maxAttempts = 5

type Store struct {
	db  *sqlx.DB
	log logrus.FieldLogger
}

func New(db *sqlx.DB, log logrus.FieldLogger) *Store {
	return &Store{db: db, log: log}
}

func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}

	for attempt := 1; ; attempt++ {
		err := database.Transaction(ctx, s.db, opts, func(tx *sqlx.Tx) error {
			return fn(&txn{tx: tx, writable: true})
		})
		if err == nil || !database.Retryable(err) || attempt == maxAttempts {
			return err
		}
		s.log.WithFields(logrus.Fields{"attempt": attempt, "message": err}).Warn("retrying conflicting transaction")
	}
}

func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	return database.Transaction(ctx, s.db, opts, func(tx *sqlx.Tx) error {
		return fn(&txn{tx: tx})
	})
}

type txn struct {
	tx       *sqlx.Tx
	writable bool
}

// lock appends a row lock clause to q inside write transactions.
func (t *txn) lock(q, clause string) string {
	if !t.writable {
		return q
	}
	return q + " " + clause
}

func (t *txn) get(ctx context.Context, dest interface{}, what string, q string, args ...interface{}) error {
	if err := t.tx.GetContext(ctx, dest, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", failure.ErrNotFound, what)
		}
		return fmt.Errorf("selecting %s: %w", what, err)
	}
	return nil
}

func (t *txn) exec(ctx context.Context, what string, q string, arg interface{}) error {
	if _, err := t.tx.NamedExecContext(ctx, q, arg); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// delete removes exactly one row or fails with failure.ErrNotFound.
func (t *txn) delete(ctx context.Context, what string, q string, args ...interface{}) error {
	res, err := t.tx.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", failure.ErrNotFound, what)
	}
	return nil
}

func (t *txn) Account(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	const q = `SELECT account_id, balance, updated_at FROM accounts WHERE account_id = $1`

	if t.writable {
		const ensure = `INSERT INTO accounts (account_id, balance, updated_at) VALUES ($1, 0, now())
		ON CONFLICT (account_id) DO NOTHING`
		if _, err := t.tx.ExecContext(ctx, ensure, id); err != nil {
			return ledger.Account{}, fmt.Errorf("ensuring account[%s]: %w", id, err)
		}
	}

	var acc ledger.Account
	err := t.tx.GetContext(ctx, &acc, t.lock(q, "FOR UPDATE"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{ID: id}, nil
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("selecting account[%s]: %w", id, err)
	}
	return acc, nil
}

func (t *txn) SaveAccount(ctx context.Context, acc ledger.Account) error {
	const q = `INSERT INTO accounts (account_id, balance, updated_at)
	VALUES (:account_id, :balance, :updated_at)
	ON CONFLICT (account_id) DO UPDATE SET balance = EXCLUDED.balance, updated_at = EXCLUDED.updated_at`
	return t.exec(ctx, "saving account", q, acc)
}

func (t *txn) AppendEntry(ctx context.Context, e ledger.Entry) error {
	const q = `INSERT INTO entries (entry_id, kind, from_account, to_account, amount, memo, created_at)
	VALUES (:entry_id, :kind, :from_account, :to_account, :amount, :memo, :created_at)`
	return t.exec(ctx, "appending entry", q, e)
}

func (t *txn) Entries(ctx context.Context, id ledger.AccountID) ([]ledger.Entry, error) {
	const q = `SELECT entry_id, kind, from_account, to_account, amount, memo, created_at
	FROM entries WHERE from_account = $1 OR to_account = $1 ORDER BY seq`

	es := []ledger.Entry{}
	if err := t.tx.SelectContext(ctx, &es, q, id); err != nil {
		return nil, fmt.Errorf("selecting entries of account[%s]: %w", id, err)
	}
	return es, nil
}

func (t *txn) Portal(ctx context.Context, id string) (portal.Portal, error) {
	const q = `SELECT portal_id, owner, cap_hash, created_at FROM portals WHERE portal_id = $1`

	var p portal.Portal
	err := t.get(ctx, &p, fmt.Sprintf("portal[%s]", id), q, id)
	return p, err
}

func (t *txn) CreatePortal(ctx context.Context, p portal.Portal) error {
	const q = `INSERT INTO portals (portal_id, owner, cap_hash, created_at)
	VALUES (:portal_id, :owner, :cap_hash, :created_at)`
	return t.exec(ctx, "inserting portal", q, p)
}

func (t *txn) Administrator(ctx context.Context, portalID, identity string) (portal.Administrator, error) {
	const q = `SELECT portal_id, identity, cap_hash, seq, created_at FROM administrators
	WHERE portal_id = $1 AND identity = $2`

	var a portal.Administrator
	err := t.get(ctx, &a, fmt.Sprintf("administrator[%s]", identity), t.lock(q, "FOR SHARE"), portalID, identity)
	return a, err
}

func (t *txn) Administrators(ctx context.Context, portalID string) ([]portal.Administrator, error) {
	const q = `SELECT portal_id, identity, cap_hash, seq, created_at FROM administrators
	WHERE portal_id = $1 ORDER BY seq`

	as := []portal.Administrator{}
	if err := t.tx.SelectContext(ctx, &as, q, portalID); err != nil {
		return nil, fmt.Errorf("selecting administrators of portal[%s]: %w", portalID, err)
	}
	return as, nil
}

func (t *txn) CreateAdministrator(ctx context.Context, a portal.Administrator) error {
	const q = `INSERT INTO administrators (portal_id, identity, cap_hash, created_at)
	VALUES (:portal_id, :identity, :cap_hash, :created_at)`
	return t.exec(ctx, "inserting administrator", q, a)
}

func (t *txn) DeleteAdministrator(ctx context.Context, portalID, identity string) error {
	const q = `DELETE FROM administrators WHERE portal_id = $1 AND identity = $2`
	return t.delete(ctx, fmt.Sprintf("administrator[%s]", identity), q, portalID, identity)
}

const courseColumns = `course_id, portal_id, title, url, educator, price, duration, requires_approval, seq, created_at, updated_at`

func (t *txn) Course(ctx context.Context, id string) (course.Course, error) {
	q := `SELECT ` + courseColumns + ` FROM courses WHERE course_id = $1`

	var c course.Course
	err := t.get(ctx, &c, fmt.Sprintf("course[%s]", id), t.lock(q, "FOR SHARE"), id)
	return c, err
}

func (t *txn) LockCourse(ctx context.Context, id string) (course.Course, error) {
	q := `SELECT ` + courseColumns + ` FROM courses WHERE course_id = $1`

	var c course.Course
	err := t.get(ctx, &c, fmt.Sprintf("course[%s]", id), t.lock(q, "FOR UPDATE"), id)
	return c, err
}

func (t *txn) Courses(ctx context.Context, portalID string) ([]course.Course, error) {
	q := `SELECT ` + courseColumns + ` FROM courses WHERE portal_id = $1 ORDER BY seq`

	cs := []course.Course{}
	if err := t.tx.SelectContext(ctx, &cs, q, portalID); err != nil {
		return nil, fmt.Errorf("selecting courses of portal[%s]: %w", portalID, err)
	}
	return cs, nil
}

func (t *txn) CreateCourse(ctx context.Context, c course.Course) error {
	const q = `INSERT INTO courses (course_id, portal_id, title, url, educator, price, duration, requires_approval, created_at, updated_at)
	VALUES (:course_id, :portal_id, :title, :url, :educator, :price, :duration, :requires_approval, :created_at, :updated_at)`
	return t.exec(ctx, "inserting course", q, c)
}

func (t *txn) UpdateCourse(ctx context.Context, c course.Course) error {
	const q = `UPDATE courses SET
		title = :title,
		url = :url,
		educator = :educator,
		price = :price,
		duration = :duration,
		requires_approval = :requires_approval,
		updated_at = :updated_at
	WHERE course_id = :course_id`
	return t.exec(ctx, "updating course", q, c)
}

func (t *txn) DeleteCourse(ctx context.Context, id string) error {
	const q = `DELETE FROM courses WHERE course_id = $1`
	return t.delete(ctx, fmt.Sprintf("course[%s]", id), q, id)
}

// Student locks the student row in write transactions, which serializes
// every operation acting on behalf of the same student.
func (t *txn) Student(ctx context.Context, id string) (student.Student, error) {
	const q = `SELECT student_id, owner, created_at FROM students WHERE student_id = $1`

	var s student.Student
	err := t.get(ctx, &s, fmt.Sprintf("student[%s]", id), t.lock(q, "FOR UPDATE"), id)
	return s, err
}

func (t *txn) CreateStudent(ctx context.Context, s student.Student) error {
	const q = `INSERT INTO students (student_id, owner, created_at) VALUES (:student_id, :owner, :created_at)`
	return t.exec(ctx, "inserting student", q, s)
}

const enrollmentColumns = `student_id, course_id, portal_id, receipt_id, approved, enrolled_at, completed_at, seq`

func (t *txn) Enrollment(ctx context.Context, studentID, courseID string) (enrollment.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND course_id = $2`

	var e enrollment.Enrollment
	what := fmt.Sprintf("enrollment of student[%s] in course[%s]", studentID, courseID)
	err := t.get(ctx, &e, what, t.lock(q, "FOR UPDATE"), studentID, courseID)
	return e, err
}

func (t *txn) Enrollments(ctx context.Context, studentID string) ([]enrollment.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 ORDER BY seq`

	es := []enrollment.Enrollment{}
	if err := t.tx.SelectContext(ctx, &es, q, studentID); err != nil {
		return nil, fmt.Errorf("selecting enrollments of student[%s]: %w", studentID, err)
	}
	return es, nil
}

func (t *txn) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) error {
	const q = `INSERT INTO enrollments (student_id, course_id, portal_id, receipt_id, approved, enrolled_at, completed_at)
	VALUES (:student_id, :course_id, :portal_id, :receipt_id, :approved, :enrolled_at, :completed_at)`
	return t.exec(ctx, "inserting enrollment", q, e)
}

func (t *txn) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment) error {
	const q = `UPDATE enrollments SET
		receipt_id = :receipt_id,
		approved = :approved,
		completed_at = :completed_at
	WHERE student_id = :student_id AND course_id = :course_id`
	return t.exec(ctx, "updating enrollment", q, e)
}

func (t *txn) DeleteEnrollment(ctx context.Context, studentID, courseID string) error {
	const q = `DELETE FROM enrollments WHERE student_id = $1 AND course_id = $2`
	what := fmt.Sprintf("enrollment of student[%s] in course[%s]", studentID, courseID)
	return t.delete(ctx, what, q, studentID, courseID)
}

func (t *txn) Receipt(ctx context.Context, id string) (receipt.Receipt, error) {
	const q = `SELECT receipt_id, portal_id, student_id, course_id, amount, paid_at FROM receipts WHERE receipt_id = $1`

	var r receipt.Receipt
	err := t.get(ctx, &r, fmt.Sprintf("receipt[%s]", id), t.lock(q, "FOR UPDATE"), id)
	return r, err
}

func (t *txn) CountReceipts(ctx context.Context, courseID string) (int, error) {
	const q = `SELECT count(*) FROM receipts WHERE course_id = $1`

	var n int
	if err := t.tx.GetContext(ctx, &n, q, courseID); err != nil {
		return 0, fmt.Errorf("counting receipts of course[%s]: %w", courseID, err)
	}
	return n, nil
}

func (t *txn) CreateReceipt(ctx context.Context, r receipt.Receipt) error {
	const q = `INSERT INTO receipts (receipt_id, portal_id, student_id, course_id, amount, paid_at)
	VALUES (:receipt_id, :portal_id, :student_id, :course_id, :amount, :paid_at)`
	return t.exec(ctx, "inserting receipt", q, r)
}

func (t *txn) DeleteReceipt(ctx context.Context, id string) error {
	const q = `DELETE FROM receipts WHERE receipt_id = $1`
	return t.delete(ctx, fmt.Sprintf("receipt[%s]", id), q, id)
}

const certificateColumns = `certificate_id, portal_id, student_id, course_id, receipt_id, started_at, issued_at, seq`

func (t *txn) Certificate(ctx context.Context, id string) (certificate.Certificate, error) {
	q := `SELECT ` + certificateColumns + ` FROM certificates WHERE certificate_id = $1`

	var c certificate.Certificate
	err := t.get(ctx, &c, fmt.Sprintf("certificate[%s]", id), q, id)
	return c, err
}

func (t *txn) Certificates(ctx context.Context, studentID string) ([]certificate.Certificate, error) {
	q := `SELECT ` + certificateColumns + ` FROM certificates WHERE student_id = $1 ORDER BY seq`

	cs := []certificate.Certificate{}
	if err := t.tx.SelectContext(ctx, &cs, q, studentID); err != nil {
		return nil, fmt.Errorf("selecting certificates of student[%s]: %w", studentID, err)
	}
	return cs, nil
}

func (t *txn) CreateCertificate(ctx context.Context, c certificate.Certificate) error {
	const q = `INSERT INTO certificates (certificate_id, portal_id, student_id, course_id, receipt_id, started_at, issued_at)
	VALUES (:certificate_id, :portal_id, :student_id, :course_id, :receipt_id, :started_at, :issued_at)`

	err := t.exec(ctx, "inserting certificate", q, c)
	if database.UniqueViolation(err) {
		return fmt.Errorf("%w: student[%s] in course[%s]", failure.ErrAlreadyCompleted, c.StudentID, c.CourseID)
	}
	return err
}
