package receipt

import "time"

// Receipt records one paid enrollment. It is never modified; a refund
// deletes it.
type Receipt struct {
	ID        string    `json:"id" db:"receipt_id"`
	PortalID  string    `json:"portalId" db:"portal_id"`
	StudentID string    `json:"studentId" db:"student_id"`
	CourseID  string    `json:"courseId" db:"course_id"`
	Amount    int64     `json:"amount" db:"amount"`
	PaidAt    time.Time `json:"paidAt" db:"paid_at"`
}

// Covers reports whether r was issued for the given student and course.
func (r Receipt) Covers(studentID, courseID string) bool {
	return r.StudentID == studentID && r.CourseID == courseID
}
