package enrollment

import "time"

// Enrollment links a student to a course. ReceiptID only refers to the
// receipt, which belongs to the portal's payment table.
type Enrollment struct {
	StudentID   string     `json:"studentId" db:"student_id"`
	CourseID    string     `json:"courseId" db:"course_id"`
	PortalID    string     `json:"portalId" db:"portal_id"`
	ReceiptID   string     `json:"receiptId" db:"receipt_id"`
	Approved    bool       `json:"approved" db:"approved"`
	EnrolledAt  time.Time  `json:"enrolledAt" db:"enrolled_at"`
	CompletedAt *time.Time `json:"completedAt" db:"completed_at"`
	Seq         int64      `json:"-" db:"seq"`
}

func (e Enrollment) Completed() bool {
	return e.CompletedAt != nil
}

// CourseIDs returns the course ids of es, keeping their order.
func CourseIDs(es []Enrollment) []string {
	ids := make([]string, 0, len(es))
	for _, e := range es {
		ids = append(ids, e.CourseID)
	}
	return ids
}
