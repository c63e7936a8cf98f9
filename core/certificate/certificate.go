package certificate

import "time"

type Certificate struct {
	ID        string    `json:"id" db:"certificate_id"`
	PortalID  string    `json:"portalId" db:"portal_id"`
	StudentID string    `json:"studentId" db:"student_id"`
	CourseID  string    `json:"courseId" db:"course_id"`
	ReceiptID string    `json:"receiptId" db:"receipt_id"`
	StartedAt time.Time `json:"startedAt" db:"started_at"`
	IssuedAt  time.Time `json:"issuedAt" db:"issued_at"`
	Seq       int64     `json:"-" db:"seq"`
}

// CourseIDs returns the course ids of cs, keeping their order.
func CourseIDs(cs []Certificate) []string {
	ids := make([]string, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.CourseID)
	}
	return ids
}
