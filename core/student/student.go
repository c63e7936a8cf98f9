package student

import "time"

type Student struct {
	ID        string    `json:"id" db:"student_id"`
	Owner     string    `json:"owner" db:"owner"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Owned reports whether identity controls the student's account.
func (s Student) Owned(identity string) bool {
	return identity != "" && s.Owner == identity
}
