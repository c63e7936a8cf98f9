package course

import "time"

type Course struct {
	ID               string        `json:"id" db:"course_id"`
	PortalID         string        `json:"portalId" db:"portal_id"`
	Title            string        `json:"title" db:"title"`
	URL              string        `json:"url" db:"url"`
	Educator         string        `json:"educator" db:"educator"`
	Price            int64         `json:"price" db:"price"`
	Duration         time.Duration `json:"duration" db:"duration"`
	RequiresApproval bool          `json:"requiresApproval" db:"requires_approval"`
	Seq              int64         `json:"-" db:"seq"`
	CreatedAt        time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time     `json:"updatedAt" db:"updated_at"`
}

type CourseNew struct {
	Title            string        `json:"title" validate:"required"`
	URL              string        `json:"url" validate:"required"`
	Educator         string        `json:"educator" validate:"required"`
	Price            int64         `json:"price" validate:"gte=0"`
	Duration         time.Duration `json:"duration" validate:"gte=0"`
	RequiresApproval bool          `json:"requiresApproval"`
}

type CourseUp struct {
	Title    *string        `json:"title" validate:"omitnil,min=1"`
	URL      *string        `json:"url" validate:"omitnil,min=1"`
	Price    *int64         `json:"price" validate:"omitnil,gte=0"`
	Duration *time.Duration `json:"duration" validate:"omitnil,gte=0"`
}

// New builds the stored record for nc. Seq is assigned by the store.
func New(nc CourseNew, id, portalID string, now time.Time) Course {
	return Course{
		ID:               id,
		PortalID:         portalID,
		Title:            nc.Title,
		URL:              nc.URL,
		Educator:         nc.Educator,
		Price:            nc.Price,
		Duration:         nc.Duration,
		RequiresApproval: nc.RequiresApproval,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Apply overrides the fields set in up.
func (up CourseUp) Apply(c Course, now time.Time) Course {
	if up.Title != nil {
		c.Title = *up.Title
	}
	if up.URL != nil {
		c.URL = *up.URL
	}
	if up.Price != nil {
		c.Price = *up.Price
	}
	if up.Duration != nil {
		c.Duration = *up.Duration
	}
	c.UpdatedAt = now
	return c
}

// CompletableAt is the earliest moment a student who paid at paidAt may
// claim a certificate.
func (c Course) CompletableAt(paidAt time.Time) time.Time {
	return paidAt.Add(c.Duration)
}
