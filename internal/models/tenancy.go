package models

import (
	"time"

	"github.com/google/uuid"
)

// ArrearsSummary aggregates a user's unresolved arrears into a single
// portfolio-level figure. Amounts are in cents.
type ArrearsSummary struct {
	OpenCount         int   `json:"open_count"`
	TotalOverdueCents int64 `json:"total_overdue_cents"`
}

// ExpiringLease is a read-only row describing a tenancy whose lease ends
// soon. Consumed verbatim as an insight feed source.
type ExpiringLease struct {
	TenancyID       uuid.UUID `json:"tenancy_id"`
	PropertyAddress string    `json:"property_address"`
	EndDate         time.Time `json:"end_date"`
}
