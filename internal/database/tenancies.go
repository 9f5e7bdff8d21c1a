package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propeld/propeld/internal/models"
)

// TenancyRepository exposes the read-only tenancy risk queries consumed by
// the insight feed. Tenancy and payment records themselves are owned by the
// managed-backend CRUD layer, not by this service.
type TenancyRepository struct {
	db *DB
}

// NewTenancyRepository creates a new tenancy repository
func NewTenancyRepository(db *DB) *TenancyRepository {
	return &TenancyRepository{db: db}
}

// ArrearsSummary aggregates the user's unresolved arrears into a count and
// an overdue total in cents. A summary with OpenCount == 0 means no arrears.
func (r *TenancyRepository) ArrearsSummary(ctx context.Context, userID uuid.UUID) (*models.ArrearsSummary, error) {
	summary := &models.ArrearsSummary{}
	query := `
		SELECT COUNT(*), COALESCE(SUM(amount_overdue_cents), 0)
		FROM arrears
		WHERE user_id = $1 AND resolved_at IS NULL
	`

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&summary.OpenCount, &summary.TotalOverdueCents)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize arrears: %w", err)
	}
	return summary, nil
}

// ExpiringLeases returns tenancies whose lease ends within the window,
// soonest first.
func (r *TenancyRepository) ExpiringLeases(ctx context.Context, userID uuid.UUID, withinDays int) ([]*models.ExpiringLease, error) {
	cutoff := time.Now().AddDate(0, 0, withinDays)
	query := `
		SELECT t.id, p.address, t.lease_end_date
		FROM tenancies t
		JOIN properties p ON p.id = t.property_id
		WHERE t.user_id = $1
			AND t.status = 'active'
			AND t.lease_end_date IS NOT NULL
			AND t.lease_end_date <= $2
		ORDER BY t.lease_end_date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query expiring leases: %w", err)
	}
	defer rows.Close()

	var leases []*models.ExpiringLease
	for rows.Next() {
		lease := &models.ExpiringLease{}
		if err := rows.Scan(&lease.TenancyID, &lease.PropertyAddress, &lease.EndDate); err != nil {
			return nil, fmt.Errorf("failed to scan expiring lease: %w", err)
		}
		leases = append(leases, lease)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expiring leases: %w", err)
	}
	return leases, nil
}
