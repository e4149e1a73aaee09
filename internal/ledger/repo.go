package ledger

import (
	"context"

	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProjectBalance pairs a project's running total with the sum recomputed
// from its paid contributions and their payments.
type ProjectBalance struct {
	ProjectID      uuid.UUID
	Title          string
	CollectedCents int64
	PaidCents      int64
	PaidCount      int64
	PaymentCount   int64
}

// Repository reads ledger balances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Balances(ctx context.Context, projectID *uuid.UUID) ([]ProjectBalance, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Balances(ctx context.Context, projectID *uuid.UUID) ([]ProjectBalance, error) {
	q := r.db.WithContext(ctx).
		Table("projects").
		Select(`projects.id AS project_id,
			projects.title,
			projects.collected_amount_cents AS collected_cents,
			CAST(COALESCE(SUM(contributions.amount_cents), 0) AS BIGINT) AS paid_cents,
			COUNT(contributions.id) AS paid_count,
			COUNT(payments.id) AS payment_count`).
		Joins("LEFT JOIN contributions ON contributions.project_id = projects.id AND contributions.status = ?", enums.ContributionStatusPaid).
		Joins("LEFT JOIN payments ON payments.contribution_id = contributions.id")
	if projectID != nil {
		q = q.Where("projects.id = ?", *projectID)
	}
	var rows []ProjectBalance
	if err := q.Group("projects.id, projects.title, projects.collected_amount_cents").
		Order("projects.created_at ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
