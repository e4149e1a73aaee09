// Package collection keeps a project's collected total in step with its paid
// contributions.
package collection

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/tamwill-backend/internal/repo"
	"github.com/angelmondragon/tamwill-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tamwill-backend/pkg/errors"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Aggregator credits paid amounts onto a project's running total. Callers
// run Credit inside the same transaction that flips the contribution to paid.
type Aggregator interface {
	WithTx(tx *gorm.DB) Aggregator
	Credit(ctx context.Context, projectID uuid.UUID, amount money.Amount) error
}

type aggregator struct {
	repo.Base
	now func() time.Time
}

// NewAggregator returns an aggregator bound to the provided database.
func NewAggregator(db *gorm.DB) Aggregator {
	return &aggregator{Base: repo.NewBase(db), now: time.Now}
}

func (a *aggregator) WithTx(tx *gorm.DB) Aggregator {
	return &aggregator{Base: a.Bind(tx), now: a.now}
}

// Credit adds amount in a single UPDATE so concurrent credits never lose writes.
func (a *aggregator) Credit(ctx context.Context, projectID uuid.UUID, amount money.Amount) error {
	if !amount.IsPositive() {
		return pkgerrors.Newf(pkgerrors.ReasonInvalidAmount, "credit amount must be positive, got %s", amount)
	}
	res := a.DB(ctx).
		Model(&models.Project{}).
		Where("id = ?", projectID).
		Updates(map[string]any{
			"collected_amount_cents": gorm.Expr("collected_amount_cents + ?", amount.Cents()),
			"updated_at":             a.now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("credit project %s: %w", projectID, res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.Newf(pkgerrors.ReasonNotFound, "project %s not found", projectID)
	}
	return nil
}
