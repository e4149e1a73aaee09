package projections

import (
	"context"
	"time"

	"github.com/angelmondragon/tamwill-backend/internal/repo"
	"github.com/angelmondragon/tamwill-backend/pkg/db/models"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	"github.com/angelmondragon/tamwill-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type leaderRow struct {
	UserID        uuid.UUID
	TotalCents    int64
	Contributions int
	AllAnonymous  int
}

type historyRow struct {
	ID           uuid.UUID
	ProjectID    uuid.UUID
	ProjectTitle string
	AmountCents  int64
	Anonymous    bool
	CreatedAt    time.Time
}

// Repository runs the read-only ledger queries behind the projections.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// ListPaidByProject returns a project's paid contributions, oldest first.
func (r *Repository) ListPaidByProject(ctx context.Context, projectID uuid.UUID) ([]models.Contribution, error) {
	var rows []models.Contribution
	if err := r.DB(ctx).
		Where("project_id = ? AND status = ?", projectID, enums.ContributionStatusPaid).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByProject pages through every contribution of a project, newest first.
func (r *Repository) ListByProject(ctx context.Context, projectID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Contribution, error) {
	var rows []models.Contribution
	q := r.DB(ctx).Where("project_id = ?", projectID)
	if err := pagination.Descending(q, cursor, "").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Leaderboard totals paid contributions per backer, largest first. A nil
// projectID ranks across all projects.
func (r *Repository) Leaderboard(ctx context.Context, projectID *uuid.UUID, limit int) ([]leaderRow, error) {
	q := r.DB(ctx).
		Model(&models.Contribution{}).
		Select(`user_id,
			CAST(SUM(amount_cents) AS BIGINT) AS total_cents,
			COUNT(*) AS contributions,
			MIN(CASE WHEN anonymous THEN 1 ELSE 0 END) AS all_anonymous`).
		Where("status = ?", enums.ContributionStatusPaid)
	if projectID != nil {
		q = q.Where("project_id = ?", *projectID)
	}
	var rows []leaderRow
	if err := q.Group("user_id").
		Order("total_cents DESC").
		Order("user_id ASC").
		Limit(pagination.NormalizeLimit(limit)).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// History pages through a user's paid contributions, newest first.
func (r *Repository) History(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]historyRow, error) {
	q := r.DB(ctx).
		Table("contributions").
		Select(`contributions.id,
			contributions.project_id,
			projects.title AS project_title,
			contributions.amount_cents,
			contributions.anonymous,
			contributions.created_at`).
		Joins("JOIN projects ON projects.id = contributions.project_id").
		Where("contributions.user_id = ? AND contributions.status = ?", userID, enums.ContributionStatusPaid)
	var rows []historyRow
	if err := pagination.Descending(q, cursor, "contributions").
		Limit(pagination.LimitWithBuffer(limit)).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
