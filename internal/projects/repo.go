package projects

import (
	"context"
	"time"

	"github.com/angelmondragon/tamwill-backend/internal/repo"
	"github.com/angelmondragon/tamwill-backend/pkg/db/models"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists projects. The collected total is owned by the
// collection aggregator and is never written here.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, project *models.Project) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Project, error)
	MarkPayoutRequested(ctx context.Context, id uuid.UUID, destination string, at time.Time) (bool, error)
	MarkPayoutConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListPayoutQueue(ctx context.Context, limit int) ([]models.Project, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a project repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	return r.DB(ctx).Create(project).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := r.DB(ctx).First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := r.Locked(ctx).First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// MarkPayoutRequested moves a pending payout to requested. It reports false
// when the row was no longer pending.
func (r *repository) MarkPayoutRequested(ctx context.Context, id uuid.UUID, destination string, at time.Time) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Project{}).
		Where("id = ? AND payout_status = ?", id, enums.PayoutStatusPending).
		Updates(map[string]any{
			"payout_status":       enums.PayoutStatusRequested,
			"payout_destination":  destination,
			"payout_requested_at": at,
			"updated_at":          at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkPayoutConfirmed moves a pending or requested payout to confirmed.
func (r *repository) MarkPayoutConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Project{}).
		Where("id = ? AND payout_status IN ?", id, []enums.PayoutStatus{enums.PayoutStatusPending, enums.PayoutStatusRequested}).
		Updates(map[string]any{
			"payout_status":       enums.PayoutStatusConfirmed,
			"payout_completed_at": at,
			"updated_at":          at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListPayoutQueue returns projects still awaiting payout, newest request first.
// Projects that never requested sort last.
func (r *repository) ListPayoutQueue(ctx context.Context, limit int) ([]models.Project, error) {
	if limit <= 0 {
		limit = 50
	}
	var projects []models.Project
	if err := r.DB(ctx).
		Where("payout_status IN ?", []enums.PayoutStatus{enums.PayoutStatusPending, enums.PayoutStatusRequested}).
		Order("CASE WHEN payout_requested_at IS NULL THEN 1 ELSE 0 END").
		Order("payout_requested_at DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}
