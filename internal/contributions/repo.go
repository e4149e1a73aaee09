package contributions

import (
	"context"
	"time"

	"github.com/angelmondragon/tamwill-backend/internal/repo"
	"github.com/angelmondragon/tamwill-backend/pkg/db/models"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists contributions. Status changes go through
// TransitionStatus so a row only ever moves forward.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, contribution *models.Contribution) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Contribution, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Contribution, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.ContributionStatus) (bool, error)
	SetProviderCharge(ctx context.Context, id uuid.UUID, chargeID string) error
	ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]models.Contribution, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a contribution repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, contribution *models.Contribution) error {
	if contribution.ID == uuid.Nil {
		contribution.ID = uuid.New()
	}
	return r.DB(ctx).Create(contribution).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Contribution, error) {
	var contribution models.Contribution
	if err := r.DB(ctx).First(&contribution, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &contribution, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Contribution, error) {
	var contribution models.Contribution
	if err := r.Locked(ctx).First(&contribution, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &contribution, nil
}

// TransitionStatus is a compare-and-set on status; false means another writer
// moved the row first.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.ContributionStatus) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Contribution{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetProviderCharge(ctx context.Context, id uuid.UUID, chargeID string) error {
	res := r.DB(ctx).
		Model(&models.Contribution{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"provider_charge_id": chargeID,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListPendingBefore returns pending contributions created before the cutoff
// that already hold a provider charge, oldest first.
func (r *repository) ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]models.Contribution, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Contribution
	if err := r.DB(ctx).
		Where("status = ? AND created_at < ? AND provider_charge_id IS NOT NULL", enums.ContributionStatusPending, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
