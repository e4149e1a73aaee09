package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
)

// Contribution is a backer's pledge toward a project.
type Contribution struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	ProjectID        uuid.UUID                `gorm:"column:project_id;type:uuid;not null"`
	UserID           uuid.UUID                `gorm:"column:user_id;type:uuid;not null"`
	Amount           money.Amount             `gorm:"column:amount_cents;not null"`
	Anonymous        bool                     `gorm:"column:anonymous;not null;default:false"`
	Status           enums.ContributionStatus `gorm:"column:status;not null"`
	ProviderChargeID *string                  `gorm:"column:provider_charge_id"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
