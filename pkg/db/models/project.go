package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
)

// Project is a crowdfunding campaign owned by a creator. CollectedAmount is a
// running total that only the collection aggregator mutates.
type Project struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CreatorID         uuid.UUID           `gorm:"column:creator_id;type:uuid;not null"`
	Title             string              `gorm:"column:title;not null"`
	Status            enums.ProjectStatus `gorm:"column:status;not null"`
	GoalAmount        money.Amount        `gorm:"column:goal_amount_cents;not null"`
	CollectedAmount   money.Amount        `gorm:"column:collected_amount_cents;not null;default:0"`
	PayoutStatus      enums.PayoutStatus  `gorm:"column:payout_status;not null"`
	PayoutDestination *string             `gorm:"column:payout_destination"`
	PayoutRequestedAt *time.Time          `gorm:"column:payout_requested_at"`
	PayoutCompletedAt *time.Time          `gorm:"column:payout_completed_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
