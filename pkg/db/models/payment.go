package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
)

// Payment is the settled provider transaction behind exactly one paid contribution.
type Payment struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ContributionID uuid.UUID           `gorm:"column:contribution_id;type:uuid;not null;uniqueIndex:payments_contribution_id_key"`
	Provider       string              `gorm:"column:provider;not null"`
	TransactionID  string              `gorm:"column:transaction_id;not null;uniqueIndex:payments_transaction_id_key"`
	Amount         money.Amount        `gorm:"column:amount_cents;not null"`
	Status         enums.PaymentStatus `gorm:"column:status;not null"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
}
