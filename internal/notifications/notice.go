// Package notifications delivers payout notices to creators.
package notifications

import (
	"time"

	"github.com/angelmondragon/tamwill-backend/internal/users"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
	"github.com/google/uuid"
)

// EventPayoutConfirmed is the event type carried on published payout notices.
const EventPayoutConfirmed = "payout.confirmed"

const envelopeVersion = 1

// PayoutNotice tells a creator their payout was approved.
type PayoutNotice struct {
	ProjectID    uuid.UUID     `json:"project_id"`
	ProjectTitle string        `json:"project_title"`
	Creator      users.Contact `json:"creator"`
	Amount       money.Amount  `json:"amount"`
	Destination  string        `json:"destination"`
	ConfirmedAt  time.Time     `json:"confirmed_at"`
}
