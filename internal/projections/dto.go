package projections

import (
	"time"

	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
	"github.com/google/uuid"
)

// AnonymousName replaces the backer name on anonymous contributions.
const AnonymousName = "Anonymous"

// ContributionView is a contribution as a creator sees it.
type ContributionView struct {
	ID         uuid.UUID                `json:"id"`
	BackerID   *uuid.UUID               `json:"backer_id,omitempty"`
	BackerName string                   `json:"backer_name"`
	Amount     money.Amount             `json:"amount"`
	Anonymous  bool                     `json:"anonymous"`
	Status     enums.ContributionStatus `json:"status"`
	CreatedAt  time.Time                `json:"created_at"`
}

// SeriesPoint is the running collected total at the end of a day.
type SeriesPoint struct {
	Day        string       `json:"day"`
	Cumulative money.Amount `json:"cumulative"`
}

// Dashboard summarizes a project's funding for its creator.
type Dashboard struct {
	ProjectID    uuid.UUID          `json:"project_id"`
	Title        string             `json:"title"`
	Goal         money.Amount       `json:"goal"`
	Collected    money.Amount       `json:"collected"`
	PayoutStatus enums.PayoutStatus `json:"payout_status"`
	BackerCount  int                `json:"backer_count"`
	Series       []SeriesPoint      `json:"series"`
	Recent       []ContributionView `json:"recent"`
}

// LeaderboardEntry is one ranked backer.
type LeaderboardEntry struct {
	Rank          int          `json:"rank"`
	UserID        *uuid.UUID   `json:"user_id,omitempty"`
	Name          string       `json:"name"`
	Total         money.Amount `json:"total"`
	Contributions int          `json:"contributions"`
}

// HistoryEntry is one of the caller's paid contributions.
type HistoryEntry struct {
	ContributionID uuid.UUID    `json:"contribution_id"`
	ProjectID      uuid.UUID    `json:"project_id"`
	ProjectTitle   string       `json:"project_title"`
	Amount         money.Amount `json:"amount"`
	Anonymous      bool         `json:"anonymous"`
	CreatedAt      time.Time    `json:"created_at"`
}

// PayoutQueueItem is a project awaiting payout review.
type PayoutQueueItem struct {
	ProjectID         uuid.UUID          `json:"project_id"`
	Title             string             `json:"title"`
	CreatorID         uuid.UUID          `json:"creator_id"`
	Collected         money.Amount       `json:"collected"`
	Goal              money.Amount       `json:"goal"`
	PayoutStatus      enums.PayoutStatus `json:"payout_status"`
	PayoutDestination *string            `json:"payout_destination,omitempty"`
	RequestedAt       *time.Time         `json:"requested_at,omitempty"`
}
