// Package ledger audits the funding ledger: every project's collected total
// must equal the sum of its paid contributions, each backed by one payment.
package ledger

import (
	"context"
	"fmt"

	"github.com/angelmondragon/tamwill-backend/pkg/money"
	"github.com/google/uuid"
)

// Drift describes a project whose books do not balance.
type Drift struct {
	ProjectID       uuid.UUID    `json:"project_id"`
	Title           string       `json:"title"`
	Collected       money.Amount `json:"collected"`
	Paid            money.Amount `json:"paid"`
	Delta           money.Amount `json:"delta"`
	MissingPayments int64        `json:"missing_payments"`
}

// Report is the result of an audit run.
type Report struct {
	Projects int     `json:"projects"`
	Drifts   []Drift `json:"drifts"`
}

// Balanced reports whether no project drifted.
func (r Report) Balanced() bool {
	return len(r.Drifts) == 0
}

// Service defines the ledger audit.
type Service interface {
	Audit(ctx context.Context, projectID *uuid.UUID) (*Report, error)
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Audit(ctx context.Context, projectID *uuid.UUID) (*Report, error) {
	balances, err := s.repo.Balances(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}
	report := &Report{Projects: len(balances), Drifts: []Drift{}}
	for _, b := range balances {
		missing := b.PaidCount - b.PaymentCount
		if b.CollectedCents == b.PaidCents && missing == 0 {
			continue
		}
		collected := money.FromCents(b.CollectedCents)
		paid := money.FromCents(b.PaidCents)
		report.Drifts = append(report.Drifts, Drift{
			ProjectID:       b.ProjectID,
			Title:           b.Title,
			Collected:       collected,
			Paid:            paid,
			Delta:           collected.Sub(paid),
			MissingPayments: missing,
		})
	}
	return report, nil
}
