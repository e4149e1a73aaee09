package contributions

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/tamwill-backend/internal/collection"
	"github.com/angelmondragon/tamwill-backend/internal/payments"
	"github.com/angelmondragon/tamwill-backend/pkg/db/models"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tamwill-backend/pkg/errors"
	"github.com/angelmondragon/tamwill-backend/pkg/logger"
	"github.com/angelmondragon/tamwill-backend/pkg/metrics"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type projectLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateInput carries a new pledge.
type CreateInput struct {
	UserID    uuid.UUID
	ProjectID uuid.UUID
	Amount    money.Amount
	Anonymous bool
}

// ConfirmInput carries a provider settlement for a contribution.
type ConfirmInput struct {
	ContributionID  uuid.UUID
	TransactionID   string
	ConfirmedAmount money.Amount
}

// ConfirmResult reports what a confirm call did. Outcome is one of the
// metrics.Confirm* values.
type ConfirmResult struct {
	Contribution *models.Contribution
	Payment      *models.Payment
	Outcome      string
}

// Applied reports whether this call moved money.
func (r ConfirmResult) Applied() bool {
	return r.Outcome == metrics.ConfirmApplied
}

type ServiceParams struct {
	Repository        Repository
	Projects          projectLookup
	Payments          payments.Repository
	Aggregator        collection.Aggregator
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.FundingMetrics
	Minimum           money.Amount
	ProviderName      string
	Clock             func() time.Time
}

// Service is the contribution state machine: pending moves to paid or
// cancelled exactly once and never back.
type Service struct {
	repo       Repository
	projects   projectLookup
	payments   payments.Repository
	aggregator collection.Aggregator
	txRunner   txRunner
	logg       *logger.Logger
	metrics    *metrics.FundingMetrics
	minimum    money.Amount
	provider   string
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "contribution repo required")
	}
	if params.Projects == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "project repo required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment repo required")
	}
	if params.Aggregator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "collection aggregator required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.Minimum.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "minimum contribution must not be negative")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	provider := params.ProviderName
	if provider == "" {
		provider = "Stripe Elements"
	}
	return &Service{
		repo:       params.Repository,
		projects:   params.Projects,
		payments:   params.Payments,
		aggregator: params.Aggregator,
		txRunner:   params.TransactionRunner,
		logg:       params.Logger,
		metrics:    params.Metrics,
		minimum:    params.Minimum,
		provider:   provider,
		now:        clock,
	}, nil
}

// Minimum returns the exclusive lower bound for a contribution amount.
func (s *Service) Minimum() money.Amount {
	return s.minimum
}

// Create persists a pending contribution. The amount must exceed the platform minimum.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Contribution, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.Amount <= s.minimum {
		return nil, pkgerrors.Newf(pkgerrors.ReasonInvalidAmount, "amount %s must be greater than %s", input.Amount, s.minimum)
	}
	if _, err := s.projects.FindByID(ctx, input.ProjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.ReasonNotFound, "project %s not found", input.ProjectID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project")
	}

	contribution := &models.Contribution{
		ID:        uuid.New(),
		ProjectID: input.ProjectID,
		UserID:    input.UserID,
		Amount:    input.Amount,
		Anonymous: input.Anonymous,
		Status:    enums.ContributionStatusPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, contribution); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create contribution")
	}
	return contribution, nil
}

// Get loads a contribution by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Contribution, error) {
	contribution, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, id, "load contribution")
	}
	return contribution, nil
}

// AttachCharge stores the provider charge handle on a contribution.
func (s *Service) AttachCharge(ctx context.Context, id uuid.UUID, chargeID string) error {
	if err := s.repo.SetProviderCharge(ctx, id, chargeID); err != nil {
		return notFoundOr(err, id, "store provider charge")
	}
	return nil
}

// Confirm settles a contribution. The status flip, the payment insert and the
// project credit commit together or not at all. Replays succeed without
// side effects.
func (s *Service) Confirm(ctx context.Context, input ConfirmInput) (ConfirmResult, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"contribution_id": input.ContributionID.String(),
		"transaction_id":  input.TransactionID,
	})

	var result ConfirmResult
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		contribution, err := repo.FindByIDForUpdate(ctx, input.ContributionID)
		if err != nil {
			return notFoundOr(err, input.ContributionID, "lock contribution")
		}
		result.Contribution = contribution

		switch contribution.Status {
		case enums.ContributionStatusPaid:
			result.Outcome = metrics.ConfirmAlreadyPaid
			return nil
		case enums.ContributionStatusCancelled:
			result.Outcome = metrics.ConfirmCancelled
			return nil
		}

		moved, err := repo.TransitionStatus(ctx, contribution.ID, enums.ContributionStatusPending, enums.ContributionStatusPaid)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark contribution paid")
		}
		if !moved {
			result.Outcome = metrics.ConfirmRaceLost
			return nil
		}

		if !input.ConfirmedAmount.IsZero() && input.ConfirmedAmount != contribution.Amount {
			s.metrics.IncAmountMismatch()
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"pledged_amount":   contribution.Amount.String(),
				"confirmed_amount": input.ConfirmedAmount.String(),
			}), "confirmed amount differs from pledge; crediting pledge")
		}

		payment, err := s.payments.WithTx(tx).Record(ctx, payments.RecordInput{
			ContributionID: contribution.ID,
			Provider:       s.provider,
			TransactionID:  input.TransactionID,
			Amount:         contribution.Amount,
		})
		if err != nil {
			return err
		}
		if err := s.aggregator.WithTx(tx).Credit(ctx, contribution.ProjectID, contribution.Amount); err != nil {
			return err
		}

		contribution.Status = enums.ContributionStatusPaid
		result.Payment = payment
		result.Outcome = metrics.ConfirmApplied
		return nil
	})

	if err != nil {
		if errors.Is(err, pkgerrors.ErrDuplicateTransaction) {
			s.metrics.IncConfirmation(metrics.ConfirmDuplicate)
			s.logg.Info(ctx, "transaction already recorded; confirm treated as applied")
			return ConfirmResult{Outcome: metrics.ConfirmDuplicate}, nil
		}
		return ConfirmResult{}, err
	}

	s.metrics.IncConfirmation(result.Outcome)
	switch result.Outcome {
	case metrics.ConfirmCancelled:
		s.logg.Warn(ctx, "confirm received for cancelled contribution; ignoring")
	case metrics.ConfirmApplied:
		s.logg.Info(s.logg.WithProjectID(ctx, result.Contribution.ProjectID.String()), "contribution paid")
	}
	return result, nil
}

// Cancel moves a pending contribution to cancelled. Terminal rows are
// returned unchanged.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*models.Contribution, error) {
	contribution, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, id, "load contribution")
	}
	if contribution.Status.IsTerminal() {
		return contribution, nil
	}

	moved, err := s.repo.TransitionStatus(ctx, id, enums.ContributionStatusPending, enums.ContributionStatusCancelled)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel contribution")
	}
	if !moved {
		// lost to a concurrent confirm or cancel; report what won
		return s.Get(ctx, id)
	}
	contribution.Status = enums.ContributionStatusCancelled
	s.logg.Info(s.logg.WithContributionID(ctx, id.String()), "contribution cancelled")
	return contribution, nil
}

func notFoundOr(err error, id uuid.UUID, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.ReasonNotFound, "contribution %s not found", id)
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
