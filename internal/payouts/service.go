package payouts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/tamwill-backend/internal/notifications"
	"github.com/angelmondragon/tamwill-backend/internal/projects"
	"github.com/angelmondragon/tamwill-backend/internal/users"
	"github.com/angelmondragon/tamwill-backend/pkg/db/models"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tamwill-backend/pkg/errors"
	"github.com/angelmondragon/tamwill-backend/pkg/logger"
	"github.com/angelmondragon/tamwill-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type notifier interface {
	NotifyPayoutConfirmed(ctx context.Context, notice notifications.PayoutNotice) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RequestInput is a creator asking to withdraw a project's collected funds.
type RequestInput struct {
	ProjectID   uuid.UUID
	RequesterID uuid.UUID
	Destination string
}

// ConfirmInput is an approver releasing a payout.
type ConfirmInput struct {
	ProjectID    uuid.UUID
	ApproverID   uuid.UUID
	ApproverRole enums.UserRole
}

type ServiceParams struct {
	Projects          projects.Repository
	Users             userLookup
	Notifier          notifier
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.FundingMetrics
	Clock             func() time.Time
}

// Service runs the payout approval flow: pending, requested by the creator,
// confirmed by an admin.
type Service struct {
	projects projects.Repository
	users    userLookup
	notifier notifier
	txRunner txRunner
	logg     *logger.Logger
	metrics  *metrics.FundingMetrics
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Projects == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "project repo required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repo required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifier required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		projects: params.Projects,
		users:    params.Users,
		notifier: params.Notifier,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      clock,
	}, nil
}

// Request records the creator's payout destination and moves the payout to
// requested. The goal must be met.
func (s *Service) Request(ctx context.Context, input RequestInput) (*models.Project, error) {
	destination := strings.TrimSpace(input.Destination)
	var updated *models.Project

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.projects.WithTx(tx)
		project, err := loadForUpdate(ctx, repo, input.ProjectID)
		if err != nil {
			return err
		}
		if project.CreatorID != input.RequesterID {
			return pkgerrors.Newf(pkgerrors.ReasonNotOwner, "user %s does not own project %s", input.RequesterID, project.ID)
		}
		if project.CollectedAmount < project.GoalAmount {
			return pkgerrors.Newf(pkgerrors.ReasonGoalNotReached, "collected %s of %s", project.CollectedAmount, project.GoalAmount)
		}
		if project.PayoutStatus != enums.PayoutStatusPending {
			return pkgerrors.Newf(pkgerrors.ReasonAlreadyRequested, "payout is %s", project.PayoutStatus)
		}
		if destination == "" {
			return pkgerrors.Newf(pkgerrors.ReasonMissingDestination, "payout destination is required")
		}

		at := s.now().UTC()
		moved, err := repo.MarkPayoutRequested(ctx, project.ID, destination, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout requested")
		}
		if !moved {
			return pkgerrors.Newf(pkgerrors.ReasonAlreadyRequested, "payout already requested")
		}
		project.PayoutStatus = enums.PayoutStatusRequested
		project.PayoutDestination = &destination
		project.PayoutRequestedAt = &at
		updated = project
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPayoutTransition(string(enums.PayoutStatusRequested))
	s.logg.Info(s.logg.WithProjectID(ctx, updated.ID.String()), "payout requested")
	return updated, nil
}

// Confirm releases a payout. Only admins may confirm. The creator is notified
// after commit; a failed notification does not undo the confirmation.
func (s *Service) Confirm(ctx context.Context, input ConfirmInput) (*models.Project, error) {
	if input.ApproverRole != enums.UserRoleAdmin {
		return nil, pkgerrors.Newf(pkgerrors.ReasonForbidden, "role %q cannot confirm payouts", input.ApproverRole)
	}

	var updated *models.Project
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.projects.WithTx(tx)
		project, err := loadForUpdate(ctx, repo, input.ProjectID)
		if err != nil {
			return err
		}
		// pending is accepted so admins can pay out without a creator request
		if project.PayoutStatus != enums.PayoutStatusPending && project.PayoutStatus != enums.PayoutStatusRequested {
			return pkgerrors.Newf(pkgerrors.ReasonInvalidState, "payout is %s", project.PayoutStatus)
		}
		if !project.CollectedAmount.IsPositive() {
			return pkgerrors.Newf(pkgerrors.ReasonNothingToPayout, "project %s has collected nothing", project.ID)
		}
		if project.PayoutDestination == nil || strings.TrimSpace(*project.PayoutDestination) == "" {
			return pkgerrors.Newf(pkgerrors.ReasonMissingDestination, "no payout destination on file")
		}

		at := s.now().UTC()
		moved, err := repo.MarkPayoutConfirmed(ctx, project.ID, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout confirmed")
		}
		if !moved {
			return pkgerrors.Newf(pkgerrors.ReasonInvalidState, "payout changed concurrently")
		}
		project.PayoutStatus = enums.PayoutStatusConfirmed
		project.PayoutCompletedAt = &at
		updated = project
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"project_id":  updated.ID.String(),
		"approver_id": input.ApproverID.String(),
	})
	s.metrics.IncPayoutTransition(string(enums.PayoutStatusConfirmed))
	s.logg.Info(ctx, "payout confirmed")
	s.notify(ctx, updated)
	return updated, nil
}

// Queue lists projects whose payout is still open, newest request first.
func (s *Service) Queue(ctx context.Context, limit int) ([]models.Project, error) {
	rows, err := s.projects.ListPayoutQueue(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payout queue")
	}
	return rows, nil
}

func (s *Service) notify(ctx context.Context, project *models.Project) {
	creator, err := s.users.FindByID(ctx, project.CreatorID)
	if err != nil {
		s.metrics.IncNotificationFailure()
		s.logg.Error(ctx, "load creator for payout notice", err)
		return
	}
	notice := notifications.PayoutNotice{
		ProjectID:    project.ID,
		ProjectTitle: project.Title,
		Creator:      *users.ContactFromModel(creator),
		Amount:       project.CollectedAmount,
		Destination:  *project.PayoutDestination,
		ConfirmedAt:  *project.PayoutCompletedAt,
	}
	if err := s.notifier.NotifyPayoutConfirmed(ctx, notice); err != nil {
		s.metrics.IncNotificationFailure()
		s.logg.Error(ctx, "payout notification failed", err)
	}
}

func loadForUpdate(ctx context.Context, repo projects.Repository, id uuid.UUID) (*models.Project, error) {
	project, err := repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.ReasonNotFound, "project %s not found", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project")
	}
	return project, nil
}
