package funding

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tamwill-backend/api/middleware"
	"github.com/angelmondragon/tamwill-backend/api/responses"
	"github.com/angelmondragon/tamwill-backend/api/validators"
	"github.com/angelmondragon/tamwill-backend/internal/payouts"
	"github.com/angelmondragon/tamwill-backend/pkg/db/models"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tamwill-backend/pkg/errors"
	"github.com/angelmondragon/tamwill-backend/pkg/logger"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
)

const maxDestinationLength = 128

// PayoutService is the payout state machine as seen by the HTTP surface.
type PayoutService interface {
	Request(ctx context.Context, input payouts.RequestInput) (*models.Project, error)
	Confirm(ctx context.Context, input payouts.ConfirmInput) (*models.Project, error)
}

type payoutRequestBody struct {
	Destination string `json:"destination" validate:"required,max=128,printable"`
}

type payoutResponse struct {
	ProjectID         uuid.UUID          `json:"project_id"`
	Goal              money.Amount       `json:"goal"`
	Collected         money.Amount       `json:"collected"`
	PayoutStatus      enums.PayoutStatus `json:"payout_status"`
	PayoutDestination *string            `json:"payout_destination,omitempty"`
	RequestedAt       *time.Time         `json:"payout_requested_at,omitempty"`
	CompletedAt       *time.Time         `json:"payout_completed_at,omitempty"`
}

func newPayoutResponse(p *models.Project) payoutResponse {
	return payoutResponse{
		ProjectID:         p.ID,
		Goal:              p.GoalAmount,
		Collected:         p.CollectedAmount,
		PayoutStatus:      p.PayoutStatus,
		PayoutDestination: p.PayoutDestination,
		RequestedAt:       p.PayoutRequestedAt,
		CompletedAt:       p.PayoutCompletedAt,
	}
}

// CreatorRequestPayout records the creator's payout destination.
func CreatorRequestPayout(svc PayoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		userID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		projectID, err := validators.ParseUUIDParam(r, "projectId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body payoutRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithProjectID(ctx, projectID.String())
		}

		project, err := svc.Request(ctx, payouts.RequestInput{
			ProjectID:   projectID,
			RequesterID: userID,
			Destination: validators.SanitizeString(body.Destination, maxDestinationLength),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPayoutResponse(project))
	}
}

// AdminConfirmPayout releases a requested payout.
func AdminConfirmPayout(svc PayoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		approverID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		projectID, err := validators.ParseUUIDParam(r, "projectId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithProjectID(ctx, projectID.String())
		}

		project, err := svc.Confirm(ctx, payouts.ConfirmInput{
			ProjectID:    projectID,
			ApproverID:   approverID,
			ApproverRole: enums.UserRole(middleware.RoleFromContext(r.Context())),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPayoutResponse(project))
	}
}
