package funding

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tamwill-backend/api/middleware"
	"github.com/angelmondragon/tamwill-backend/api/responses"
	"github.com/angelmondragon/tamwill-backend/api/validators"
	"github.com/angelmondragon/tamwill-backend/internal/reconciliation"
	"github.com/angelmondragon/tamwill-backend/pkg/db/models"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tamwill-backend/pkg/errors"
	"github.com/angelmondragon/tamwill-backend/pkg/logger"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
)

// ContributionGateway is the part of the reconciliation gateway the HTTP
// surface drives.
type ContributionGateway interface {
	Initiate(ctx context.Context, input reconciliation.InitiateInput) (*reconciliation.Initiation, error)
	ObserveReturn(ctx context.Context, contributionID uuid.UUID, handle string) (reconciliation.ObserveResult, error)
	CancelForUser(ctx context.Context, contributionID, userID uuid.UUID) (*models.Contribution, error)
}

type initiateContributionRequest struct {
	Amount    string `json:"amount" validate:"required,max=32"`
	Anonymous bool   `json:"anonymous"`
}

type initiateContributionResponse struct {
	ContributionID uuid.UUID    `json:"contribution_id"`
	PaymentIntent  string       `json:"payment_intent"`
	ClientSecret   string       `json:"client_secret"`
	Amount         money.Amount `json:"amount"`
	Currency       string       `json:"currency"`
}

type contributionResponse struct {
	ID        uuid.UUID                `json:"id"`
	ProjectID uuid.UUID                `json:"project_id"`
	Amount    money.Amount             `json:"amount"`
	Anonymous bool                     `json:"anonymous"`
	Status    enums.ContributionStatus `json:"status"`
	CreatedAt time.Time                `json:"created_at"`
}

type returnResponse struct {
	Contribution contributionResponse `json:"contribution"`
	ChargeStatus enums.ChargeStatus   `json:"charge_status"`
	Outcome      string               `json:"outcome"`
}

func newContributionResponse(c *models.Contribution) contributionResponse {
	return contributionResponse{
		ID:        c.ID,
		ProjectID: c.ProjectID,
		Amount:    c.Amount,
		Anonymous: c.Anonymous,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
	}
}

// InitiateContribution opens a pending contribution and its provider charge.
func InitiateContribution(gw ContributionGateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gw == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contribution gateway unavailable"))
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

		var req initiateContributionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := validators.ParseAmount("amount", req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithProjectID(ctx, projectID.String())
		}

		initiation, err := gw.Initiate(ctx, reconciliation.InitiateInput{
			UserID:    userID,
			ProjectID: projectID,
			Amount:    amount,
			Anonymous: req.Anonymous,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, initiateContributionResponse{
			ContributionID: initiation.ContributionID,
			PaymentIntent:  initiation.ChargeHandle,
			ClientSecret:   initiation.ClientSecret,
			Amount:         initiation.Amount,
			Currency:       initiation.Currency,
		})
	}
}

// ContributionReturn handles the checkout redirect carrying the payment intent id.
func ContributionReturn(gw ContributionGateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gw == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contribution gateway unavailable"))
			return
		}

		contributionID, err := validators.ParseUUIDParam(r, "contributionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		handle := strings.TrimSpace(r.URL.Query().Get("payment_intent"))
		if handle == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment_intent is required").WithDetails(map[string]any{"field": "payment_intent"}))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithContributionID(ctx, contributionID.String())
		}

		res, err := gw.ObserveReturn(ctx, contributionID, handle)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, returnResponse{
			Contribution: newContributionResponse(res.Contribution),
			ChargeStatus: res.Status,
			Outcome:      res.Outcome,
		})
	}
}

// CancelContribution lets the backer abandon a pending contribution.
func CancelContribution(gw ContributionGateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gw == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contribution gateway unavailable"))
			return
		}

		userID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		contributionID, err := validators.ParseUUIDParam(r, "contributionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contribution, err := gw.CancelForUser(r.Context(), contributionID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newContributionResponse(contribution))
	}
}
