package funding

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/tamwill-backend/api/middleware"
	"github.com/angelmondragon/tamwill-backend/api/responses"
	"github.com/angelmondragon/tamwill-backend/api/validators"
	"github.com/angelmondragon/tamwill-backend/internal/projections"
	pkgerrors "github.com/angelmondragon/tamwill-backend/pkg/errors"
	"github.com/angelmondragon/tamwill-backend/pkg/logger"
	"github.com/angelmondragon/tamwill-backend/pkg/pagination"
)

// ProjectionService serves the read-only funding views.
type ProjectionService interface {
	Dashboard(ctx context.Context, projectID, requesterID uuid.UUID) (*projections.Dashboard, error)
	Transactions(ctx context.Context, projectID, requesterID uuid.UUID, params pagination.Params) (*pagination.Page[projections.ContributionView], error)
	Leaderboard(ctx context.Context, projectID *uuid.UUID, limit int) ([]projections.LeaderboardEntry, error)
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*pagination.Page[projections.HistoryEntry], error)
	PayoutQueue(ctx context.Context, limit int) ([]projections.PayoutQueueItem, error)
}

// ProjectDashboard returns the creator's funding summary.
func ProjectDashboard(svc ProjectionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "projection service unavailable"))
			return
		}
		userID, projectID, ok := ownerRequest(w, r, logg)
		if !ok {
			return
		}
		dashboard, err := svc.Dashboard(r.Context(), projectID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dashboard)
	}
}

// ProjectTransactions pages through all contributions of a creator's project.
func ProjectTransactions(svc ProjectionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "projection service unavailable"))
			return
		}
		userID, projectID, ok := ownerRequest(w, r, logg)
		if !ok {
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.Transactions(r.Context(), projectID, userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// Leaderboard ranks backers globally, or within ?project_id= when given.
func Leaderboard(svc ProjectionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "projection service unavailable"))
			return
		}
		projectID, err := validators.ParseOptionalUUIDQuery(r, "project_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.Leaderboard(r.Context(), projectID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

// DonationHistory pages through the caller's paid contributions.
func DonationHistory(svc ProjectionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "projection service unavailable"))
			return
		}
		userID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.History(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminPayoutQueue lists projects whose payout is pending or requested.
func AdminPayoutQueue(svc ProjectionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "projection service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.PayoutQueue(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func ownerRequest(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return uuid.Nil, uuid.Nil, false
	}
	projectID, err := validators.ParseUUIDParam(r, "projectId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, projectID, true
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
