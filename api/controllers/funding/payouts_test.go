package funding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tamwill-backend/internal/payouts"
	"github.com/angelmondragon/tamwill-backend/pkg/db/models"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tamwill-backend/pkg/errors"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
)

type stubPayouts struct {
	requestFn func(ctx context.Context, input payouts.RequestInput) (*models.Project, error)
	confirmFn func(ctx context.Context, input payouts.ConfirmInput) (*models.Project, error)
}

func (s stubPayouts) Request(ctx context.Context, input payouts.RequestInput) (*models.Project, error) {
	return s.requestFn(ctx, input)
}

func (s stubPayouts) Confirm(ctx context.Context, input payouts.ConfirmInput) (*models.Project, error) {
	return s.confirmFn(ctx, input)
}

func TestCreatorRequestPayout(t *testing.T) {
	creatorID, projectID := uuid.New(), uuid.New()
	svc := stubPayouts{requestFn: func(ctx context.Context, input payouts.RequestInput) (*models.Project, error) {
		if input.RequesterID != creatorID || input.ProjectID != projectID || input.Destination != "ACC123" {
			t.Fatalf("unexpected input %+v", input)
		}
		dest := input.Destination
		now := time.Now().UTC()
		return &models.Project{
			ID:                projectID,
			GoalAmount:        money.FromCents(10000),
			CollectedAmount:   money.FromCents(10000),
			PayoutStatus:      enums.PayoutStatusRequested,
			PayoutDestination: &dest,
			PayoutRequestedAt: &now,
		}, nil
	}}

	req := routed(http.MethodPost, "/", `{"destination":"  ACC123 "}`, creatorID, enums.UserRoleCreator, map[string]string{"projectId": projectID.String()})
	resp := httptest.NewRecorder()
	CreatorRequestPayout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	var env struct {
		Data payoutResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.PayoutStatus != enums.PayoutStatusRequested || env.Data.RequestedAt == nil {
		t.Fatalf("unexpected payload %+v", env.Data)
	}
}

func TestCreatorRequestPayoutMapsDomainErrors(t *testing.T) {
	cases := []struct {
		reason pkgerrors.Reason
		status int
	}{
		{pkgerrors.ReasonGoalNotReached, http.StatusUnprocessableEntity},
		{pkgerrors.ReasonAlreadyRequested, http.StatusConflict},
		{pkgerrors.ReasonNotOwner, http.StatusForbidden},
		{pkgerrors.ReasonNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		svc := stubPayouts{requestFn: func(ctx context.Context, input payouts.RequestInput) (*models.Project, error) {
			return nil, pkgerrors.Newf(tc.reason, "project %s", input.ProjectID)
		}}
		req := routed(http.MethodPost, "/", `{"destination":"ACC123"}`, uuid.New(), enums.UserRoleCreator, map[string]string{"projectId": uuid.NewString()})
		resp := httptest.NewRecorder()
		CreatorRequestPayout(svc, nil).ServeHTTP(resp, req)
		if resp.Code != tc.status {
			t.Fatalf("%s: expected %d got %d", tc.reason, tc.status, resp.Code)
		}
		if apiErr := decodeError(t, resp); apiErr.Reason != string(tc.reason) {
			t.Fatalf("expected reason %s got %s", tc.reason, apiErr.Reason)
		}
	}
}

func TestCreatorRequestPayoutRequiresDestination(t *testing.T) {
	svc := stubPayouts{requestFn: func(ctx context.Context, input payouts.RequestInput) (*models.Project, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	req := routed(http.MethodPost, "/", `{}`, uuid.New(), enums.UserRoleCreator, map[string]string{"projectId": uuid.NewString()})
	resp := httptest.NewRecorder()
	CreatorRequestPayout(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminConfirmPayoutPassesRole(t *testing.T) {
	adminID, projectID := uuid.New(), uuid.New()
	svc := stubPayouts{confirmFn: func(ctx context.Context, input payouts.ConfirmInput) (*models.Project, error) {
		if input.ApproverID != adminID || input.ApproverRole != enums.UserRoleAdmin {
			t.Fatalf("unexpected approver %+v", input)
		}
		now := time.Now().UTC()
		return &models.Project{ID: projectID, PayoutStatus: enums.PayoutStatusConfirmed, PayoutCompletedAt: &now}, nil
	}}

	req := routed(http.MethodPost, "/", "", adminID, enums.UserRoleAdmin, map[string]string{"projectId": projectID.String()})
	resp := httptest.NewRecorder()
	AdminConfirmPayout(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	var env struct {
		Data payoutResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.PayoutStatus != enums.PayoutStatusConfirmed || env.Data.CompletedAt == nil {
		t.Fatalf("unexpected payload %+v", env.Data)
	}
}

func TestAdminConfirmPayoutMissingDestination(t *testing.T) {
	svc := stubPayouts{confirmFn: func(ctx context.Context, input payouts.ConfirmInput) (*models.Project, error) {
		return nil, pkgerrors.Newf(pkgerrors.ReasonMissingDestination, "project %s has no destination", input.ProjectID)
	}}
	req := routed(http.MethodPost, "/", "", uuid.New(), enums.UserRoleAdmin, map[string]string{"projectId": uuid.NewString()})
	resp := httptest.NewRecorder()
	AdminConfirmPayout(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}
