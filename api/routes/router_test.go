package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tamwill-backend/internal/payouts"
	"github.com/angelmondragon/tamwill-backend/internal/projections"
	pkgAuth "github.com/angelmondragon/tamwill-backend/pkg/auth"
	"github.com/angelmondragon/tamwill-backend/pkg/config"
	"github.com/angelmondragon/tamwill-backend/pkg/db/models"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	"github.com/angelmondragon/tamwill-backend/pkg/metrics"
	"github.com/angelmondragon/tamwill-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubPayouts struct {
	confirmed []payouts.ConfirmInput
}

func (s *stubPayouts) Request(ctx context.Context, input payouts.RequestInput) (*models.Project, error) {
	return &models.Project{ID: input.ProjectID, PayoutStatus: enums.PayoutStatusRequested}, nil
}

func (s *stubPayouts) Confirm(ctx context.Context, input payouts.ConfirmInput) (*models.Project, error) {
	s.confirmed = append(s.confirmed, input)
	return &models.Project{ID: input.ProjectID, PayoutStatus: enums.PayoutStatusConfirmed}, nil
}

type stubProjections struct{}

func (stubProjections) Dashboard(ctx context.Context, projectID, requesterID uuid.UUID) (*projections.Dashboard, error) {
	return &projections.Dashboard{ProjectID: projectID}, nil
}

func (stubProjections) Transactions(ctx context.Context, projectID, requesterID uuid.UUID, params pagination.Params) (*pagination.Page[projections.ContributionView], error) {
	return &pagination.Page[projections.ContributionView]{Items: []projections.ContributionView{}}, nil
}

func (stubProjections) Leaderboard(ctx context.Context, projectID *uuid.UUID, limit int) ([]projections.LeaderboardEntry, error) {
	return []projections.LeaderboardEntry{}, nil
}

func (stubProjections) History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*pagination.Page[projections.HistoryEntry], error) {
	return &pagination.Page[projections.HistoryEntry]{Items: []projections.HistoryEntry{}}, nil
}

func (stubProjections) PayoutQueue(ctx context.Context, limit int) ([]projections.PayoutQueueItem, error) {
	return []projections.PayoutQueueItem{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:  config.AppConfig{Env: "dev"},
		JWT:  config.JWTConfig{Secret: "secret", Issuer: "tamwill", ExpirationMinutes: 10},
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimit: config.RateLimitConfig{
			ContributionLimit:  10,
			ContributionWindow: time.Minute,
		},
	}
}

func bearer(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func newTestRouter(t *testing.T, payoutSvc *stubPayouts) (*config.Config, http.Handler) {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	metrics.NewFundingMetrics(reg)
	router := NewRouter(cfg, nil, stubPinger{}, nil, reg, Services{
		Payouts:     payoutSvc,
		Projections: stubProjections{},
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
	})
	return cfg, router
}

func TestHealthRoutes(t *testing.T) {
	_, router := newTestRouter(t, &stubPayouts{})
	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	_, router := newTestRouter(t, &stubPayouts{})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	want := `http_requests_total{method="GET",route="/health/live",status="200"} 1`
	if !strings.Contains(resp.Body.String(), want) {
		t.Fatalf("expected %s in exposition", want)
	}
}

func TestFundingRoutesRequireAuth(t *testing.T) {
	_, router := newTestRouter(t, &stubPayouts{})
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/projects/" + uuid.NewString() + "/contributions"},
		{http.MethodGet, "/api/v1/leaderboard"},
		{http.MethodPost, "/api/admin/v1/projects/" + uuid.NewString() + "/payout/confirm"},
	}
	for _, p := range paths {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(p.method, p.path, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", p.method, p.path, resp.Code)
		}
	}
}

func TestCreatorRoutesRejectBackers(t *testing.T) {
	cfg, router := newTestRouter(t, &stubPayouts{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/creator/projects/"+uuid.NewString()+"/dashboard", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.UserRoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/creator/projects/"+uuid.NewString()+"/dashboard", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.UserRoleCreator))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestAdminConfirmRoute(t *testing.T) {
	payoutSvc := &stubPayouts{}
	cfg, router := newTestRouter(t, payoutSvc)
	projectID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/projects/"+projectID.String()+"/payout/confirm", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.UserRoleCreator))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for creator got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/admin/v1/projects/"+projectID.String()+"/payout/confirm", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.UserRoleAdmin))
	req.Header.Set("Idempotency-Key", "confirm-1")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if len(payoutSvc.confirmed) != 1 || payoutSvc.confirmed[0].ProjectID != projectID {
		t.Fatalf("unexpected confirm calls %+v", payoutSvc.confirmed)
	}
	if payoutSvc.confirmed[0].ApproverRole != enums.UserRoleAdmin {
		t.Fatalf("expected admin approver role, got %s", payoutSvc.confirmed[0].ApproverRole)
	}
}

func TestMissingServicesAnswerInternalError(t *testing.T) {
	cfg, router := newTestRouter(t, &stubPayouts{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/"+uuid.NewString()+"/contributions", strings.NewReader(`{"amount":"10.00"}`))
	req.Header.Set("Authorization", bearer(t, cfg, enums.UserRoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}

func TestStripeWebhookRouteIsPublic(t *testing.T) {
	_, router := newTestRouter(t, &stubPayouts{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader("{}")))
	if resp.Code == http.StatusUnauthorized {
		t.Fatal("webhook route must not require a bearer token")
	}
}
