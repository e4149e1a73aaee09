package contributions

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/tamwill-backend/internal/collection"
	"github.com/angelmondragon/tamwill-backend/internal/payments"
	"github.com/angelmondragon/tamwill-backend/internal/projects"
	"github.com/angelmondragon/tamwill-backend/pkg/db"
	"github.com/angelmondragon/tamwill-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tamwill-backend/pkg/db/models"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tamwill-backend/pkg/errors"
	"github.com/angelmondragon/tamwill-backend/pkg/logger"
	"github.com/angelmondragon/tamwill-backend/pkg/metrics"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type harness struct {
	svc     *Service
	conn    *gorm.DB
	reg     *prometheus.Registry
	project models.Project
	backer  models.User
}

func newHarness(t *testing.T) harness {
	t.Helper()
	conn := dbtest.Open(t)
	creator := dbtest.SeedUser(t, conn, enums.UserRoleCreator)
	backer := dbtest.SeedUser(t, conn, enums.UserRoleUser)
	project := dbtest.SeedProject(t, conn, creator.ID, money.FromCents(10000))

	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Repository:        NewRepository(conn),
		Projects:          projects.NewRepository(conn),
		Payments:          payments.NewRepository(conn),
		Aggregator:        collection.NewAggregator(conn),
		TransactionRunner: db.NewFromConn(conn),
		Logger:            logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Metrics:           metrics.NewFundingMetrics(reg),
		Minimum:           money.FromCents(500),
		Clock:             func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return harness{svc: svc, conn: conn, reg: reg, project: project, backer: backer}
}

func (h harness) pledge(t *testing.T, cents int64) *models.Contribution {
	t.Helper()
	c, err := h.svc.Create(context.Background(), CreateInput{
		UserID:    h.backer.ID,
		ProjectID: h.project.ID,
		Amount:    money.FromCents(cents),
	})
	require.NoError(t, err)
	return c
}

func confirmCount(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	return counterValue(t, reg, "contribution_confirmations_total", "outcome", outcome)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, labelName, labelValue string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if labelName == "" {
				return m.GetCounter().GetValue()
			}
			for _, label := range m.GetLabel() {
				if label.GetName() == labelName && label.GetValue() == labelValue {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestCreateRejectsAmountAtOrBelowMinimum(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, cents := range []int64{0, 499, 500} {
		_, err := h.svc.Create(ctx, CreateInput{UserID: h.backer.ID, ProjectID: h.project.ID, Amount: money.FromCents(cents)})
		require.ErrorIs(t, err, pkgerrors.ErrInvalidAmount, "amount %d", cents)
	}

	c := h.pledge(t, 501)
	assert.Equal(t, enums.ContributionStatusPending, c.Status)
}

func TestCreateUnknownProject(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Create(context.Background(), CreateInput{
		UserID:    h.backer.ID,
		ProjectID: uuid.New(),
		Amount:    money.FromCents(1000),
	})
	require.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestCreatePersistsPending(t *testing.T) {
	h := newHarness(t)
	c := h.pledge(t, 2500)

	stored := dbtest.ReloadContribution(t, h.conn, c.ID)
	assert.Equal(t, enums.ContributionStatusPending, stored.Status)
	assert.Equal(t, money.FromCents(2500), stored.Amount)
	assert.Equal(t, h.backer.ID, stored.UserID)
	assert.Nil(t, stored.ProviderChargeID)
}

func TestConfirmAppliesPaymentAndCredit(t *testing.T) {
	h := newHarness(t)
	c := h.pledge(t, 5000)

	res, err := h.svc.Confirm(context.Background(), ConfirmInput{ContributionID: c.ID, TransactionID: "pi_1", ConfirmedAmount: money.FromCents(5000)})
	require.NoError(t, err)
	assert.True(t, res.Applied())
	require.NotNil(t, res.Payment)
	assert.Equal(t, "pi_1", res.Payment.TransactionID)
	assert.Equal(t, enums.PaymentStatusCompleted, res.Payment.Status)

	assert.Equal(t, enums.ContributionStatusPaid, dbtest.ReloadContribution(t, h.conn, c.ID).Status)
	assert.Equal(t, money.FromCents(5000), dbtest.ReloadProject(t, h.conn, h.project.ID).CollectedAmount)
	assert.EqualValues(t, 1, dbtest.CountPayments(t, h.conn, c.ID))
}

func TestConfirmTwiceCreditsOnce(t *testing.T) {
	h := newHarness(t)
	c := h.pledge(t, 5000)
	ctx := context.Background()

	_, err := h.svc.Confirm(ctx, ConfirmInput{ContributionID: c.ID, TransactionID: "pi_dup"})
	require.NoError(t, err)
	res, err := h.svc.Confirm(ctx, ConfirmInput{ContributionID: c.ID, TransactionID: "pi_dup"})
	require.NoError(t, err)

	assert.Equal(t, metrics.ConfirmAlreadyPaid, res.Outcome)
	assert.EqualValues(t, 1, dbtest.CountPayments(t, h.conn, c.ID))
	assert.Equal(t, money.FromCents(5000), dbtest.ReloadProject(t, h.conn, h.project.ID).CollectedAmount)
	assert.Equal(t, float64(1), confirmCount(t, h.reg, metrics.ConfirmApplied))
	assert.Equal(t, float64(1), confirmCount(t, h.reg, metrics.ConfirmAlreadyPaid))
}

func TestConcurrentConfirmsCreditOnce(t *testing.T) {
	h := newHarness(t)
	c := h.pledge(t, 5000)
	sqlDB, err := h.conn.DB()
	require.NoError(t, err)
	// sqlite has no row locks; one connection serializes the transactions
	sqlDB.SetMaxOpenConns(1)

	const workers = 8
	var (
		wg       sync.WaitGroup
		errs     = make([]error, workers)
		outcomes = make([]string, workers)
		start    = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			res, err := h.svc.Confirm(context.Background(), ConfirmInput{ContributionID: c.ID, TransactionID: "pi_race"})
			errs[i], outcomes[i] = err, res.Outcome
		}(i)
	}
	close(start)
	wg.Wait()

	applied := 0
	for i := range errs {
		require.NoError(t, errs[i])
		if outcomes[i] == metrics.ConfirmApplied {
			applied++
		}
	}
	assert.Equal(t, 1, applied)
	assert.EqualValues(t, 1, dbtest.CountPayments(t, h.conn, c.ID))
	assert.Equal(t, money.FromCents(5000), dbtest.ReloadProject(t, h.conn, h.project.ID).CollectedAmount)
	assert.Equal(t, enums.ContributionStatusPaid, dbtest.ReloadContribution(t, h.conn, c.ID).Status)
}

// staleRead returns the locked row as still pending, as a reader that lost a
// race to another confirm would see it.
type staleRead struct {
	Repository
}

func (s staleRead) WithTx(tx *gorm.DB) Repository {
	return staleRead{Repository: s.Repository.WithTx(tx)}
}

func (s staleRead) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Contribution, error) {
	contribution, err := s.Repository.FindByIDForUpdate(ctx, id)
	if err == nil {
		contribution.Status = enums.ContributionStatusPending
	}
	return contribution, err
}

func TestConfirmLosingStatusRaceSucceedsWithoutSideEffects(t *testing.T) {
	h := newHarness(t)
	c := h.pledge(t, 5000)
	ctx := context.Background()

	_, err := h.svc.Confirm(ctx, ConfirmInput{ContributionID: c.ID, TransactionID: "pi_first"})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	loser, err := NewService(ServiceParams{
		Repository:        staleRead{Repository: NewRepository(h.conn)},
		Projects:          projects.NewRepository(h.conn),
		Payments:          payments.NewRepository(h.conn),
		Aggregator:        collection.NewAggregator(h.conn),
		TransactionRunner: db.NewFromConn(h.conn),
		Logger:            logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Metrics:           metrics.NewFundingMetrics(reg),
		Minimum:           money.FromCents(500),
	})
	require.NoError(t, err)

	res, err := loser.Confirm(ctx, ConfirmInput{ContributionID: c.ID, TransactionID: "pi_first"})
	require.NoError(t, err)
	assert.Equal(t, metrics.ConfirmRaceLost, res.Outcome)
	assert.Nil(t, res.Payment)
	assert.EqualValues(t, 1, dbtest.CountPayments(t, h.conn, c.ID))
	assert.Equal(t, money.FromCents(5000), dbtest.ReloadProject(t, h.conn, h.project.ID).CollectedAmount)
	assert.Equal(t, float64(1), confirmCount(t, reg, metrics.ConfirmRaceLost))
}

func TestConfirmReusedTransactionRollsBack(t *testing.T) {
	h := newHarness(t)
	first := h.pledge(t, 5000)
	second := h.pledge(t, 700)
	ctx := context.Background()

	_, err := h.svc.Confirm(ctx, ConfirmInput{ContributionID: first.ID, TransactionID: "pi_shared"})
	require.NoError(t, err)

	res, err := h.svc.Confirm(ctx, ConfirmInput{ContributionID: second.ID, TransactionID: "pi_shared"})
	require.NoError(t, err)
	assert.Equal(t, metrics.ConfirmDuplicate, res.Outcome)

	// the status flip rolled back with the rejected insert
	assert.Equal(t, enums.ContributionStatusPending, dbtest.ReloadContribution(t, h.conn, second.ID).Status)
	assert.EqualValues(t, 0, dbtest.CountPayments(t, h.conn, second.ID))
	assert.Equal(t, money.FromCents(5000), dbtest.ReloadProject(t, h.conn, h.project.ID).CollectedAmount)
}

func TestConfirmCancelledIsNoop(t *testing.T) {
	h := newHarness(t)
	c := h.pledge(t, 1000)
	ctx := context.Background()

	_, err := h.svc.Cancel(ctx, c.ID)
	require.NoError(t, err)

	res, err := h.svc.Confirm(ctx, ConfirmInput{ContributionID: c.ID, TransactionID: "pi_late"})
	require.NoError(t, err)
	assert.Equal(t, metrics.ConfirmCancelled, res.Outcome)
	assert.Equal(t, enums.ContributionStatusCancelled, dbtest.ReloadContribution(t, h.conn, c.ID).Status)
	assert.True(t, dbtest.ReloadProject(t, h.conn, h.project.ID).CollectedAmount.IsZero())
}

func TestConfirmUnknownContribution(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Confirm(context.Background(), ConfirmInput{ContributionID: uuid.New(), TransactionID: "pi_x"})
	require.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestConfirmAmountMismatchCreditsPledge(t *testing.T) {
	h := newHarness(t)
	c := h.pledge(t, 5000)

	res, err := h.svc.Confirm(context.Background(), ConfirmInput{ContributionID: c.ID, TransactionID: "pi_mm", ConfirmedAmount: money.FromCents(4900)})
	require.NoError(t, err)
	assert.True(t, res.Applied())
	assert.Equal(t, money.FromCents(5000), res.Payment.Amount)
	assert.Equal(t, money.FromCents(5000), dbtest.ReloadProject(t, h.conn, h.project.ID).CollectedAmount)

	assert.Equal(t, float64(1), counterValue(t, h.reg, "contribution_confirmed_amount_mismatch_total", "", ""))
}

func TestCollectedMatchesPaidSum(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.pledge(t, 5000)
	b := h.pledge(t, 5000)
	c := h.pledge(t, 1200)

	steps := []struct {
		id  uuid.UUID
		txn string
	}{
		{a.ID, "pi_a"},
		{a.ID, "pi_a"},
		{b.ID, "pi_b"},
		{b.ID, "pi_b_retry"},
		{c.ID, "pi_a"},
	}
	for _, step := range steps {
		_, err := h.svc.Confirm(ctx, ConfirmInput{ContributionID: step.id, TransactionID: step.txn})
		require.NoError(t, err)
	}
	_, err := h.svc.Cancel(ctx, c.ID)
	require.NoError(t, err)

	var paid int64
	require.NoError(t, h.conn.Model(&models.Contribution{}).
		Where("project_id = ? AND status = ?", h.project.ID, enums.ContributionStatusPaid).
		Select("COALESCE(SUM(amount_cents), 0)").Scan(&paid).Error)
	assert.Equal(t, money.FromCents(paid), dbtest.ReloadProject(t, h.conn, h.project.ID).CollectedAmount)
	assert.Equal(t, money.FromCents(10000), dbtest.ReloadProject(t, h.conn, h.project.ID).CollectedAmount)
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.pledge(t, 1000)
	got, err := h.svc.Cancel(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ContributionStatusCancelled, got.Status)

	paid := h.pledge(t, 1000)
	_, err = h.svc.Confirm(ctx, ConfirmInput{ContributionID: paid.ID, TransactionID: "pi_paid"})
	require.NoError(t, err)
	got, err = h.svc.Cancel(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ContributionStatusPaid, got.Status)

	_, err = h.svc.Cancel(ctx, uuid.New())
	require.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestAttachCharge(t *testing.T) {
	h := newHarness(t)
	c := h.pledge(t, 1000)

	require.NoError(t, h.svc.AttachCharge(context.Background(), c.ID, "pi_handle"))
	stored := dbtest.ReloadContribution(t, h.conn, c.ID)
	require.NotNil(t, stored.ProviderChargeID)
	assert.Equal(t, "pi_handle", *stored.ProviderChargeID)

	err := h.svc.AttachCharge(context.Background(), uuid.New(), "pi_none")
	require.ErrorIs(t, err, pkgerrors.ErrNotFound)
}
