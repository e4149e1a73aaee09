package collection

import (
	"context"
	"testing"

	"github.com/angelmondragon/tamwill-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tamwill-backend/pkg/errors"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreditAccumulates(t *testing.T) {
	conn := dbtest.Open(t)
	creator := dbtest.SeedUser(t, conn, enums.UserRoleCreator)
	project := dbtest.SeedProject(t, conn, creator.ID, money.FromCents(10000))
	agg := NewAggregator(conn)
	ctx := context.Background()

	require.NoError(t, agg.Credit(ctx, project.ID, money.FromCents(5000)))
	require.NoError(t, agg.Credit(ctx, project.ID, money.FromCents(2550)))

	assert.Equal(t, money.FromCents(7550), dbtest.ReloadProject(t, conn, project.ID).CollectedAmount)
}

func TestCreditRollsBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	creator := dbtest.SeedUser(t, conn, enums.UserRoleCreator)
	project := dbtest.SeedProject(t, conn, creator.ID, money.FromCents(10000))
	agg := NewAggregator(conn)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := agg.WithTx(tx).Credit(context.Background(), project.ID, money.FromCents(900)); err != nil {
			return err
		}
		return pkgerrors.ErrDuplicateTransaction
	})
	require.Error(t, err)
	assert.True(t, dbtest.ReloadProject(t, conn, project.ID).CollectedAmount.IsZero())
}

func TestCreditRejectsBadInput(t *testing.T) {
	conn := dbtest.Open(t)
	agg := NewAggregator(conn)
	ctx := context.Background()

	require.ErrorIs(t, agg.Credit(ctx, uuid.New(), money.FromCents(100)), pkgerrors.ErrNotFound)
	require.ErrorIs(t, agg.Credit(ctx, uuid.New(), money.FromCents(0)), pkgerrors.ErrInvalidAmount)
}
