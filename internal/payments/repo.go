package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/tamwill-backend/internal/repo"
	"github.com/angelmondragon/tamwill-backend/pkg/db"
	"github.com/angelmondragon/tamwill-backend/pkg/db/models"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tamwill-backend/pkg/errors"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecordInput describes a settled provider transaction.
type RecordInput struct {
	ContributionID uuid.UUID
	Provider       string
	TransactionID  string
	Amount         money.Amount
}

// Repository stores payments. The transaction id and the owning contribution
// are both unique, so a replayed confirmation can never insert twice.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Record(ctx context.Context, input RecordInput) (*models.Payment, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	FindByContributionID(ctx context.Context, contributionID uuid.UUID) (*models.Payment, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

// Record inserts a completed payment. A unique violation on either key is
// reported as a DUPLICATE_TRANSACTION error.
func (r *repository) Record(ctx context.Context, input RecordInput) (*models.Payment, error) {
	txnID := strings.TrimSpace(input.TransactionID)
	if txnID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	if input.ContributionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contribution id is required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	payment := &models.Payment{
		ID:             uuid.New(),
		ContributionID: input.ContributionID,
		Provider:       input.Provider,
		TransactionID:  txnID,
		Amount:         input.Amount,
		Status:         enums.PaymentStatusCompleted,
	}
	if err := r.DB(ctx).Create(payment).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.WrapReason(
				pkgerrors.ReasonDuplicateTransaction,
				err,
				fmt.Sprintf("transaction %s already recorded", txnID),
			)
		}
		return nil, err
	}
	return payment, nil
}

func (r *repository) FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.DB(ctx).First(&payment, "transaction_id = ?", transactionID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByContributionID(ctx context.Context, contributionID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.DB(ctx).First(&payment, "contribution_id = ?", contributionID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}
