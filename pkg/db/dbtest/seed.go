package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tamwill-backend/pkg/db/models"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
	"github.com/angelmondragon/tamwill-backend/pkg/money"
)

// SeedUser inserts a user with the given role.
func SeedUser(t testing.TB, conn *gorm.DB, role enums.UserRole) models.User {
	t.Helper()
	id := uuid.New()
	user := models.User{
		ID:    id,
		Name:  "user-" + id.String()[:8],
		Email: id.String()[:8] + "@example.test",
		Role:  role,
	}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedProject inserts an active project with a pending payout for creatorID.
func SeedProject(t testing.TB, conn *gorm.DB, creatorID uuid.UUID, goal money.Amount) models.Project {
	t.Helper()
	project := models.Project{
		ID:           uuid.New(),
		CreatorID:    creatorID,
		Title:        "Community garden",
		Status:       enums.ProjectStatusActive,
		GoalAmount:   goal,
		PayoutStatus: enums.PayoutStatusPending,
	}
	if err := conn.Create(&project).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return project
}

// ReloadProject reads the project row back from the database.
func ReloadProject(t testing.TB, conn *gorm.DB, id uuid.UUID) models.Project {
	t.Helper()
	var project models.Project
	if err := conn.First(&project, "id = ?", id).Error; err != nil {
		t.Fatalf("reload project: %v", err)
	}
	return project
}

// ReloadContribution reads the contribution row back from the database.
func ReloadContribution(t testing.TB, conn *gorm.DB, id uuid.UUID) models.Contribution {
	t.Helper()
	var contribution models.Contribution
	if err := conn.First(&contribution, "id = ?", id).Error; err != nil {
		t.Fatalf("reload contribution: %v", err)
	}
	return contribution
}

// CountPayments returns how many payments reference the contribution.
func CountPayments(t testing.TB, conn *gorm.DB, contributionID uuid.UUID) int64 {
	t.Helper()
	var count int64
	if err := conn.Model(&models.Payment{}).Where("contribution_id = ?", contributionID).Count(&count).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	return count
}
