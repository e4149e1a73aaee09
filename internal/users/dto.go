package users

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/tamwill-backend/pkg/db/models"
	"github.com/angelmondragon/tamwill-backend/pkg/enums"
)

// Contact is the public-facing slice of a user used in notifications and
// projections.
type Contact struct {
	ID    uuid.UUID      `json:"id"`
	Name  string         `json:"name"`
	Email string         `json:"email,omitempty"`
	Role  enums.UserRole `json:"role"`
}

func ContactFromModel(u *models.User) *Contact {
	if u == nil {
		return nil
	}
	return &Contact{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}
