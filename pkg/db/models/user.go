package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tamwill-backend/pkg/enums"
)

// User is read-only here; identity is managed upstream.
type User struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name      string         `gorm:"column:name;not null"`
	Email     string         `gorm:"column:email;not null"`
	Role      enums.UserRole `gorm:"column:role;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}
