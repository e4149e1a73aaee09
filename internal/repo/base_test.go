package repo

import (
	"context"
	"strings"
	"testing"

	"github.com/angelmondragon/tamwill-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tamwill-backend/pkg/db/models"
	"gorm.io/gorm"
)

func TestBaseDB_BindsContext(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	if withCtx.Statement == nil || withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through")
	}

	if base.DB(nil) != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBaseBindPrefersTransaction(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)

	if base.Bind(nil).db != db {
		t.Fatalf("expected nil tx to keep the base connection")
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if base.Bind(tx).db != tx {
			t.Fatalf("expected bound base to use tx")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestBaseLockedIsDroppedOnSQLite(t *testing.T) {
	db := dbtest.Open(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return NewBase(tx).Locked(context.Background()).First(&models.Project{}, "id = ?", "x")
	})
	if strings.Contains(strings.ToUpper(sql), "FOR UPDATE") {
		t.Fatalf("sqlite should not render row locks: %s", sql)
	}
}
