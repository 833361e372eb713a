// Package testutil provides throwaway databases for package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/aiblog/models"
)

// AllModels lists every table the application owns, in migration order.
func AllModels() []interface{} {
	return models.All()
}

// CreateTempDB opens a private in-memory sqlite database with the full schema.
// The database lives until the test finishes.
func CreateTempDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open temp db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	// One connection keeps the in-memory database alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("migrate temp db: %v", err)
	}
	return db
}

// MustCreateUser inserts a user with the given name and returns it.
func MustCreateUser(t testing.TB, db *gorm.DB, username string) models.User {
	t.Helper()
	u := models.User{Username: username, Email: username + "@example.com"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// MustCreatePost inserts a published post authored by userID.
func MustCreatePost(t testing.TB, db *gorm.DB, userID uint, title string) models.Post {
	t.Helper()
	p := models.Post{UserID: userID, Title: title, Content: "content of " + title, Status: models.StatusPublished}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("create post %s: %v", title, err)
	}
	return p
}
