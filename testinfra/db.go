// Package testinfra holds shared fixtures for package tests.
package testinfra

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/straysafe/straysafebackend/config"
	"github.com/straysafe/straysafebackend/database"
	"github.com/straysafe/straysafebackend/models"
)

// NewTestDB opens a migrated sqlite database in a temp dir.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.InitGormDB(database.Options{
		Driver:   config.DriverSQLite,
		Path:     filepath.Join(t.TempDir(), "test.db"),
		LogLevel: logger.Silent,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with the given email and password "password123".
func CreateUser(t testing.TB, db *gorm.DB, email string, roles ...*models.Role) *models.User {
	t.Helper()

	u := &models.User{Name: email, Email: email, Roles: roles}
	if err := u.SetPassword("password123"); err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}
