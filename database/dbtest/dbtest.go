// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lms/database"
	"lms/models"
	courseModels "lms/models/course"
)

// Open returns a private in-memory sqlite database with every table migrated.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every new connection would get its own empty :memory: database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.RunMigrations(db))
	return db
}

// CreateUser inserts an active user with a profile.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	address := "123 Main St"
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "unused",
		Profile: models.UserProfile{
			Name:           "Full " + username,
			MailingAddress: &address,
			Country:        "US",
		},
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateCourse inserts a course row for key "org/number/run".
func CreateCourse(t testing.TB, db *gorm.DB, org, number, run string) *courseModels.Course {
	t.Helper()
	c := &courseModels.Course{
		CourseKey:   org + "/" + number + "/" + run,
		Org:         org,
		Number:      number,
		Run:         run,
		DisplayName: number + " " + run,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}
