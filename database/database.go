package database

import (
	"fmt"
	"strings"

	"lms/config"
	appLogger "lms/logger"
	"lms/models"
	courseModels "lms/models/course"
	creditModels "lms/models/credit"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DbInstance struct holds the database connection instance
type DbInstance struct {
	Db *gorm.DB
}

// Database is the global database instance
var Database DbInstance

// ConnectDb opens the configured database, tunes the pool and migrates.
func ConnectDb() {
	cfg := config.AppConfig

	dialector, err := dialectorFor(cfg)
	if err != nil {
		appLogger.Log.Fatalf("Failed to configure database: %v", err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(cfg.DBLogLevel)),
	})
	if err != nil {
		appLogger.Log.Fatalf("Failed to connect to %s: %v", cfg.DBDriver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		appLogger.Log.Fatalf("Failed to get database instance: %v", err)
	}

	if cfg.DBDriver == "sqlite" {
		// a single connection keeps sqlite from reporting SQLITE_BUSY between transactions
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
	}
	sqlDB.SetConnMaxLifetime(0)

	if err := RunMigrations(db); err != nil {
		appLogger.Log.Fatalf("Migration failed: %v", err)
	}

	Database = DbInstance{Db: db}
}

func dialectorFor(cfg *config.Config) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.DBDriver) {
	case "", "postgres":
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
		)
		return postgres.Open(dsn), nil
	case "mysql":
		dsn := fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName,
		)
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.DBName), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

func logLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// RunMigrations creates or updates every table the service owns.
func RunMigrations(db *gorm.DB) error {
	appLogger.Log.Info("Running Migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.UserProfile{},
		&models.CourseAccessRole{},
		&courseModels.Course{},
		&courseModels.Block{},
		&courseModels.CourseStructure{},
		&courseModels.CourseEnrollment{},
		&creditModels.CreditProvider{},
		&creditModels.CreditCourse{},
		&creditModels.CreditRequirement{},
		&creditModels.CreditRequirementStatus{},
		&creditModels.CreditEligibility{},
		&creditModels.CreditRequest{},
		&creditModels.CreditRequestStatus{},
	)
	if err != nil {
		return err
	}

	appLogger.Log.Info("Migrations completed successfully.")
	return nil
}
