package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/straysafe/straysafebackend/config"
	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/models"
)

// Options selects the backing database.
type Options struct {
	Driver   string // config.DriverSQLite or config.DriverPostgres
	Path     string // sqlite file
	DSN      string // postgres connection string
	LogLevel logger.LogLevel
}

// OptionsFromConfig maps the server config onto Options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Driver:   cfg.DatabaseDriver,
		Path:     cfg.DatabasePath,
		DSN:      cfg.DatabaseURL,
		LogLevel: logger.Warn,
	}
}

// InitGormDB opens the configured database and sizes the pool.
func InitGormDB(opts Options) (*gorm.DB, error) {
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  opts.LogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dialector gorm.Dialector
	switch opts.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(opts.DSN)
	case config.DriverSQLite, "":
		// foreign keys are off by default in sqlite
		dialector = sqlite.Open(opts.Path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	default:
		return nil, fmt.Errorf("unsupported database driver '%s'", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database using GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	if opts.Driver == config.DriverPostgres {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
	} else {
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetMaxOpenConns(4)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	logging.Info().Str("driver", db.Dialector.Name()).Msg("database initialized")
	return db, nil
}

// AutoMigrateModels migrates every persisted model.
func AutoMigrateModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.UserRole{},
		&models.ReferralCode{},
		&models.UserMap{},
		&models.UserMapAccess{},
		&models.UserArea{},
		&models.MapPin{},
		&models.Post{},
		&models.PostImage{},
		&models.LikedPost{},
		&models.Comment{},
		&models.RegisteredAnimal{},
		&models.AnimalImage{},
		&models.CCTV{},
		&models.PushToken{},
	)
	if err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	logging.Info().Msg("database migrations applied")
	return nil
}
