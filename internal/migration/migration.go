// Package migration brings the schema up to date on startup.
package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/pitchdeck/internal/audit/domain"
	authdomain "github.com/smallbiznis/pitchdeck/internal/auth/domain"
	"github.com/smallbiznis/pitchdeck/internal/config"
	"github.com/smallbiznis/pitchdeck/internal/events"
	invitationdomain "github.com/smallbiznis/pitchdeck/internal/invitation/domain"
	mediadomain "github.com/smallbiznis/pitchdeck/internal/media/domain"
	orgdomain "github.com/smallbiznis/pitchdeck/internal/organization/domain"
	pitchdomain "github.com/smallbiznis/pitchdeck/internal/pitch/domain"
	"github.com/smallbiznis/pitchdeck/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// Models lists every persisted type, parents first.
func Models() []any {
	return []any{
		&authdomain.User{},
		&authdomain.Session{},
		&orgdomain.Organization{},
		&orgdomain.Membership{},
		&invitationdomain.Invitation{},
		&mediadomain.Media{},
		&mediadomain.MediaAuthor{},
		&pitchdomain.Pitch{},
		&pitchdomain.PitchTag{},
		&pitchdomain.PitchTargetAuthor{},
		&auditdomain.AuditLog{},
		&events.OutboxEvent{},
	}
}

// Migrate applies the embedded SQL on postgres and falls back to AutoMigrate elsewhere.
func Migrate(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	if strings.EqualFold(strings.TrimSpace(cfg.DBType), db.TypePostgres) {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		log.Info("schema migrated", zap.String("driver", "golang-migrate"))
		return nil
	}

	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.Info("schema migrated", zap.String("driver", "gorm"), zap.String("type", cfg.DBType))
	return nil
}

func RunMigrations(sqlDB *sql.DB) error {
	if sqlDB == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.
	return nil
}
