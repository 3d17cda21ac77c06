package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"warbler/internal/config"
	"warbler/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes selected by DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaStatus is what cmd/migrate prints for the status subcommand.
type SchemaStatus struct {
	Mode               string
	Environment        string
	Driver             string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
}

// schemaPlan is the resolved answer to DB_SCHEMA_MODE for one config.
type schemaPlan struct {
	Mode string
	SQL  bool
	Auto bool
}

// guardedEnv covers deployments where AutoMigrate may only run when opted in.
func guardedEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// planSchema picks between the embedded migrations and AutoMigrate. The SQL
// scripts target PostgreSQL, so SQLite is only ever AutoMigrated.
func planSchema(cfg *config.Config) (schemaPlan, error) {
	plan := schemaPlan{Mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}
	sqlite := cfg.DBDriver == "sqlite"
	guarded := guardedEnv(cfg.Env)

	switch plan.Mode {
	case SchemaModeSQL:
		if sqlite {
			return plan, fmt.Errorf("schema mode %q needs postgres, driver is sqlite", plan.Mode)
		}
		plan.SQL = true
	case SchemaModeAuto:
		if guarded && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("schema mode %q is disabled for %q unless DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE is set", plan.Mode, cfg.Env)
		}
		plan.Auto = true
	case SchemaModeHybrid:
		plan.SQL = !sqlite
		plan.Auto = sqlite || !guarded
	default:
		return plan, fmt.Errorf("unknown schema mode %q", plan.Mode)
	}
	return plan, nil
}

// AutoMigrate syncs the users, messages, follows and likes tables with the models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema runs whatever planSchema selects for cfg.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.SQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if !plan.Auto {
		return nil
	}

	if plan.Mode == SchemaModeAuto && guardedEnv(cfg.Env) {
		middleware.Logger.Warn("auto-migrating a guarded environment", slog.String("env", cfg.Env))
	}
	middleware.Logger.Info("auto-migrating warbler tables", slog.String("mode", plan.Mode), slog.String("driver", driverName(cfg)))
	if err := AutoMigrate(db.WithContext(ctx)); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// GetSchemaStatus reports the plan and, when SQL migrations are in play, which
// versions are applied and which are still pending.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.Mode,
		Environment:        cfg.Env,
		Driver:             driverName(cfg),
		WillRunSQL:         plan.SQL,
		WillRunAutoMigrate: plan.Auto,
	}
	if !plan.SQL {
		return status, nil
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied

	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}
	for _, m := range GetMigrations() {
		if !done[m.Version] {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
