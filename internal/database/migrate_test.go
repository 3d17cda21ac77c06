package database

import (
	"context"
	"strings"
	"testing"

	"warbler/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	all := GetMigrations()
	require.NotEmpty(t, all)

	for i, m := range all {
		assert.NotEmpty(t, m.UpScript, m.String())
		assert.NotEmpty(t, m.DownScript, m.String())
		if i > 0 {
			assert.Greater(t, m.Version, all[i-1].Version)
		}
	}

	first := GetMigrationByVersion(1)
	require.NotNil(t, first)
	assert.Equal(t, "000001_init_schema", first.String())
	for _, table := range []string{"users", "messages", "follows", "likes"} {
		assert.Contains(t, first.UpScript, "CREATE TABLE IF NOT EXISTS "+table)
		assert.Contains(t, first.DownScript, "DROP TABLE IF EXISTS "+table)
	}
	assert.True(t, strings.Contains(first.UpScript, "ON DELETE CASCADE"))

	assert.Nil(t, GetMigrationByVersion(999999))
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}}

	assert.NoError(t, validateAppliedVersions(nil, registered))
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, registered))

	err := validateAppliedVersions([]int{1, 7, 3}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000007, 000003")
}

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantSQL bool
		wantAut bool
		wantErr bool
	}{
		{"hybrid dev", config.Config{Env: "development"}, true, true, false},
		{"hybrid prod", config.Config{Env: "production"}, true, false, false},
		{"hybrid sqlite", config.Config{Env: "production", DBDriver: "sqlite"}, false, true, false},
		{"sql", config.Config{DBSchemaMode: "SQL"}, true, false, false},
		{"sql sqlite", config.Config{DBSchemaMode: "sql", DBDriver: "sqlite"}, false, false, true},
		{"auto dev", config.Config{DBSchemaMode: "auto", Env: "test"}, false, true, false},
		{"auto prod refused", config.Config{DBSchemaMode: "auto", Env: "staging"}, false, false, true},
		{"auto prod allowed", config.Config{DBSchemaMode: "auto", Env: "prod", DBAutoMigrateAllowDestructive: true}, false, true, false},
		{"unknown", config.Config{DBSchemaMode: "yolo"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := planSchema(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, plan.SQL)
			assert.Equal(t, tt.wantAut, plan.Auto)
		})
	}
}

func TestMigrationStore_ApplyAndRevert(t *testing.T) {
	db, err := Open(sqliteConfig())
	require.NoError(t, err)
	ctx := context.Background()

	store := NewMigrationStore(db)
	applied, err := store.GetAppliedMigrations(ctx)
	require.NoError(t, err, "a missing log table reads as nothing applied")
	assert.Empty(t, applied)

	require.NoError(t, db.AutoMigrate(&MigrationLog{}))

	m := Migration{
		Version:    42,
		Name:       "scratch",
		UpScript:   "CREATE TABLE scratch (id INTEGER PRIMARY KEY)",
		DownScript: "DROP TABLE scratch",
	}
	require.NoError(t, store.ApplyMigration(ctx, m))
	assert.True(t, db.Migrator().HasTable("scratch"))

	applied, err = store.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{42}, applied)

	require.NoError(t, store.RevertMigration(ctx, m))
	assert.False(t, db.Migrator().HasTable("scratch"))
	applied, err = store.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestMigrationStore_FailedScriptIsNotRecorded(t *testing.T) {
	db, err := Open(sqliteConfig())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&MigrationLog{}))
	ctx := context.Background()

	store := NewMigrationStore(db)
	err = store.ApplyMigration(ctx, Migration{Version: 5, Name: "broken", UpScript: "CREATE TABLE"})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&MigrationLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRollbackMigration_Errors(t *testing.T) {
	db, err := Open(sqliteConfig())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&MigrationLog{}))
	ctx := context.Background()

	assert.ErrorContains(t, RollbackMigration(ctx, db, 999999), "not found")
	assert.ErrorContains(t, RollbackMigration(ctx, db, 1), "has not been applied")

	_, err = RollbackLatest(ctx, db)
	assert.ErrorContains(t, err, "no migrations")
}
