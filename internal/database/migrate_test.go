package database

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	loaded, err := LoadMigrations(migrationFS)
	require.NoError(t, err)
	require.NotEmpty(t, loaded)

	first := loaded[0]
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, "init", first.Name)
	assert.Equal(t, "000001_init", first.String())
	assert.Contains(t, first.UpScript, "CREATE TABLE")
	assert.Contains(t, first.UpScript, "post_likes")
	assert.Contains(t, first.DownScript, "DROP TABLE")

	for i := 1; i < len(loaded); i++ {
		assert.Less(t, loaded[i-1].Version, loaded[i].Version)
	}
	assert.Equal(t, loaded, GetMigrations())
}

func TestGetMigrationByVersion(t *testing.T) {
	require.NotNil(t, GetMigrationByVersion(1))
	assert.Nil(t, GetMigrationByVersion(9999))
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1, Name: "init"}, {Version: 2, Name: "next"}}

	tests := []struct {
		name    string
		applied []int
		wantErr string
	}{
		{name: "nothing applied", applied: nil},
		{name: "known versions", applied: []int{1, 2}},
		{name: "unknown versions", applied: []int{7, 1, 3}, wantErr: "000003, 000007"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAppliedVersions(tt.applied, registered)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}
}

func TestMigrationStore_MissingTableIsEmpty(t *testing.T) {
	db, err := Connect(sqliteConfig())
	require.NoError(t, err)
	defer Close(db)

	applied, err := NewMigrationStore(db).GetAppliedMigrations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestMigrationStore_ApplyAndRemove(t *testing.T) {
	cfg := sqliteConfig()
	cfg.DBPath = "file:migration_store_test?mode=memory&cache=shared"
	db, err := Connect(cfg)
	require.NoError(t, err)
	defer Close(db)

	ctx := context.Background()
	require.NoError(t, db.AutoMigrate(&MigrationLog{}))

	store := NewMigrationStore(db)
	require.NoError(t, store.ApplyMigration(ctx, 1, "init", "CREATE TABLE probe (id INTEGER PRIMARY KEY)"))

	applied, err := store.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)
	assert.True(t, db.Migrator().HasTable("probe"))

	require.NoError(t, store.RemoveMigration(ctx, 1))
	applied, err = store.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}
