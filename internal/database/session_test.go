package database_test

import (
	"context"
	"testing"

	"quill/internal/database"
	"quill/internal/models"
	"quill/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_AcquireAndRelease(t *testing.T) {
	db := testutil.NewTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	before := sqlDB.Stats().InUse

	s, err := database.Acquire(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, before+1, sqlDB.Stats().InUse)

	var count int64
	require.NoError(t, s.DB.Model(&models.Post{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, s.Release())
	require.NoError(t, s.Release(), "release must be idempotent")
	assert.Equal(t, before, sqlDB.Stats().InUse)
}

func TestConn_PrefersSessionFromContext(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	s, err := database.Acquire(ctx, db)
	require.NoError(t, err)
	defer s.Release()

	_, ok := database.SessionFrom(ctx)
	assert.False(t, ok)
	assert.Same(t, db.Statement.ConnPool, database.Conn(ctx, db).Statement.ConnPool)

	scoped := database.WithSession(ctx, s)
	got, ok := database.SessionFrom(scoped)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Same(t, s.DB.Statement.ConnPool, database.Conn(scoped, db).Statement.ConnPool)
}

func TestSession_WritesVisibleAfterRelease(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	s, err := database.Acquire(ctx, db)
	require.NoError(t, err)
	user := &models.User{Username: "alice", Password: "x", AvatarPath: models.DefaultAvatarPath}
	require.NoError(t, database.Conn(database.WithSession(ctx, s), db).Create(user).Error)
	require.NoError(t, s.Release())

	var got models.User
	require.NoError(t, db.First(&got, user.ID).Error)
	assert.Equal(t, "alice", got.Username)
}
