package repository

import (
	"context"
	"errors"
	"testing"

	"quill/internal/models"
	"quill/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndLookup(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &models.User{Username: "test", Password: "hash", AvatarPath: models.DefaultAvatarPath}
	require.NoError(t, repo.Create(ctx, user))
	require.NotZero(t, user.ID)

	byName, err := repo.GetByUsername(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	dup := &models.User{Username: "test", Password: "other", AvatarPath: models.DefaultAvatarPath}
	err = repo.Create(ctx, dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))

	require.NoError(t, repo.UpdateAvatar(ctx, user.ID, "/static/images/me.jpg"))
	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "/static/images/me.jpg", byID.AvatarPath)

	err = repo.UpdateAvatar(ctx, 999, "x")
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}
