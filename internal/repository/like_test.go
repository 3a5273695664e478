package repository

import (
	"context"
	"testing"
	"time"

	"quill/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeRepository_LikeUnlike(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewLikeRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "test", "test")
	post := testutil.CreatePost(t, db, author.ID, "t", "b", time.Time{})

	liked, err := repo.IsLiked(ctx, author.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	require.NoError(t, repo.Like(ctx, author.ID, post.ID))
	require.NoError(t, repo.Like(ctx, author.ID, post.ID), "duplicate like is absorbed by the unique index")

	count, err := repo.Count(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	liked, err = repo.IsLiked(ctx, author.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	require.NoError(t, repo.Unlike(ctx, author.ID, post.ID))
	count, err = repo.Count(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
