package service

import (
	"context"
	"testing"
	"time"

	"quill/internal/models"
	"quill/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeService_ToggleTwiceRestoresCount(t *testing.T) {
	f := newFixture(t)
	author := testutil.CreateUser(t, f.db, "test", "secret123")
	fan := testutil.CreateUser(t, f.db, "fan", "secret123")
	post := testutil.CreatePost(t, f.db, author.ID, "t", "b", time.Time{})
	pub := &recordingPublisher{}
	svc := NewLikeService(f.posts, f.likes, pub)
	ctx := context.Background()

	require.NoError(t, f.likes.Like(ctx, author.ID, post.ID))
	before, err := f.likes.Count(ctx, post.ID)
	require.NoError(t, err)

	first, err := svc.ToggleLike(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, first.Liked)
	assert.Equal(t, before+1, first.Likes)

	second, err := svc.ToggleLike(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, second.Liked)
	assert.Equal(t, before, second.Likes)

	events := pub.Events()
	require.Len(t, events, 2)
	assert.Equal(t, models.EventPostLiked, events[0].Type)
	assert.True(t, events[0].Liked)
	assert.False(t, events[1].Liked)
}

func TestLikeService_ToggleMissingPost(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, "test", "secret123")
	svc := NewLikeService(f.posts, f.likes, nil)

	_, err := svc.ToggleLike(context.Background(), user.ID, 42)
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	var count int64
	require.NoError(t, f.db.Model(&models.Like{}).Count(&count).Error)
	assert.Zero(t, count)
}
