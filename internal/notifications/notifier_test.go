package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"quill/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestNotifier_WithoutRedisDeliversLocally(t *testing.T) {
	n := NewNotifier(nil)

	// Publishing before anyone subscribes is a no-op.
	require.NoError(t, n.Publish(context.Background(), models.PostEvent{Type: models.EventPostCreated, PostID: 1}))

	got := make(chan models.PostEvent, 1)
	require.NoError(t, n.Subscribe(context.Background(), func(event models.PostEvent, _ []byte) {
		got <- event
	}))

	require.NoError(t, n.Publish(context.Background(), models.PostEvent{Type: models.EventCommentAdded, PostID: 4, UserID: 2}))
	event := <-got
	assert.Equal(t, models.EventCommentAdded, event.Type)
	assert.Equal(t, uint(4), event.PostID)
	assert.Equal(t, uint(2), event.UserID)
}

func TestNotifier_RedisRoundTripToHub(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := NewNotifier(rdb)
	hub := NewHub()
	client, err := hub.Register(0, nil)
	require.NoError(t, err)
	require.NoError(t, hub.StartWiring(ctx, n))

	require.NoError(t, n.Publish(ctx, models.PostEvent{Type: models.EventPostLiked, PostID: 9, Likes: 3, Liked: true}))

	var payload []byte
	require.Eventually(t, func() bool {
		select {
		case payload = <-client.Send:
			return true
		default:
			return false
		}
	}, testEventuallyTimeout, testPollInterval)

	var event models.PostEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, models.EventPostLiked, event.Type)
	assert.Equal(t, uint(9), event.PostID)
	assert.Equal(t, int64(3), event.Likes)
	assert.True(t, event.Liked)
}

func TestNotifier_HandlerPanicDoesNotStopSubscriber(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := NewNotifier(rdb)
	got := make(chan uint, 2)
	require.NoError(t, n.Subscribe(ctx, func(event models.PostEvent, _ []byte) {
		if event.PostID == 1 {
			panic("boom")
		}
		got <- event.PostID
	}))

	require.NoError(t, n.Publish(ctx, models.PostEvent{Type: models.EventPostCreated, PostID: 1}))
	require.NoError(t, n.Publish(ctx, models.PostEvent{Type: models.EventPostCreated, PostID: 2}))

	select {
	case id := <-got:
		assert.Equal(t, uint(2), id)
	case <-time.After(testEventuallyTimeout):
		t.Fatal("subscriber stopped after handler panic")
	}
}

func TestNotifier_PublishFailsWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	err := NewNotifier(rdb).Publish(context.Background(), models.PostEvent{Type: models.EventPostCreated, PostID: 1})
	assert.Error(t, err)
}
