// Package notifications fans post activity out to live websocket subscribers.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"

	"github.com/redis/go-redis/v9"
)

// PostsChannel is the Redis channel post events are published on.
const PostsChannel = "events:posts"

// EventHandler receives a decoded event together with its raw JSON payload.
type EventHandler func(event models.PostEvent, payload []byte)

// Notifier publishes post events into Redis. Without Redis it delivers events to the
// local handler directly so a single instance still gets live updates.
type Notifier struct {
	rdb *redis.Client

	mu    sync.RWMutex
	local EventHandler
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Publish sends event to every subscriber.
func (n *Notifier) Publish(ctx context.Context, event models.PostEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if n.rdb == nil {
		n.mu.RLock()
		local := n.local
		n.mu.RUnlock()
		if local != nil {
			n.dispatch(local, payload)
		}
		return nil
	}

	ctx, span := observability.StartRedisSpan(ctx, "publish")
	defer span.End()
	if err := n.rdb.Publish(ctx, PostsChannel, payload).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("publish").Inc()
		span.RecordError(err)
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Subscribe calls onEvent for each event until ctx is cancelled.
func (n *Notifier) Subscribe(ctx context.Context, onEvent EventHandler) error {
	if n.rdb == nil {
		n.mu.Lock()
		n.local = onEvent
		n.mu.Unlock()
		return nil
	}

	sub := n.rdb.Subscribe(ctx, PostsChannel)
	// Wait for the subscription to be confirmed so no early publish is lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", PostsChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				n.dispatch(onEvent, []byte(msg.Payload))
			}
		}
	}()

	return nil
}

func (n *Notifier) dispatch(onEvent EventHandler, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.Error("Panic in event subscriber",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	var event models.PostEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		middleware.Logger.Warn("Dropping malformed event", slog.String("error", err.Error()))
		return
	}
	onEvent(event, payload)
}
