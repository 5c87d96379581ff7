package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultInvalidationChannel = "portal:cache:invalidate"
	defaultCloseTimeout        = 5 * time.Second
)

// InvalidationMessage tells every portal instance to drop an in-memory snapshot.
// An empty Entity means all entities; an empty Scope means all scopes of Entity.
type InvalidationMessage struct {
	Entity    string `json:"entity,omitempty"`
	Scope     string `json:"scope,omitempty"`
	Origin    string `json:"origin"`
	Timestamp int64  `json:"timestamp"`
}

// RedisSnapshotInvalidator broadcasts snapshot invalidations over Redis Pub/Sub
type RedisSnapshotInvalidator struct {
	client    *redis.Client
	channel   string
	origin    string
	logger    *zap.Logger
	cancelFn  context.CancelFunc
	doneCh    chan struct{}
	doneOnce  sync.Once
	mu        sync.Mutex
	isRunning bool
}

// InvalidatorOption configures a RedisSnapshotInvalidator
type InvalidatorOption func(*RedisSnapshotInvalidator)

// WithInvalidatorChannel sets the Pub/Sub channel name
func WithInvalidatorChannel(channel string) InvalidatorOption {
	return func(i *RedisSnapshotInvalidator) {
		if channel != "" {
			i.channel = channel
		}
	}
}

// WithInvalidatorLogger sets the logger
func WithInvalidatorLogger(logger *zap.Logger) InvalidatorOption {
	return func(i *RedisSnapshotInvalidator) {
		i.logger = logger
	}
}

// NewRedisSnapshotInvalidator creates an invalidator on a caller-owned client
func NewRedisSnapshotInvalidator(client *redis.Client, opts ...InvalidatorOption) *RedisSnapshotInvalidator {
	i := &RedisSnapshotInvalidator{
		client:  client,
		channel: defaultInvalidationChannel,
		origin:  uuid.NewString(),
		logger:  zap.NewNop(),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Origin returns the instance ID stamped on published messages
func (i *RedisSnapshotInvalidator) Origin() string {
	return i.origin
}

// Publish broadcasts an invalidation for entity/scope
func (i *RedisSnapshotInvalidator) Publish(ctx context.Context, entity, scope string) error {
	msg := InvalidationMessage{
		Entity:    entity,
		Scope:     scope,
		Origin:    i.origin,
		Timestamp: time.Now().UnixNano(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation message: %w", err)
	}

	if err := i.client.Publish(ctx, i.channel, data).Err(); err != nil {
		i.logger.Error("Failed to publish snapshot invalidation",
			zap.String("channel", i.channel),
			zap.Error(err))
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}

	i.logger.Debug("Published snapshot invalidation",
		zap.String("entity", entity),
		zap.String("scope", scope))
	return nil
}

// Subscribe blocks, invoking callback for every invalidation published by another
// instance, until ctx is cancelled or Close is called.
func (i *RedisSnapshotInvalidator) Subscribe(ctx context.Context, callback func(InvalidationMessage)) error {
	i.mu.Lock()
	if i.isRunning {
		i.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	i.isRunning = true
	subCtx, cancel := context.WithCancel(ctx)
	i.cancelFn = cancel
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		i.isRunning = false
		i.mu.Unlock()
		i.markDone()
	}()

	pubsub := i.client.Subscribe(subCtx, i.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}

	i.logger.Info("Subscribed to snapshot invalidation channel", zap.String("channel", i.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				i.logger.Warn("Snapshot invalidation channel closed")
				return nil
			}

			var inv InvalidationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
				i.logger.Error("Failed to unmarshal invalidation message",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}
			if inv.Origin == i.origin {
				continue
			}
			i.dispatch(callback, inv)
		}
	}
}

func (i *RedisSnapshotInvalidator) dispatch(callback func(InvalidationMessage), msg InvalidationMessage) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("Panic in invalidation callback", zap.Any("panic", r))
		}
	}()
	callback(msg)
}

func (i *RedisSnapshotInvalidator) markDone() {
	i.doneOnce.Do(func() {
		close(i.doneCh)
	})
}

// Close stops a running subscription. The Redis client is not closed.
func (i *RedisSnapshotInvalidator) Close() error {
	i.mu.Lock()
	cancelFn := i.cancelFn
	i.mu.Unlock()

	if cancelFn == nil {
		return nil
	}
	cancelFn()
	select {
	case <-i.doneCh:
	case <-time.After(defaultCloseTimeout):
		i.logger.Warn("Timeout waiting for invalidation subscription to stop")
	}
	return nil
}
