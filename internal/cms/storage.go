package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lowc1012/bookeasy/internal/log"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ContentKey is the key the content document is stored under.
const ContentKey = "cms-content"

// ErrStorageNotConfigured is returned by writes when no persistent store is configured.
var ErrStorageNotConfigured = errors.New("storage not configured: changes will not persist")

// Store is the persistence layer for the content document.
type Store interface {
	// Load returns the stored content, initializing the store with the defaults when it is empty.
	Load(ctx context.Context) (*Content, error)
	Save(ctx context.Context, content *Content) error
	Reset(ctx context.Context) error
	// Backend names the store for status reporting, "none" when nothing persists.
	Backend() string
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = DefaultStore{}
)

// RedisStore keeps the content as a JSON string in Redis.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, key: ContentKey}
}

func (s *RedisStore) Backend() string {
	return "redis"
}

func (s *RedisStore) Load(ctx context.Context) (*Content, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		log.Logger().Info("Initializing content store with default content", zap.String("key", s.key))
		content := DefaultContent()
		if err := s.Save(ctx, content); err != nil {
			return nil, err
		}
		return content, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", s.key, err)
	}

	var content Content
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.key, err)
	}
	return &content, nil
}

func (s *RedisStore) Save(ctx context.Context, content *Content) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to encode content: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Reset(ctx context.Context) error {
	return s.Save(ctx, DefaultContent())
}

// DefaultStore serves the built-in content and refuses writes. It is used when no Redis URL is
// configured.
type DefaultStore struct{}

func (DefaultStore) Backend() string {
	return "none"
}

func (DefaultStore) Load(context.Context) (*Content, error) {
	return DefaultContent(), nil
}

func (DefaultStore) Save(context.Context, *Content) error {
	return ErrStorageNotConfigured
}

func (DefaultStore) Reset(context.Context) error {
	return ErrStorageNotConfigured
}
