package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"modelboot-go/internal/backend"
	booterrors "modelboot-go/internal/errors"
)

// RedisStore is the shared-store option for users who run the assistant on
// more than one machine. Same record codec as the file store.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisStoreConfig configures a RedisStore.
type RedisStoreConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisStoreConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis store: address is required")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "assistantd:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis store: ping %s: %w", cfg.Addr, err)
	}
	log.WithFields(log.Fields{
		"component": "credential_store",
		"backend":   "redis",
		"addr":      cfg.Addr,
	}).Info("redis credential store connected")
	return &RedisStore{client: client, prefix: prefix}, nil
}

// Close releases the client.
func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) key(id backend.Identity) string {
	return s.prefix + "credential:" + string(id)
}

// Load fetches the record for a backend family; a missing key yields the
// none credential.
func (s *RedisStore) Load(ctx context.Context, id backend.Identity) (Credential, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return None(), nil
		}
		return None(), fmt.Errorf("load credential %s: %w", s.key(id), err)
	}
	cred, err := decodeRecord(data)
	if err != nil {
		return None(), fmt.Errorf("%w: %s: %v", booterrors.ErrStoreCorrupt, s.key(id), err)
	}
	return cred, nil
}

// Save writes the record, preserving unknown fields from the stored copy.
// A SET is already atomic on the Redis side.
func (s *RedisStore) Save(ctx context.Context, id backend.Identity, cred Credential) error {
	base := []byte(`{}`)
	if existing, err := s.client.Get(ctx, s.key(id)).Bytes(); err == nil && gjson.ValidBytes(existing) {
		base = existing
	}
	data, err := mergeRecord(base, cred)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(id), data, 0).Err(); err != nil {
		return fmt.Errorf("store credential %s: %w", s.key(id), err)
	}
	return nil
}

// Clear removes the record.
func (s *RedisStore) Clear(ctx context.Context, id backend.Identity) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete credential %s: %w", s.key(id), err)
	}
	return nil
}
