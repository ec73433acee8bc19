package chess

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-engine-player/internal/domain"
	"github.com/park285/cheese-engine-player/internal/service/cache"
)

// SessionStore keeps the unfinished game of each player. Load returns
// nil, nil when nothing is stored.
type SessionStore interface {
	Save(ctx context.Context, s *domain.SavedSession) error
	Load(ctx context.Context, playerID string) (*domain.SavedSession, error)
	Delete(ctx context.Context, playerID string) error
}

// RedisStore is a SessionStore backed by the shared cache.
type RedisStore struct {
	cache *cache.CacheService
	ttl   time.Duration
}

func NewRedisStore(c *cache.CacheService, ttl time.Duration) *RedisStore {
	return &RedisStore{cache: c, ttl: ttl}
}

func (r *RedisStore) key(playerID string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(playerID)))
	return "chess:sessions:" + hex.EncodeToString(hash[:])
}

func (r *RedisStore) Save(ctx context.Context, s *domain.SavedSession) error {
	if s == nil {
		return fmt.Errorf("cannot save nil chess session")
	}
	return r.cache.Set(ctx, r.key(s.PlayerID), s, r.ttl)
}

func (r *RedisStore) Load(ctx context.Context, playerID string) (*domain.SavedSession, error) {
	payload := &domain.SavedSession{}
	found, err := r.cache.Get(ctx, r.key(playerID), payload)
	if err != nil || !found {
		return nil, err
	}
	return payload, nil
}

func (r *RedisStore) Delete(ctx context.Context, playerID string) error {
	return r.cache.Del(ctx, r.key(playerID))
}
