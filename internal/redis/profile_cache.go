package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pulse-chat/internal/domain/user"
	"pulse-chat/internal/repository"
	"pulse-chat/pkg/logger"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache key patterns:
// - user:{user_id} - profile cache used for call invitations

type UserCache struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username,omitempty"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
}

// CachedUserRepository serves user profiles from Redis, falling back to the
// wrapped repository on a miss. Cache failures never fail the lookup.
type CachedUserRepository struct {
	inner  repository.UserRepository
	client *goredis.Client
	ttl    time.Duration
	logger *logger.Logger
}

func NewCachedUserRepository(inner repository.UserRepository, client *goredis.Client, ttl time.Duration, l *logger.Logger) *CachedUserRepository {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &CachedUserRepository{inner: inner, client: client, ttl: ttl, logger: l}
}

func userKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id.String())
}

func (r *CachedUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	data, err := r.client.Get(ctx, userKey(id)).Bytes()
	if err == nil {
		var cached UserCache
		if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
			return cached.toEntity(), nil
		}
	} else if err != goredis.Nil {
		r.logger.With(ctx).Warn("profile cache read failed", zap.String("user_id", id.String()), zap.Error(err))
	}

	u, err := r.inner.GetUserByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if err := r.set(ctx, u); err != nil {
		r.logger.With(ctx).Warn("profile cache write failed", zap.String("user_id", id.String()), zap.Error(err))
	}
	return u, nil
}

// Invalidate removes a user from cache
func (r *CachedUserRepository) Invalidate(ctx context.Context, id uuid.UUID) error {
	return r.client.Del(ctx, userKey(id)).Err()
}

func (r *CachedUserRepository) set(ctx context.Context, u user.User) error {
	cached := UserCache{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
	if u.Username.Valid {
		cached.Username = u.Username.String
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, userKey(u.ID), data, r.ttl).Err()
}

func (c UserCache) toEntity() user.User {
	u := user.User{
		ID:          c.ID,
		DisplayName: c.DisplayName,
		AvatarURL:   c.AvatarURL,
	}
	if c.Username != "" {
		u.Username.String = c.Username
		u.Username.Valid = true
	}
	return u
}
