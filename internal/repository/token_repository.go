package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenRepo keeps the session token records in Redis.  Two keys exist per
// user, each holding the signed token string with its own TTL:
//
//	access_token:<userId>  – access token, short TTL
//	refresh_token:<userId> – refresh token, long TTL
//
// Key presence is the source of truth for "is this token still valid": when
// a key has expired or was deleted on logout, the token class is invalid for
// that user even if the JWT's own exp claim has not passed yet.
type TokenRepo struct{ RDB *redis.Client }

func NewTokenRepo(rdb *redis.Client) *TokenRepo { return &TokenRepo{RDB: rdb} }

// ErrNoToken is returned when no stored token exists for the user, either
// because it expired or because it was revoked.
var ErrNoToken = errors.New("no stored token")

func accessKey(userID uint64) string  { return fmt.Sprintf("access_token:%d", userID) }
func refreshKey(userID uint64) string { return fmt.Sprintf("refresh_token:%d", userID) }

// StoreAccess overwrites the user's access token entry with a fresh TTL.
func (r *TokenRepo) StoreAccess(ctx context.Context, userID uint64, token string, ttl time.Duration) error {
	return r.RDB.Set(ctx, accessKey(userID), token, ttl).Err()
}

// StoreRefresh overwrites the user's refresh token entry with a fresh TTL.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, token string, ttl time.Duration) error {
	return r.RDB.Set(ctx, refreshKey(userID), token, ttl).Err()
}

// GetAccess returns the stored access token for the user.
func (r *TokenRepo) GetAccess(ctx context.Context, userID uint64) (string, error) {
	return r.get(ctx, accessKey(userID))
}

// GetRefresh returns the stored refresh token for the user.
func (r *TokenRepo) GetRefresh(ctx context.Context, userID uint64) (string, error) {
	return r.get(ctx, refreshKey(userID))
}

func (r *TokenRepo) get(ctx context.Context, key string) (string, error) {
	v, err := r.RDB.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoToken
	}
	return v, err
}

// RevokeAll deletes both token entries for the user.  Deleting absent keys
// is not an error, so logout is idempotent.
func (r *TokenRepo) RevokeAll(ctx context.Context, userID uint64) error {
	return r.RDB.Del(ctx, accessKey(userID), refreshKey(userID)).Err()
}
