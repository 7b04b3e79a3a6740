package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Online is the Redis-backed online index. The in-process registry stays the
// source of truth for local routing; this index is the exported view other
// nodes and the REST layer read.
//
// key: im:presence:<user> -> gateway id, TTL bounds staleness if a node dies
// without cleaning up.
type Online struct {
	rdb       *redis.Client
	gatewayID string
	ttl       time.Duration
}

type Config struct {
	Addr      string
	Password  string
	DB        int
	GatewayID string
	TTL       time.Duration // default 90s
}

func NewOnline(ctx context.Context, c Config) (*Online, error) {
	if c.TTL <= 0 {
		c.TTL = 90 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, errors.Wrap(err, "redis ping")
	}
	return &Online{rdb: rdb, gatewayID: c.GatewayID, ttl: c.TTL}, nil
}

func presenceKey(userID int64) string {
	return "im:presence:" + strconv.FormatInt(userID, 10)
}

// Up marks the user online on this gateway and arms the TTL.
func (o *Online) Up(ctx context.Context, userID int64) error {
	return o.rdb.Set(ctx, presenceKey(userID), o.gatewayID, o.ttl).Err()
}

// Renew extends the TTL; called from the liveness sweep for bound users.
func (o *Online) Renew(ctx context.Context, userID int64) error {
	return o.rdb.Expire(ctx, presenceKey(userID), o.ttl).Err()
}

// Down removes the user from the index.
func (o *Online) Down(ctx context.Context, userID int64) error {
	return o.rdb.Del(ctx, presenceKey(userID)).Err()
}

// Lookup reports which gateway the user is on, if any.
func (o *Online) Lookup(ctx context.Context, userID int64) (gatewayID string, online bool, err error) {
	val, err := o.rdb.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (o *Online) Close() error { return o.rdb.Close() }
