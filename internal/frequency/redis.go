package frequency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis remembers which intercepts a session has been shown, each for the
// intercept's repeat window.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	r := &Redis{Client: redis.NewClient(&redis.Options{Addr: addr})}
	if err := r.Client.Ping(ctx).Err(); err != nil {
		_ = r.Client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info().Str("addr", addr).Msg("connected to redis")
	return r, nil
}

func key(sessionID, interceptID string) string {
	return fmt.Sprintf("intercept:seen:%s:%s", sessionID, interceptID)
}

// Recent reports whether the session was shown the intercept within its window.
func (r *Redis) Recent(ctx context.Context, sessionID, interceptID string) (bool, error) {
	_, err := r.Client.Get(ctx, key(sessionID, interceptID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Record marks the intercept as shown for window. A zero window records nothing.
func (r *Redis) Record(ctx context.Context, sessionID, interceptID string, window time.Duration) error {
	if window <= 0 {
		return nil
	}
	return r.Client.Set(ctx, key(sessionID, interceptID), time.Now().UTC().Format(time.RFC3339), window).Err()
}

// Close shuts down the Redis client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			log.Error().Err(err).Msg("redis close")
		}
	}
}
