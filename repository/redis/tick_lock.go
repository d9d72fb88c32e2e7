package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskbot/repository"
)

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = redislib.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type tickLock struct {
	client *redislib.Client
	key    string
}

// NewTickLock creates a Redis-backed lease shared by every scanner instance using the same key.
func NewTickLock(client *redislib.Client, key string) repository.TickLocker {
	if key == "" {
		key = "taskbot:scan-lock"
	}
	return &tickLock{client: client, key: key}
}

func (l *tickLock) TryLock(ctx context.Context, ttl time.Duration) (func(context.Context) error, bool, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	}
	return release, true, nil
}
