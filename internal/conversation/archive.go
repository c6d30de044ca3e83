package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "intellido:session:"

	// DefaultTranscriptTTL is how long an idle transcript is kept
	DefaultTranscriptTTL = 24 * time.Hour
	// DefaultLockTTL bounds how long a crashed replica can hold a session
	DefaultLockTTL = 2 * time.Minute

	lockRetryInterval = 50 * time.Millisecond
)

// releaseScript deletes the lock only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ConnectRedis parses redisURL and verifies the server is reachable
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RedisArchive stores transcripts as JSON strings and locks sessions with
// SET NX PX so that replicas never run two turns of one session at once
type RedisArchive struct {
	client  *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

// NewRedisArchive creates an archive over client
func NewRedisArchive(client *redis.Client, ttl time.Duration) *RedisArchive {
	if ttl <= 0 {
		ttl = DefaultTranscriptTTL
	}
	return &RedisArchive{client: client, ttl: ttl, lockTTL: DefaultLockTTL}
}

var _ Archive = (*RedisArchive)(nil)

func messagesKey(id string) string {
	return keyPrefix + id + ":messages"
}

func lockKey(id string) string {
	return keyPrefix + id + ":lock"
}

// Save overwrites the transcript of id and refreshes its TTL
func (a *RedisArchive) Save(ctx context.Context, id string, messages []Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	if err := a.client.Set(ctx, messagesKey(id), data, a.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

// Load returns the transcript of id
func (a *RedisArchive) Load(ctx context.Context, id string) ([]Message, error) {
	data, err := a.client.Get(ctx, messagesKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	return messages, nil
}

// Delete removes the transcript and any lock of id
func (a *RedisArchive) Delete(ctx context.Context, id string) error {
	n, err := a.client.Del(ctx, messagesKey(id), lockKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// Lock polls SET NX PX until the lock is taken or ctx is done
func (a *RedisArchive) Lock(ctx context.Context, id string) (func(), error) {
	key := lockKey(id)
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := a.client.SetNX(ctx, key, token, a.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to take session lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, a.client, []string{key}, token).Err()
	}, nil
}

// Ping checks the Redis connection
func (a *RedisArchive) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}
