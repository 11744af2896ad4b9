package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"weatherbot/dialog"

	backend "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultPrefix = "weatherbot:"

// RedisStore keeps conversations as JSON documents in redis.
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type RedisOption func(*RedisStore)

// WithTTL expires idle conversations; zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

func NewRedisStore(client *backend.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(userID int64) string {
	return s.prefix + "conversation:" + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) Save(ctx context.Context, userID int64, conversation *dialog.Conversation) error {
	data, err := json.Marshal(conversation)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if err := s.client.Set(ctx, s.key(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save conversation to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, userID int64) (*dialog.Conversation, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, dialog.ErrNoConversation
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation from redis: %w", err)
	}

	var conversation dialog.Conversation
	if err := json.Unmarshal(data, &conversation); err != nil {
		return nil, fmt.Errorf("%w: %v", dialog.ErrCorruptConversation, err)
	}
	if conversation.Data == nil {
		conversation.Data = make(map[string]string)
	}
	return &conversation, nil
}

func (s *RedisStore) Delete(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}

// RedisLocker implements DistributedLocker with SET NX PX. A held lock is
// extended every third of its ttl until it is released.
type RedisLocker struct {
	client *backend.Client
	prefix string
	poll   time.Duration
	logger *zap.Logger
}

type RedisLockerOption func(*RedisLocker)

func WithRedisLockerLogger(logger *zap.Logger) RedisLockerOption {
	return func(l *RedisLocker) {
		l.logger = logger
	}
}

func NewRedisLocker(client *backend.Client, prefix string, opts ...RedisLockerOption) *RedisLocker {
	if prefix == "" {
		prefix = defaultPrefix
	}
	l := &RedisLocker{client: client, prefix: prefix, poll: 50 * time.Millisecond, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

const renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := strconv.FormatInt(time.Now().UnixNano(), 36)

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		acquired, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis error acquiring lock: %w", err)
		}
		if acquired {
			stop, stopped := make(chan struct{}), make(chan struct{})
			go l.renew(lockKey, token, ttl, stop, stopped)

			var once sync.Once
			return func(ctx context.Context) error {
				once.Do(func() {
					close(stop)
					<-stopped
				})
				return l.client.Eval(ctx, unlockScript, []string{lockKey}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) renew(lockKey, token string, ttl time.Duration, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	interval := ttl / 3
	if interval <= 0 {
		<-stop
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := l.client.Eval(ctx, renewScript, []string{lockKey}, token, ttl.Milliseconds()).Err()
			cancel()
			if err != nil {
				l.logger.Warn("failed to extend distributed lock",
					zap.String("key", lockKey),
					zap.Error(err),
				)
			}
		}
	}
}
