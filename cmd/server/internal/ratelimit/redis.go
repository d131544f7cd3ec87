package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIntervalStore enforces a minimum interval between one identifier's
// requests. It is not a sliding window: a single redis key per identifier
// holds a cooldown marker and new requests are refused while it lives.
type RedisIntervalStore struct {
	db         *redis.Client
	limiterKey string
	interval   time.Duration
	failOpen   bool
}

type RedisIntervalConfig struct {
	RedisClient *redis.Client
	LimiterKey  string
	Interval    time.Duration
	FailOpen    bool
}

func (store *RedisIntervalStore) Allow(identifier string) (bool, error) {
	// Two concurrent writers can both pass the NX race and each get one
	// request in. This is a smaller concern than the possibility that we
	// will lose a distributed lock

	ctx := context.Background()

	if store.interval <= 0 {
		return true, nil
	}

	key := "judgehub-ratelimit-" + store.limiterKey + "-" + identifier

	set, err := store.db.SetNX(ctx, key, 1, store.interval).Result()
	if err != nil {
		return store.failOpen, err
	}

	return set, nil
}

func NewRedisIntervalStore(config RedisIntervalConfig) (store *RedisIntervalStore) {
	return &RedisIntervalStore{
		db:         config.RedisClient,
		limiterKey: config.LimiterKey,
		interval:   config.Interval,
		failOpen:   config.FailOpen,
	}
}
