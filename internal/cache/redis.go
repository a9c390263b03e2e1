package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ttfl_tracker/ingestion/internal/metrics"
	"ttfl_tracker/ingestion/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	keyPrefix        = "ttfl"
	averagesGenKey   = keyPrefix + ":averages:gen"
	defaultOpTimeout = 2 * time.Second
)

// Config holds Redis connection settings
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// RedisCache stores computed averages between score backfills
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("port", cfg.Port).
		Int("db", cfg.DB).
		Msg("Successfully connected to redis")

	return &RedisCache{client: client}, nil
}

// Close closes the Redis client
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Health pings Redis
func (r *RedisCache) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

func (r *RedisCache) generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, averagesGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read averages generation: %w", err)
	}
	return gen, nil
}

func averagesKey(gen int64, date string, playerID int) string {
	return keyPrefix + ":averages:" + strconv.FormatInt(gen, 10) + ":" + date + ":" + strconv.Itoa(playerID)
}

// GetAverages returns the cached averages for the players it has, keyed by
// player id, together with the generation they were read under. Averages
// computed for the misses must be stored under that same generation.
func (r *RedisCache) GetAverages(ctx context.Context, date string, playerIDs []int) (map[int]models.Averages, int64, error) {
	start := time.Now()
	defer func() { metrics.RecordCacheOperation("get_averages", time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()

	gen, err := r.generation(ctx)
	if err != nil {
		return nil, 0, err
	}

	found := make(map[int]models.Averages, len(playerIDs))
	if len(playerIDs) == 0 {
		return found, gen, nil
	}

	keys := make([]string, len(playerIDs))
	for i, id := range playerIDs {
		keys[i] = averagesKey(gen, date, id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read cached averages: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			metrics.RecordCacheMiss()
			continue
		}
		var avg models.Averages
		if err := json.Unmarshal([]byte(s), &avg); err != nil {
			log.Warn().Err(err).Str("key", keys[i]).Msg("Discarding malformed cached averages")
			metrics.RecordCacheMiss()
			continue
		}
		metrics.RecordCacheHit()
		found[playerIDs[i]] = avg
	}

	return found, gen, nil
}

// SetAverages stores averages computed for date under generation gen with the
// given TTL. Once the generation has moved on, the entries are unreachable.
func (r *RedisCache) SetAverages(ctx context.Context, gen int64, date string, averages map[int]models.Averages, ttl time.Duration) error {
	start := time.Now()
	defer func() { metrics.RecordCacheOperation("set_averages", time.Since(start).Seconds()) }()

	if len(averages) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()

	current, err := r.generation(ctx)
	if err != nil {
		return err
	}
	if current != gen {
		log.Debug().
			Int64("computed_gen", gen).
			Int64("current_gen", current).
			Msg("Averages invalidated while computing, not caching")
		return nil
	}

	pipe := r.client.Pipeline()
	for id, avg := range averages {
		data, err := json.Marshal(avg)
		if err != nil {
			return fmt.Errorf("failed to encode averages: %w", err)
		}
		pipe.Set(ctx, averagesKey(gen, date, id), data, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write cached averages: %w", err)
	}
	return nil
}

// InvalidateAverages makes every previously cached average unreachable.
// Old entries expire on their own TTL.
func (r *RedisCache) InvalidateAverages(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()

	if err := r.client.Incr(ctx, averagesGenKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached averages: %w", err)
	}
	log.Debug().Msg("Cached averages invalidated")
	return nil
}
