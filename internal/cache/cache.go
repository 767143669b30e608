package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"auftrag.chapter42.de/dispatch/internal/data"
	"auftrag.chapter42.de/dispatch/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	statsKey = "dispatch:dashboard:stats"
	// genKey zählt jede Invalidierung. Set schreibt nur, wenn sich der Zähler
	// seit Generation nicht verändert hat.
	genKey = "dispatch:dashboard:gen"
)

var errStale = errors.New("kennzahlen veraltet")

// StatsCache hält die Dashboard-Kennzahlen in Redis. Ein nil-*StatsCache ist
// gültig und cached nichts.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New verbindet sich mit Redis. Ohne Adresse wird nil geliefert.
func New(ctx context.Context, cfg data.RedisConfig) (*StatsCache, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis nicht erreichbar: %w", err)
	}
	return NewWithClient(client, cfg.StatsTTL), nil
}

func NewWithClient(client *redis.Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StatsCache{client: client, ttl: ttl}
}

func (c *StatsCache) Get(ctx context.Context) (*data.DashboardStats, bool) {
	if c == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, statsKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.Warn("Dashboard-Cache nicht lesbar:", zap.Error(err))
		}
		return nil, false
	}

	var stats data.DashboardStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		logger.Log.Warn("Dashboard-Cache beschädigt:", zap.Error(err))
		return nil, false
	}
	return &stats, true
}

// Generation liefert den aktuellen Invalidierungszähler. Er wird vor dem
// Berechnen der Kennzahlen gelesen und an Set übergeben.
func (c *StatsCache) Generation(ctx context.Context) int64 {
	if c == nil {
		return 0
	}
	gen, err := c.client.Get(ctx, genKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		logger.Log.Warn("Dashboard-Cache nicht lesbar:", zap.Error(err))
		return -1
	}
	return gen
}

// Set speichert die Kennzahlen, sofern seit gen keine Invalidierung lief.
func (c *StatsCache) Set(ctx context.Context, stats *data.DashboardStats, gen int64) {
	if c == nil || stats == nil || gen < 0 {
		return
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		logger.Log.Warn("Dashboard-Kennzahlen nicht serialisierbar:", zap.Error(err))
		return
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, statsKey, raw, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		logger.Log.Debug("Dashboard-Kennzahlen inzwischen veraltet, nicht gecacht")
	default:
		logger.Log.Warn("Dashboard-Cache nicht schreibbar:", zap.Error(err))
	}
}

func (c *StatsCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Del(ctx, statsKey)
		return nil
	})
	if err != nil {
		logger.Log.Warn("Dashboard-Cache nicht löschbar:", zap.Error(err))
	}
}

func (c *StatsCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
