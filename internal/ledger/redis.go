package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/saburov/airfare/config"
	"github.com/saburov/airfare/internal/clock"
	"github.com/saburov/airfare/internal/domain"
)

// RedisAttemptLedger stores pricing attempts in one sorted set per
// (user, flight) pair, scored by the attempt timestamp. Window counts read a
// score range, so an attempt past the retention window never counts even
// before it is physically removed.
type RedisAttemptLedger struct {
	client    *redis.Client
	clock     clock.Clock
	retention time.Duration
}

func NewRedisAttemptLedger(cfg config.RedisConfig, clk clock.Clock, retention time.Duration) *RedisAttemptLedger {
	return &RedisAttemptLedger{
		client:    redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		clock:     clk,
		retention: retention,
	}
}

// NewWithClient is used by tests and by callers sharing a redis client.
func NewWithClient(client *redis.Client, clk clock.Clock, retention time.Duration) *RedisAttemptLedger {
	return &RedisAttemptLedger{client: client, clock: clk, retention: retention}
}

func (l *RedisAttemptLedger) Record(ctx context.Context, userID, flightCode string, priceCents int64) (domain.Attempt, error) {
	attempt := domain.Attempt{
		ID:         uuid.NewString(),
		UserID:     userID,
		FlightCode: flightCode,
		PriceCents: priceCents,
		At:         l.clock.Now(),
	}

	key := attemptsKey(userID, flightCode)
	member := attempt.ID + ":" + strconv.FormatInt(priceCents, 10)
	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(attempt.At.UnixNano()), Member: member})
	pipe.Expire(ctx, key, l.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Attempt{}, fmt.Errorf("record attempt: %w", err)
	}
	return attempt, nil
}

// CountRecent counts attempts newer than now-window. The lower bound is
// exclusive, so an attempt exactly window old is not counted.
func (l *RedisAttemptLedger) CountRecent(ctx context.Context, userID, flightCode string, window time.Duration) (int, error) {
	now := l.clock.Now()
	min := "(" + strconv.FormatInt(now.Add(-window).UnixNano(), 10)
	max := strconv.FormatInt(now.UnixNano(), 10)

	n, err := l.client.ZCount(ctx, attemptsKey(userID, flightCode), min, max).Result()
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return int(n), nil
}

// Reap physically removes attempts older than the retention window. The key
// TTL already bounds idle pairs; this sweep trims pairs that stay hot.
func (l *RedisAttemptLedger) Reap(ctx context.Context) error {
	cutoff := strconv.FormatInt(l.clock.Now().Add(-l.retention).UnixNano(), 10)

	iter := l.client.Scan(ctx, 0, "attempts:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := l.client.ZRemRangeByScore(ctx, iter.Val(), "-inf", cutoff).Err(); err != nil {
			return fmt.Errorf("reap %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan attempts: %w", err)
	}
	return nil
}

func attemptsKey(userID, flightCode string) string {
	return fmt.Sprintf("attempts:%s:%s", userID, flightCode)
}
