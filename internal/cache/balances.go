// Package cache stores computed balance sheets keyed by team version.
//
// A team's version changes on every write, so an entry never needs
// invalidating: a new write simply makes the old key unreachable and the
// TTL reclaims it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmynk/teamtab/internal/calculator"
)

const keyPrefix = "teamtab:balances:"

// BalanceCache caches balance sheets per (team, version).
type BalanceCache interface {
	// Get returns the cached sheet, or ok=false on a miss.
	Get(ctx context.Context, teamID string, version int64) (sheet *calculator.BalanceSheet, ok bool, err error)
	Set(ctx context.Context, teamID string, version int64, sheet *calculator.BalanceSheet) error
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, int64) (*calculator.BalanceSheet, bool, error) {
	return nil, false, nil
}

func (Nop) Set(context.Context, string, int64, *calculator.BalanceSheet) error {
	return nil
}

// Redis implements BalanceCache on a Redis server.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedis wraps client. A zero ttl keeps entries until evicted.
func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Key returns the Redis key of a team version.
func Key(teamID string, version int64) string {
	return fmt.Sprintf("%s%s:%d", keyPrefix, teamID, version)
}

func (c *Redis) Get(ctx context.Context, teamID string, version int64) (*calculator.BalanceSheet, bool, error) {
	data, err := c.client.Get(ctx, Key(teamID, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	sheet := &calculator.BalanceSheet{}
	if err := json.Unmarshal(data, sheet); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached balances: %w", err)
	}
	return sheet, true, nil
}

func (c *Redis) Set(ctx context.Context, teamID string, version int64, sheet *calculator.BalanceSheet) error {
	data, err := json.Marshal(sheet)
	if err != nil {
		return fmt.Errorf("failed to encode balances: %w", err)
	}
	if err := c.client.Set(ctx, Key(teamID, version), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
