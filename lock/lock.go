// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package lock serializes draw execution across server instances with a
// Redis lock. Acquisition is a single SET NX; release goes through a Lua
// script so a holder whose lock already expired cannot delete the next
// holder's lock. Without Redis configured, a no-op manager is used and the
// draw table's unique index remains the only cross-instance guard.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/votelot/server/auth"
)

const keyPrefix = "votelot:draw:"

// releaseScript deletes the lock only if the caller still owns it.
const releaseScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

var ErrAlreadyLocked = errors.New("draw already in progress")

// Manager guards one draw per election at a time.
type Manager interface {
	// Acquire takes the election's draw lock. The returned release func
	// is safe to call after the lock expired.
	Acquire(ctx context.Context, electionID string, ttl time.Duration) (release func(), err error)
}

type redisManager struct {
	client *redis.Client
}

func NewRedisManager(client *redis.Client) Manager {
	return &redisManager{client: client}
}

func (m *redisManager) Acquire(ctx context.Context, electionID string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	token, err := auth.GenerateID(16)
	if err != nil {
		return nil, err
	}
	key := keyPrefix + electionID

	acquired, err := m.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire draw lock: %w", err)
	}
	if !acquired {
		return nil, ErrAlreadyLocked
	}

	release := func() {
		// Best effort; the TTL reclaims the lock if this fails. Uses a
		// fresh context so release still runs when the caller's is done.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		m.client.Eval(releaseCtx, releaseScript, []string{key}, token)
	}
	return release, nil
}

type noopManager struct{}

// NewNoopManager returns a Manager that always grants the lock.
func NewNoopManager() Manager {
	return noopManager{}
}

func (noopManager) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}
