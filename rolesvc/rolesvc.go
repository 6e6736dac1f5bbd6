// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package rolesvc resolves user roles from the external role service. The
// HTTP client sits behind a circuit breaker: when the service is down the
// breaker opens, calls fail fast with ErrUnavailable, and callers fall
// back to denying privileged actions instead of hanging on timeouts.
package rolesvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "election_manager"
)

// ErrUnavailable means the role service could not answer: network
// failure, bad response, or an open circuit breaker. Callers treat it as
// "no privileged roles".
var ErrUnavailable = errors.New("role service unavailable")

// Roles is the set of roles the service reports for a user.
type Roles []string

func (r Roles) Has(role string) bool {
	for _, have := range r {
		if have == role {
			return true
		}
	}
	return false
}

// CanManageDraws reports whether these roles may trigger a manual draw.
func (r Roles) CanManageDraws() bool {
	return r.Has(RoleAdmin) || r.Has(RoleManager)
}

// Checker answers role lookups. Client implements it over HTTP;
// StaticChecker serves tests and single-node deployments.
type Checker interface {
	RolesFor(ctx context.Context, userID string) (Roles, error)
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	settings := gobreaker.Settings{
		Name:        "role-service",
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

type rolesResponse struct {
	Roles []string `json:"roles"`
}

// RolesFor fetches a user's roles. Every failure mode maps to
// ErrUnavailable so callers have a single degraded path.
func (c *Client) RolesFor(ctx context.Context, userID string) (Roles, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		url := fmt.Sprintf("%s/users/%s/roles", c.baseURL, userID)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			// Unknown user: an authoritative "no roles", not a failure.
			return Roles(nil), nil
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("role service returned status %d", resp.StatusCode)
		}

		var body rolesResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("failed to decode role response: %w", err)
		}
		return Roles(body.Roles), nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit breaker open", ErrUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result.(Roles), nil
}

// StaticChecker resolves roles from a fixed map. Users absent from the
// map have no roles.
type StaticChecker map[string]Roles

func (s StaticChecker) RolesFor(_ context.Context, userID string) (Roles, error) {
	return s[userID], nil
}
