// Package health provides named dependency checks for readiness probes.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status represents the health status of a dependency.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// CheckFunc is a function that checks a dependency's health.
type CheckFunc func(ctx context.Context) Status

// Checker manages health checks for all dependencies.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
	logger zerolog.Logger
}

// NewChecker creates a new health checker.
func NewChecker(logger zerolog.Logger) *Checker {
	return &Checker{
		checks: make(map[string]CheckFunc),
		logger: logger.With().Str("component", "health").Logger(),
	}
}

// Register adds a named health check.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// RunAll executes all health checks concurrently.
func (c *Checker) RunAll(ctx context.Context) map[string]Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()

	results := make(map[string]Status, len(checks))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, fn := range checks {
		wg.Add(1)
		go func(n string, f CheckFunc) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			s := f(checkCtx)
			mu.Lock()
			results[n] = s
			mu.Unlock()
		}(name, fn)
	}

	wg.Wait()
	return results
}

// IsReady returns true if no check reports down.
func (c *Checker) IsReady(ctx context.Context) bool {
	for _, s := range c.RunAll(ctx) {
		if s == StatusDown {
			return false
		}
	}
	return true
}
