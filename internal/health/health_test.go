package health

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestChecker_AllOK(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("db", func(ctx context.Context) Status { return StatusOK })
	c.Register("transport", func(ctx context.Context) Status { return StatusOK })

	results := c.RunAll(context.Background())
	assert.Len(t, results, 2)
	assert.Equal(t, StatusOK, results["db"])
	assert.True(t, c.IsReady(context.Background()))
}

func TestChecker_DownDependency(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("db", func(ctx context.Context) Status { return StatusDown })

	assert.False(t, c.IsReady(context.Background()))
}

func TestChecker_DegradedIsStillReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("transport", func(ctx context.Context) Status { return StatusDegraded })

	assert.True(t, c.IsReady(context.Background()))
}

func TestChecker_NoChecks(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	assert.Empty(t, c.RunAll(context.Background()))
	assert.True(t, c.IsReady(context.Background()))
}
