package health

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCheckerAllHealthy(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("snapshot_dir", func(ctx context.Context) Status { return StatusOK })
	c.Register("decision_key", func(ctx context.Context) Status { return StatusOK })

	assert.True(t, c.IsReady(context.Background()))
}

func TestCheckerOneDown(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("snapshot_dir", func(ctx context.Context) Status { return StatusOK })
	c.Register("decision_key", func(ctx context.Context) Status { return StatusDown })

	assert.False(t, c.IsReady(context.Background()))
}

func TestCheckerDegradedStillReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("decision_key", func(ctx context.Context) Status { return StatusDegraded })

	assert.True(t, c.IsReady(context.Background()))
}

func TestCheckerNoChecks(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	assert.True(t, c.IsReady(context.Background()))
}

func TestRunAllReportsPerCheck(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("a", func(ctx context.Context) Status { return StatusOK })
	c.Register("b", func(ctx context.Context) Status { return StatusDown })

	results := c.RunAll(context.Background())
	assert.Equal(t, StatusOK, results["a"])
	assert.Equal(t, StatusDown, results["b"])
}
