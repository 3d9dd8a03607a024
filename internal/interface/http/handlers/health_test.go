package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCompositeHealthChecker_NoChecks(t *testing.T) {
	status := NewCompositeHealthChecker("v1").Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, "v1", status.Version)
}

func TestCompositeHealthChecker_OptionalFailureKeepsReady(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("database", NewPingCheck(pingerFunc(func(context.Context) error { return nil })))
	c.AddOptionalCheck("cache", NewPingCheck(pingerFunc(func(context.Context) error { return errors.New("refused") })))

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, "Some checks failed: cache", status.Message)
	require.Contains(t, status.Checks, "cache")
	assert.True(t, status.Checks["cache"].Optional)
	assert.Equal(t, "refused", status.Checks["cache"].Message)
}

func TestCompositeHealthChecker_TimeoutFailsReadiness(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.SetTimeout(20 * time.Millisecond)
	c.AddCheck("database", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	c.AddCheck("broker", func(context.Context) error { return nil })

	status := c.Check(context.Background())
	assert.False(t, status.Ready)
	assert.False(t, status.Checks["database"].Healthy)
	assert.True(t, status.Checks["broker"].Healthy)

	c.RemoveCheck("database")
	assert.True(t, c.Check(context.Background()).Ready)
}
