package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-pricescout/internal/ports"
)

type idleCounter struct {
	*MockProvider
	closed int
}

func (c *idleCounter) CloseIdleConnections() { c.closed++ }

// TestReleaseCleanup_ReleasesThroughMiddleware verifies wrapped providers are
// still reached and errors are joined.
func TestReleaseCleanup_ReleasesThroughMiddleware(t *testing.T) {
	ok := NewMockProvider("sufarmed")
	failing := NewMockProvider("difarmer")
	failing.ReleaseErr = errors.New("browser stuck")
	plain := NewStaticProvider("static", StaticFixture{})

	hook := ReleaseCleanup(TracingMiddleware("t")(ok), failing, plain)
	err := hook.Cleanup(context.Background(), 1)

	require.Error(t, err, "failing release should surface")
	assert.Contains(t, err.Error(), "release difarmer", "error should name the provider")
	assert.Equal(t, 1, ok.GetReleaseCount(), "wrapped provider should be released")
	assert.Equal(t, 1, failing.GetReleaseCount(), "failing provider should be attempted")
}

// TestIdleConnCleanup_ClosesIdleConnections verifies IdleCloser detection.
func TestIdleConnCleanup_ClosesIdleConnections(t *testing.T) {
	c := &idleCounter{MockProvider: NewMockProvider("nadro")}

	err := IdleConnCleanup(c, NewMockProvider("fanasa")).Cleanup(context.Background(), 2)

	require.NoError(t, err, "cleanup should succeed")
	assert.Equal(t, 1, c.closed, "idle connections should be closed once")
}

// TestChainCleanup_RunsEveryHook verifies later hooks run after a failure.
func TestChainCleanup_RunsEveryHook(t *testing.T) {
	var phases []int
	first := ports.CleanupFunc(func(_ context.Context, phase int) error {
		phases = append(phases, phase)
		return errors.New("first failed")
	})
	second := ports.CleanupFunc(func(_ context.Context, phase int) error {
		phases = append(phases, phase*10)
		return nil
	})

	err := ChainCleanup(first, nil, second).Cleanup(context.Background(), 3)

	assert.EqualError(t, err, "first failed", "first error should be reported")
	assert.Equal(t, []int{3, 30}, phases, "both hooks should run in order")
}
