package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperPurgesExpiredSessions(t *testing.T) {
	m, store, clock := setupManager(t, false)

	_, err := m.Create(context.Background(), 1)
	require.NoError(t, err)
	clock.Advance(5 * time.Hour)

	sweeper := NewSweeper(m, 10*time.Millisecond)
	assert.Equal(t, "session-sweeper", sweeper.String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Serve(ctx) }()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestNewSweeperDefaultsInterval(t *testing.T) {
	m, _, _ := setupManager(t, false)
	assert.Equal(t, time.Hour, NewSweeper(m, 0).interval)
}
