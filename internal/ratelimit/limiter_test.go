package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryAllow(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	t.Run("allows until the limit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			result, err := store.Allow(ctx, "voter-a", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, result.Allowed)
			assert.Equal(t, 3-i-1, result.Remaining)
		}

		result, err := store.Allow(ctx, "voter-a", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
	})

	t.Run("keys are independent", func(t *testing.T) {
		result, err := store.Allow(ctx, "voter-b", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("window slides", func(t *testing.T) {
		fast := NewInMemory()
		_, err := fast.Allow(ctx, "voter-c", 1, 10*time.Millisecond)
		require.NoError(t, err)

		denied, err := fast.Allow(ctx, "voter-c", 1, 10*time.Millisecond)
		require.NoError(t, err)
		assert.False(t, denied.Allowed)

		time.Sleep(15 * time.Millisecond)
		allowed, err := fast.Allow(ctx, "voter-c", 1, 10*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, allowed.Allowed)
	})
}
