package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient(t *testing.T) {
	ctx := context.Background()
	client, err := New(Config{Driver: "memory", Prefix: "test"})
	require.NoError(t, err)
	defer client.Close()

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "k1", "v1", time.Minute))

		got, err := client.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "v1", got)
	})

	t.Run("miss is ErrNotFound", func(t *testing.T) {
		_, err := client.Get(ctx, "absent")
		assert.True(t, IsNotFound(err))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "k2", "v2", time.Minute))
		require.NoError(t, client.Delete(ctx, "k2"))
		require.NoError(t, client.Delete(ctx, "k2"))

		_, err := client.Get(ctx, "k2")
		assert.True(t, IsNotFound(err))
	})

	t.Run("entries expire", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "k3", "v3", 10*time.Millisecond))
		time.Sleep(30 * time.Millisecond)

		_, err := client.Get(ctx, "k3")
		assert.True(t, IsNotFound(err))
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "k4", "v4", 0))
		time.Sleep(20 * time.Millisecond)

		got, err := client.Get(ctx, "k4")
		require.NoError(t, err)
		assert.Equal(t, "v4", got)
	})

	t.Run("prefixes isolate clients", func(t *testing.T) {
		other, err := New(Config{Driver: "memory", Prefix: "other"})
		require.NoError(t, err)
		defer other.Close()

		require.NoError(t, client.Set(ctx, "shared", "mine", time.Minute))
		_, err = other.Get(ctx, "shared")
		assert.True(t, IsNotFound(err))
	})

	t.Run("ping always succeeds", func(t *testing.T) {
		assert.NoError(t, client.Ping(ctx))
	})
}

func TestKeyPrefix(t *testing.T) {
	// stored keys read prefix::rest; a prefix already carrying the
	// separator is not doubled
	assert.Equal(t, "authcore::", keyPrefix("authcore"))
	assert.Equal(t, "authcore::", keyPrefix("authcore::"))
	assert.Equal(t, "", keyPrefix(""))
}
