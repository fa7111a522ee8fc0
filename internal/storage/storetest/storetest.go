// Package storetest holds the behaviour every storage.Store backend must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/focusgate/internal/storage"
)

// Run exercises a backend. open must return an empty store.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Helper()

	t.Run("empty load", func(t *testing.T) {
		s := open(t)
		got, err := s.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("apply puts and deletes", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		b := storage.NewBatch()
		b.Put("app/com.a", []byte(`{"phase":"DECISION"}`))
		b.Put("quota", []byte(`{"remaining":2}`))
		require.NoError(t, s.Apply(ctx, b))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{
			"app/com.a": []byte(`{"phase":"DECISION"}`),
			"quota":     []byte(`{"remaining":2}`),
		}, got)

		b = storage.NewBatch()
		b.Delete("app/com.a")
		b.Put("quota", []byte(`{"remaining":1}`))
		require.NoError(t, s.Apply(ctx, b))

		got, err = s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{"quota": []byte(`{"remaining":1}`)}, got)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Apply(context.Background(), storage.NewBatch()))
	})

	t.Run("delete of missing key", func(t *testing.T) {
		s := open(t)
		b := storage.NewBatch()
		b.Delete("app/none")
		require.NoError(t, s.Apply(context.Background(), b))
	})

	t.Run("load returns copies", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		b := storage.NewBatch()
		b.Put("k", []byte("v"))
		require.NoError(t, s.Apply(ctx, b))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		got["k"][0] = 'x'

		again, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), again["k"])
	})
}
