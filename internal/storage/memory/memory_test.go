package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/focusgate/internal/storage"
	"github.com/GriffinCanCode/focusgate/internal/storage/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestFailWith(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("disk full")

	b := storage.NewBatch()
	b.Put("k", []byte("v"))

	s.FailWith(boom, 1)
	assert.ErrorIs(t, s.Apply(ctx, b), boom)
	require.NoError(t, s.Apply(ctx, b))
	assert.Equal(t, 1, s.Writes())

	s.FailWith(boom, 0)
	assert.ErrorIs(t, s.Apply(ctx, b), boom)
	assert.ErrorIs(t, s.Apply(ctx, b), boom)
	s.FailWith(nil, 0)
	require.NoError(t, s.Apply(ctx, b))
}

func TestClosed(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.ErrorIs(t, s.Apply(context.Background(), storage.NewBatch()), storage.ErrClosed)
}
