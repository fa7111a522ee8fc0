//go:build integration

package redis

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/GriffinCanCode/focusgate/internal/storage"
	"github.com/GriffinCanCode/focusgate/internal/storage/storetest"
)

var (
	testRedisURL   string
	redisContainer testcontainers.Container
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	var err error
	redisContainer, err = tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		os.Exit(1)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get redis endpoint: %v\n", err)
		os.Exit(1)
	}
	testRedisURL = "redis://" + endpoint

	code := m.Run()
	if err := redisContainer.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate redis container: %v\n", err)
	}
	os.Exit(code)
}

func openTest(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	// Each test gets its own namespace so they never see each other's keys.
	s, err := Open(ctx, testRedisURL, "test:"+t.Name()+":")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store { return openTest(t) })
}

func TestPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, testRedisURL, "iso-a:")
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(ctx, testRedisURL, "iso-b:")
	require.NoError(t, err)
	defer b.Close()

	batch := storage.NewBatch()
	batch.Put("quota", []byte(`{"remaining":1}`))
	require.NoError(t, a.Apply(ctx, batch))

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.NotContains(t, got, "quota")

	got, err = a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"remaining":1}`), got["quota"])
}
