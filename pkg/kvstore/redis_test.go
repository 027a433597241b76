package kvstore_test

import (
	"testing"

	"github.com/stockwise/stockwise-backend/pkg/config"
	"github.com/stockwise/stockwise-backend/pkg/kvstore"
	"github.com/stockwise/stockwise-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisStore_Integration(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := testutil.DefaultTestContext(t)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	store, err := kvstore.NewRedisStore(&config.RedisConfig{Addr: addr}, "stockwise-test")
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, "up", store.Health(ctx)["status"])

	_, err = store.Get(ctx, "notifications")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	require.NoError(t, store.Set(ctx, "notifications", []byte(`[]`)))
	value, err := store.Get(ctx, "notifications")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), value)

	require.NoError(t, store.Delete(ctx, "notifications"))
	_, err = store.Get(ctx, "notifications")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}
