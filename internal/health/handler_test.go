package health

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"fruteria-backend/internal/cache"
	"fruteria-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func check(t *testing.T, h fiber.Handler) (int, Status) {
	t.Helper()
	app := fiber.New()
	app.Get("/health", h)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil), 5000)
	require.NoError(t, err)
	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return resp.StatusCode, st
}

func TestHealthWithoutRedis(t *testing.T) {
	code, st := check(t, Handler(testutil.NewDB(t), nil))
	assert.Equal(t, fiber.StatusOK, code)
	assert.True(t, st.OK)
	assert.Equal(t, "connected", st.DB)
	assert.Equal(t, "disabled", st.Redis)
}

func TestHealthRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	c := cache.FromClient(rdb, time.Minute)
	t.Cleanup(func() { _ = c.Close() })

	code, st := check(t, Handler(testutil.NewDB(t), c))
	assert.Equal(t, fiber.StatusServiceUnavailable, code)
	assert.False(t, st.OK)
	assert.Equal(t, "error", st.Redis)
}

func TestHealthDatabaseClosed(t *testing.T) {
	db := testutil.NewDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	code, st := check(t, Handler(db, nil))
	assert.Equal(t, fiber.StatusServiceUnavailable, code)
	assert.Equal(t, "error", st.DB)
}
