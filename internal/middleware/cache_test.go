package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autohive/workshop-service/internal/config"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func cacheTestConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{"GET": true},
		TTL:          time.Minute,
		KeyStrategy:  "ws_route_query",
		Prefix:       "jobs",
		MaxBodyBytes: 1 << 20,
	}
}

// runCached performs one GET through the cache middleware with the given
// workshop identity and returns the recorder.
func runCached(t *testing.T, mw echo.MiddlewareFunc, h echo.HandlerFunc, workshopID uint64, target string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/jobs")
	c.Set("workshop_id", workshopID)
	require.NoError(t, mw(h)(c))
	return rec
}

func TestCacheServesRepeatReadsWithoutHandler(t *testing.T) {
	mw := NewRedisCache(cacheTestConfig(), testRedis(t))

	calls := 0
	h := func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"jobs": []string{"KA01AB1234"}})
	}

	first := runCached(t, mw, h, 1, "/v1/jobs")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, 1, calls)

	second := runCached(t, mw, h, 1, "/v1/jobs")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, 1, calls, "handler must not run on a cache hit")
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestCacheIsolatesWorkshops(t *testing.T) {
	mw := NewRedisCache(cacheTestConfig(), testRedis(t))

	calls := 0
	h := func(c echo.Context) error {
		calls++
		ws, _ := c.Get("workshop_id").(uint64)
		return c.JSON(http.StatusOK, echo.Map{"workshop": ws})
	}

	a := runCached(t, mw, h, 1, "/v1/jobs")
	b := runCached(t, mw, h, 2, "/v1/jobs")
	assert.Equal(t, 2, calls, "each workshop fills its own cache entry")
	assert.NotEqual(t, a.Body.String(), b.Body.String())

	// Workshop 2's repeat read hits its own entry, never workshop 1's.
	again := runCached(t, mw, h, 2, "/v1/jobs")
	assert.Equal(t, "HIT", again.Header().Get("X-Cache"))
	assert.Equal(t, b.Body.String(), again.Body.String())
}

func TestCacheVariesOnQuery(t *testing.T) {
	mw := NewRedisCache(cacheTestConfig(), testRedis(t))

	calls := 0
	h := func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"q": c.QueryParam("status")})
	}

	runCached(t, mw, h, 1, "/v1/jobs?status=CREATED")
	runCached(t, mw, h, 1, "/v1/jobs?status=CLOSED")
	assert.Equal(t, 2, calls)
}

func TestCacheSkipsNonConfiguredMethods(t *testing.T) {
	mw := NewRedisCache(cacheTestConfig(), testRedis(t))

	calls := 0
	h := func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	}

	e := echo.New()
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/jobs", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/jobs")
		c.Set("workshop_id", uint64(1))
		require.NoError(t, mw(h)(c))
	}
	assert.Equal(t, 2, calls)
}

func TestCacheDisabledPassesThrough(t *testing.T) {
	cfg := cacheTestConfig()
	cfg.Enabled = false
	mw := NewRedisCache(cfg, nil)

	calls := 0
	h := func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	}
	runCached(t, mw, h, 1, "/v1/jobs")
	runCached(t, mw, h, 1, "/v1/jobs")
	assert.Equal(t, 2, calls)
}
