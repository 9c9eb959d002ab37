package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/theatre-diary/internal/config"
	"github.com/iliyamo/theatre-diary/internal/utils"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "t:cache",
		MaxBodyBytes: 1 << 20,
	}
}

func TestRedisCacheMissThenHit(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testCacheConfig()

	calls := 0
	e := echo.New()
	e.GET("/v1/plays", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"items": []string{"Hamlet"}})
	}, NewRedisCache(cfg, rdb))
	e.GET("/v1/plays/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusNotFound, echo.Map{"error": "play not found"})
	}, NewRedisCache(cfg, rdb))

	first := serve(e, httptest.NewRequest(http.MethodGet, "/v1/plays", nil))
	second := serve(e, httptest.NewRequest(http.MethodGet, "/v1/plays", nil))
	if first.Header().Get("X-Cache") != "MISS" || second.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("X-Cache = %q then %q", first.Header().Get("X-Cache"), second.Header().Get("X-Cache"))
	}
	if second.Code != http.StatusOK || second.Body.String() != first.Body.String() {
		t.Fatalf("hit differs: %d %q vs %q", second.Code, second.Body.String(), first.Body.String())
	}
	if second.Header().Get(echo.HeaderContentType) != first.Header().Get(echo.HeaderContentType) {
		t.Fatalf("content type not replayed: %v", second.Header())
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}

	// Only 200s are stored.
	serve(e, httptest.NewRequest(http.MethodGet, "/v1/plays/9", nil))
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/v1/plays/9", nil))
	if rec.Code != http.StatusNotFound || rec.Header().Get("X-Cache") != "MISS" || calls != 3 {
		t.Fatalf("404 served from cache: %d %q calls=%d", rec.Code, rec.Header().Get("X-Cache"), calls)
	}
}

func TestInvalidateOnWritePurgesAfterSuccessOnly(t *testing.T) {
	mr, rdb := newTestRedis(t)
	cfg := testCacheConfig()
	if err := mr.Set("other:key", "kept"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	e := echo.New()
	e.GET("/v1/plays", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"items": []string{}})
	}, NewRedisCache(cfg, rdb))
	g := e.Group("/v1", InvalidateOnWrite(cfg, rdb))
	g.POST("/plays", func(c echo.Context) error {
		if c.QueryParam("fail") != "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
		}
		return c.JSON(http.StatusCreated, echo.Map{"id": 1})
	})

	cached := func() int {
		n := 0
		for _, k := range mr.Keys() {
			if len(k) > len(cfg.Prefix) && k[:len(cfg.Prefix)+1] == cfg.Prefix+":" {
				n++
			}
		}
		return n
	}

	serve(e, httptest.NewRequest(http.MethodGet, "/v1/plays", nil))
	if cached() != 1 {
		t.Fatalf("expected one cached response, keys = %v", mr.Keys())
	}

	if rec := serve(e, httptest.NewRequest(http.MethodPost, "/v1/plays?fail=1", nil)); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if cached() != 1 {
		t.Fatalf("failed write purged the cache, keys = %v", mr.Keys())
	}

	if rec := serve(e, httptest.NewRequest(http.MethodPost, "/v1/plays", nil)); rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if cached() != 0 {
		t.Fatalf("successful write left cached responses, keys = %v", mr.Keys())
	}
	if !mr.Exists("other:key") {
		t.Fatalf("purge reached keys outside the prefix")
	}
}

func TestPurgeCacheCountsKeys(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	for _, k := range []string{"t:cache:a", "t:cache:b", "t:cache:c", "t:other"} {
		if err := rdb.Set(ctx, k, "x", 0).Err(); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	n, err := PurgeCache(ctx, rdb, "t:cache")
	if err != nil || n != 3 {
		t.Fatalf("PurgeCache = %d, %v", n, err)
	}
}

func testRateConfig(strategy string) config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            5 * time.Hour,
		KeyStrategy:    strategy,
		Prefix:         "t:rl",
	}
}

func TestTokenBucketRejectsWhenEmpty(t *testing.T) {
	_, rdb := newTestRedis(t)
	e := echo.New()
	e.Use(NewTokenBucket(testRateConfig("ip"), rdb))
	e.GET("/v1/plays", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	var codes []int
	for i := 0; i < 3; i++ {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/v1/plays", nil))
		codes = append(codes, rec.Code)
		if i == 2 && rec.Header().Get("Retry-After") == "" {
			t.Fatalf("429 without Retry-After: %v", rec.Header())
		}
		if i == 0 && rec.Header().Get("X-RateLimit-Remaining") != "1" {
			t.Fatalf("remaining = %q", rec.Header().Get("X-RateLimit-Remaining"))
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}

func TestTokenBucketFailsOpen(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	e := echo.New()
	e.Use(NewTokenBucket(testRateConfig("ip"), rdb))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	if rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil)); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 when redis is down", rec.Code)
	}
}

func TestMemberLimiterKeysOnUser(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testRateConfig("user")
	cfg.Capacity = 1

	e := echo.New()
	g := e.Group("/v1", JWTAuth("secret"), NewTokenBucket(cfg.Members(), rdb))
	g.GET("/me", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	as := func(id uint64) int {
		tok, err := utils.NewAccessToken("secret", id, "MEMBER", 5)
		if err != nil {
			t.Fatalf("NewAccessToken: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
		return serve(e, req).Code
	}

	if got := as(1); got != http.StatusOK {
		t.Fatalf("user 1 first request = %d", got)
	}
	if got := as(1); got != http.StatusTooManyRequests {
		t.Fatalf("user 1 second request = %d, want 429", got)
	}
	if got := as(2); got != http.StatusOK {
		t.Fatalf("user 2 shares user 1's bucket: %d", got)
	}
}
