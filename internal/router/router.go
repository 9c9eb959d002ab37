// Package router wires handlers and middleware onto the echo instance.
// Routes are split by audience: public reads, auth, and member writes.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/theatre-diary/internal/config"
	"github.com/iliyamo/theatre-diary/internal/handler"
	"github.com/iliyamo/theatre-diary/internal/middleware"
	"github.com/iliyamo/theatre-diary/internal/model"
)

// Deps is everything the routes need.  Redis may be nil, in which case the
// response cache and rate limiters are skipped.  The global limiter keys on
// IP and route only; member routes get a second, per-user limiter after
// JWTAuth when the strategy asks for one.
type Deps struct {
	Logger    zerolog.Logger
	JWTSecret string
	DB        handler.Pinger
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig

	Auth    *handler.AuthHandler
	Plays   *handler.PlayHandler
	Reviews *handler.ReviewHandler
}

// Register installs global middleware and every route.
func Register(e *echo.Echo, d Deps) {
	e.Use(
		middleware.RequestLogger(d.Logger),
		middleware.Recover(),
		middleware.NewTokenBucket(d.RateLimit.Anonymous(), d.Redis),
	)

	RegisterRoutes(e, d.DB)
	RegisterAuth(e, d.Auth)
	RegisterPublic(e, d.Plays, d.Reviews, middleware.NewRedisCache(d.Cache, d.Redis))

	member := e.Group("/v1",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleMember, model.RoleAdmin),
		middleware.NewTokenBucket(d.RateLimit.Members(), d.Redis),
		middleware.InvalidateOnWrite(d.Cache, d.Redis),
	)
	RegisterMember(member, d.Auth, d.Plays, d.Reviews)
}

// RegisterRoutes registers routes that need neither a session nor caching.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the session endpoints under /v1/auth.  None of them
// require an access token; logout accepts either a refresh token or a
// bearer.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)
}

// RegisterPublic registers the read-only diary endpoints.  Each goes through
// the response cache.
func RegisterPublic(e *echo.Echo, p *handler.PlayHandler, r *handler.ReviewHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/plays", p.List, cache)
	e.GET("/v1/plays/buckets", p.Buckets, cache)
	e.GET("/v1/plays/table", p.Table, cache)
	e.GET("/v1/plays/calendar", p.Calendar, cache)
	e.GET("/v1/plays/:id", p.Get, cache)
	e.GET("/v1/plays/:id/reviews", r.List, cache)
}

// RegisterMember registers endpoints for signed-in members on g, which must
// already carry JWT and role middleware.
func RegisterMember(g *echo.Group, a *handler.AuthHandler, p *handler.PlayHandler, r *handler.ReviewHandler) {
	g.GET("/me", a.Me)
	g.PATCH("/me", a.UpdateMe)
	g.GET("/my/plays/buckets", p.MyBuckets)

	g.POST("/plays", p.Create)
	g.PUT("/plays/:id", p.Replace)
	g.PATCH("/plays/:id", p.Patch)
	g.DELETE("/plays/:id", p.Delete)
	g.PATCH("/plays/:id/framing", p.UpdateFraming)

	g.POST("/plays/:id/reviews", r.Create)
	g.PUT("/reviews/:id", r.Update)
}
