package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/theatre-diary/internal/middleware"
	"github.com/iliyamo/theatre-diary/internal/model"
	"github.com/iliyamo/theatre-diary/internal/queue"
)

// dbTimeout bounds every store call made while serving a request.
const dbTimeout = 5 * time.Second

// ActivityPublisher receives an event after each successful write.
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, ev queue.ActivityEvent) error
}

func dbCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// currentUser rebuilds the caller from the claims JWTAuth stored.  Role is
// all CanEdit needs, so the users table is not consulted.
func currentUser(c echo.Context) (model.User, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		return model.User{}, false
	}
	return model.User{ID: id, Role: middleware.Role(c)}, true
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func errJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"error": msg})
}

// internalErr logs err with the request logger and hides it from the client.
func internalErr(c echo.Context, err error, msg string) error {
	log.Ctx(c.Request().Context()).Error().Err(err).Msg(msg)
	return errJSON(c, http.StatusInternalServerError, msg)
}

// publish hands ev to p without blocking the response.  Failures are logged
// by the publisher and otherwise ignored.
func publish(c echo.Context, p ActivityPublisher, ev queue.ActivityEvent) {
	if p == nil {
		return
	}
	ctx := context.WithoutCancel(c.Request().Context())
	go func() { _ = p.PublishActivity(ctx, ev) }()
}
