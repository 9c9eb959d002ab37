package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theatre-diary/internal/model"
	"github.com/iliyamo/theatre-diary/internal/queue"
	"github.com/iliyamo/theatre-diary/internal/repository"
)

// ReviewStore persists reviews.  *repository.ReviewRepo implements it.
type ReviewStore interface {
	ListByPlay(ctx context.Context, playID uint64) ([]model.Review, error)
	GetByID(ctx context.Context, id uint64) (*model.Review, error)
	Create(ctx context.Context, playID, userID uint64, content, quote string) (*model.Review, error)
	Update(ctx context.Context, id uint64, content, quote string) (*model.Review, error)
}

// ReviewHandler serves reviews attached to plays.
type ReviewHandler struct {
	Plays   PlayStore
	Reviews ReviewStore
	Events  ActivityPublisher // optional
}

func NewReviewHandler(plays PlayStore, reviews ReviewStore, events ActivityPublisher) *ReviewHandler {
	return &ReviewHandler{Plays: plays, Reviews: reviews, Events: events}
}

type reviewReq struct {
	Content string `json:"content"`
	Quote   string `json:"quote"`
}

// List returns a play's reviews, newest first.
func (h *ReviewHandler) List(c echo.Context) error {
	playID, ok := pathID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid play id")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	if _, err := h.Plays.GetByID(ctx, playID); err != nil {
		if errors.Is(err, repository.ErrPlayNotFound) {
			return errJSON(c, http.StatusNotFound, "play not found")
		}
		return internalErr(c, err, "load play failed")
	}
	items, err := h.Reviews.ListByPlay(ctx, playID)
	if err != nil {
		return internalErr(c, err, "list reviews failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Create posts the caller's review of a play.  Any member may review any
// play; one review per member and play.
func (h *ReviewHandler) Create(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	playID, ok := pathID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid play id")
	}
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Content) == "" {
		return errJSON(c, http.StatusBadRequest, "content required")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	p, err := h.Plays.GetByID(ctx, playID)
	if err != nil {
		if errors.Is(err, repository.ErrPlayNotFound) {
			return errJSON(c, http.StatusNotFound, "play not found")
		}
		return internalErr(c, err, "load play failed")
	}
	rv, err := h.Reviews.Create(ctx, playID, u.ID, req.Content, strings.TrimSpace(req.Quote))
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return errJSON(c, http.StatusConflict, "review already exists")
		}
		return internalErr(c, err, "create review failed")
	}

	ev := queue.NewActivityEvent(queue.ReviewPosted, u.ID, playID, p.Name)
	ev.ReviewID = rv.ID
	publish(c, h.Events, ev)
	return c.JSON(http.StatusCreated, rv)
}

// Update edits a review.  Only its author or an admin may do so.
func (h *ReviewHandler) Update(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := pathID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid review id")
	}
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Content) == "" {
		return errJSON(c, http.StatusBadRequest, "content required")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	cur, err := h.Reviews.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReviewNotFound) {
			return errJSON(c, http.StatusNotFound, "review not found")
		}
		return internalErr(c, err, "load review failed")
	}
	if !u.CanEdit(cur.UserID) {
		return errJSON(c, http.StatusForbidden, repository.ErrForbidden.Error())
	}
	rv, err := h.Reviews.Update(ctx, id, req.Content, strings.TrimSpace(req.Quote))
	if err != nil {
		if errors.Is(err, repository.ErrReviewNotFound) {
			return errJSON(c, http.StatusNotFound, "review not found")
		}
		return internalErr(c, err, "update review failed")
	}

	playName := ""
	if p, err := h.Plays.GetByID(ctx, rv.PlayID); err == nil {
		playName = p.Name
	}
	ev := queue.NewActivityEvent(queue.ReviewEdited, u.ID, rv.PlayID, playName)
	ev.ReviewID = rv.ID
	publish(c, h.Events, ev)
	return c.JSON(http.StatusOK, rv)
}
