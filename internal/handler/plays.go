package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/text/language"

	"github.com/iliyamo/theatre-diary/internal/classifier"
	"github.com/iliyamo/theatre-diary/internal/model"
	"github.com/iliyamo/theatre-diary/internal/queue"
	"github.com/iliyamo/theatre-diary/internal/repository"
)

// maxPageSize caps ?page_size on the table endpoint.
const maxPageSize = 100

// PlayStore is the record store the play endpoints read and write.
// *repository.PlayRepo implements it.
type PlayStore interface {
	List(ctx context.Context) ([]model.Play, error)
	ListByOwner(ctx context.Context, userID uint64) ([]model.Play, error)
	GetByID(ctx context.Context, id uint64) (*model.Play, error)
	Create(ctx context.Context, p *model.Play) error
	Update(ctx context.Context, p *model.Play) error
	UpdateFraming(ctx context.Context, id uint64, f model.ImageFraming) error
	Delete(ctx context.Context, id uint64) error
}

// PlayHandler serves the diary's play endpoints.  Reads take a fresh
// snapshot from the store on every request and hand it to the classifier.
type PlayHandler struct {
	Plays    PlayStore
	Events   ActivityPublisher // optional
	PageSize int
	Locale   language.Tag
	Location *time.Location // "today" for bucketing; nil means UTC
	Now      func() time.Time
}

// NewPlayHandler wires a handler with default paging, English collation and
// UTC days.
func NewPlayHandler(plays PlayStore, events ActivityPublisher) *PlayHandler {
	return &PlayHandler{
		Plays:    plays,
		Events:   events,
		PageSize: classifier.DefaultPageSize,
		Locale:   language.English,
		Location: time.UTC,
		Now:      time.Now,
	}
}

func (h *PlayHandler) now() time.Time {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

// ----- DTOs -----

// playReq is the body of create, replace and patch.  Nil fields are left
// untouched by PATCH and zeroed by POST/PUT.
type playReq struct {
	Name              *string             `json:"name"`
	Theatre           *string             `json:"theatre"`
	Date              *string             `json:"date"`
	Rating            *string             `json:"rating"`
	IsStandingOvation *bool               `json:"is_standing_ovation"`
	Images            *[]string           `json:"images"`
	Framing           *model.ImageFraming `json:"framing"`
	Quote             *string             `json:"quote"`
	Review            *string             `json:"review"`
	Comments          *string             `json:"comments"`
}

var errNameRequired = errors.New("name required")

// apply copies the request onto p and validates the result.
func (req playReq) apply(p *model.Play) error {
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if p.Name == "" {
		return errNameRequired
	}
	if req.Theatre != nil {
		p.Theatre = strings.TrimSpace(*req.Theatre)
	}
	if req.Date != nil {
		p.Date = time.Time{}
		if s := strings.TrimSpace(*req.Date); s != "" {
			d, err := time.Parse(model.DateLayout, s)
			if err != nil {
				return errors.New("date must be YYYY-MM-DD")
			}
			p.Date = d
		}
	}
	if req.Rating != nil || req.IsStandingOvation != nil {
		raw := ""
		if req.Rating != nil {
			if err := model.ValidateRating(*req.Rating); err != nil {
				return err
			}
			raw = *req.Rating
		} else if p.Rating.Kind == model.Numeric {
			raw = p.Rating.Raw()
		}
		ovation := p.Rating.IsStandingOvation() && req.Rating == nil
		if req.IsStandingOvation != nil {
			ovation = *req.IsStandingOvation
		}
		p.Rating = model.ParseRating(raw, ovation)
	}
	if req.Images != nil {
		slots, err := model.NewImageSlots(*req.Images)
		if err != nil {
			return err
		}
		p.Images = slots
	}
	if req.Framing != nil {
		p.Framing = req.Framing.Clamp()
	}
	if req.Quote != nil {
		p.Quote = *req.Quote
	}
	if req.Review != nil {
		p.Review = *req.Review
	}
	if req.Comments != nil {
		p.Comments = *req.Comments
	}
	return nil
}

type tableResp struct {
	classifier.Page
	SortState classifier.SortState `json:"sort_state"`
}

// ----- reads -----

// List returns every play in store order.
func (h *PlayHandler) List(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	plays, err := h.Plays.List(ctx)
	if err != nil {
		return internalErr(c, err, "list plays failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": plays})
}

// Get returns one play.
func (h *PlayHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid play id")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	p, err := h.Plays.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPlayNotFound) {
			return errJSON(c, http.StatusNotFound, "play not found")
		}
		return internalErr(c, err, "load play failed")
	}
	return c.JSON(http.StatusOK, p)
}

// Buckets classifies all plays, or one owner's with ?owner=ID.
func (h *PlayHandler) Buckets(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	var (
		plays []model.Play
		err   error
	)
	if raw := c.QueryParam("owner"); raw != "" {
		owner, perr := strconv.ParseUint(raw, 10, 64)
		if perr != nil || owner == 0 {
			return errJSON(c, http.StatusBadRequest, "invalid owner")
		}
		plays, err = h.Plays.ListByOwner(ctx, owner)
	} else {
		plays, err = h.Plays.List(ctx)
	}
	if err != nil {
		return internalErr(c, err, "list plays failed")
	}
	return c.JSON(http.StatusOK, classifier.Classify(plays, h.now()))
}

// MyBuckets classifies the caller's own plays.
func (h *PlayHandler) MyBuckets(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	plays, err := h.Plays.ListByOwner(ctx, u.ID)
	if err != nil {
		return internalErr(c, err, "list plays failed")
	}
	return c.JSON(http.StatusOK, classifier.Classify(plays, h.now()))
}

// Table serves the searchable, sortable all-plays table.
//
// Query parameters: q (search), sort and dir (current state), click (a
// header click applied to that state), page (1-based, values below 1 read
// as 1) and page_size.
func (h *PlayHandler) Table(c echo.Context) error {
	state := classifier.DefaultSort()
	if f, ok := classifier.ParseSortField(c.QueryParam("sort")); ok {
		state.Field = f
	}
	if d := c.QueryParam("dir"); d != "" {
		state.Direction = classifier.ParseDirection(d)
	}
	if f, ok := classifier.ParseSortField(c.QueryParam("click")); ok {
		state = state.Toggle(f)
	}

	page := 1
	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return errJSON(c, http.StatusBadRequest, "invalid page")
		}
		page = max(n, 1)
	}
	size := h.PageSize
	if raw := c.QueryParam("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return errJSON(c, http.StatusBadRequest, "invalid page_size")
		}
		size = min(n, maxPageSize)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	plays, err := h.Plays.List(ctx)
	if err != nil {
		return internalErr(c, err, "list plays failed")
	}

	res := classifier.SearchSortPaginate(plays, classifier.Query{
		Text:     strings.TrimSpace(c.QueryParam("q")),
		Sort:     state,
		Page:     page,
		PageSize: size,
		Locale:   h.Locale,
	})
	return c.JSON(http.StatusOK, tableResp{Page: res, SortState: state})
}

// Calendar lists plays per day for ?month=YYYY-MM, defaulting to the
// current month.
func (h *PlayHandler) Calendar(c echo.Context) error {
	now := h.now()
	year, month := now.Year(), now.Month()
	if raw := c.QueryParam("month"); raw != "" {
		m, err := time.Parse("2006-01", raw)
		if err != nil {
			return errJSON(c, http.StatusBadRequest, "month must be YYYY-MM")
		}
		year, month = m.Year(), m.Month()
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	plays, err := h.Plays.List(ctx)
	if err != nil {
		return internalErr(c, err, "list plays failed")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"month": time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01"),
		"days":  classifier.MonthView(plays, year, month),
	})
}

// ----- writes -----

// Create logs a new play owned by the caller.
func (h *PlayHandler) Create(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	var req playReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid body")
	}
	p := model.Play{UserID: u.ID, Framing: model.DefaultFraming()}
	if err := req.apply(&p); err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Plays.Create(ctx, &p); err != nil {
		return internalErr(c, err, "create play failed")
	}
	publish(c, h.Events, queue.NewActivityEvent(queue.PlayCreated, u.ID, p.ID, p.Name))
	return c.JSON(http.StatusCreated, p)
}

// Replace (PUT) overwrites every editable field.
func (h *PlayHandler) Replace(c echo.Context) error { return h.update(c, false) }

// Patch (PATCH) changes only the fields present in the body.
func (h *PlayHandler) Patch(c echo.Context) error { return h.update(c, true) }

func (h *PlayHandler) update(c echo.Context, partial bool) error {
	var req playReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	u, cur, err := h.loadEditable(ctx, c)
	if err != nil || cur == nil {
		return err
	}

	p := *cur
	if !partial {
		p = model.Play{ID: cur.ID, UserID: cur.UserID, Framing: model.DefaultFraming(), CreatedAt: cur.CreatedAt}
	}
	if err := req.apply(&p); err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}
	if err := h.Plays.Update(ctx, &p); err != nil {
		if errors.Is(err, repository.ErrPlayNotFound) {
			return errJSON(c, http.StatusNotFound, "play not found")
		}
		return internalErr(c, err, "update play failed")
	}
	publish(c, h.Events, queue.NewActivityEvent(queue.PlayUpdated, u.ID, p.ID, p.Name))
	return c.JSON(http.StatusOK, p)
}

// UpdateFraming stores the zoom and offset of the primary image.  Values
// are clamped rather than rejected.
func (h *PlayHandler) UpdateFraming(c echo.Context) error {
	var f model.ImageFraming
	if err := c.Bind(&f); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid body")
	}
	if f.Zoom == 0 {
		f.Zoom = model.MinZoom
	}
	f = f.Clamp()

	ctx, cancel := dbCtx(c)
	defer cancel()
	u, cur, err := h.loadEditable(ctx, c)
	if err != nil || cur == nil {
		return err
	}
	if err := h.Plays.UpdateFraming(ctx, cur.ID, f); err != nil {
		if errors.Is(err, repository.ErrPlayNotFound) {
			return errJSON(c, http.StatusNotFound, "play not found")
		}
		return internalErr(c, err, "update framing failed")
	}
	publish(c, h.Events, queue.NewActivityEvent(queue.FramingChanged, u.ID, cur.ID, cur.Name))
	return c.JSON(http.StatusOK, echo.Map{"id": cur.ID, "framing": f})
}

// Delete removes a play and its reviews.
func (h *PlayHandler) Delete(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	u, cur, err := h.loadEditable(ctx, c)
	if err != nil || cur == nil {
		return err
	}
	if err := h.Plays.Delete(ctx, cur.ID); err != nil {
		if errors.Is(err, repository.ErrPlayNotFound) {
			return errJSON(c, http.StatusNotFound, "play not found")
		}
		return internalErr(c, err, "delete play failed")
	}
	publish(c, h.Events, queue.NewActivityEvent(queue.PlayDeleted, u.ID, cur.ID, cur.Name))
	return c.NoContent(http.StatusNoContent)
}

// loadEditable fetches the play named by :id and checks the caller may edit
// it.  When the returned play is nil the response has already been written
// and err is what the handler should return.
func (h *PlayHandler) loadEditable(ctx context.Context, c echo.Context) (model.User, *model.Play, error) {
	u, ok := currentUser(c)
	if !ok {
		return u, nil, errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := pathID(c, "id")
	if !ok {
		return u, nil, errJSON(c, http.StatusBadRequest, "invalid play id")
	}
	p, err := h.Plays.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPlayNotFound) {
			return u, nil, errJSON(c, http.StatusNotFound, "play not found")
		}
		return u, nil, internalErr(c, err, "load play failed")
	}
	if !u.CanEdit(p.UserID) {
		return u, nil, errJSON(c, http.StatusForbidden, repository.ErrForbidden.Error())
	}
	return u, p, nil
}
