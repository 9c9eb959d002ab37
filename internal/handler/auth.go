package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theatre-diary/internal/config"
	"github.com/iliyamo/theatre-diary/internal/model"
	"github.com/iliyamo/theatre-diary/internal/repository"
	"github.com/iliyamo/theatre-diary/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type profileReq struct {
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID          uint64 `json:"id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Email: u.Email, Role: u.Role, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
}

// issue signs an access token, stores a fresh refresh token for u and
// writes both with status.
func (h *AuthHandler) issue(c echo.Context, u model.User, status int) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return internalErr(c, err, "issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return internalErr(c, err, "issue refresh failed")
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return internalErr(c, err, "save refresh failed")
	}
	return c.JSON(status, authResp{
		User:    toUserPart(u),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}

// Register creates a MEMBER account and signs it in.  Admins are promoted
// in the database, never through the API.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return errJSON(c, http.StatusBadRequest, "email/password required")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	uid, err := h.Users.Create(ctx, req.Email, req.Password, model.RoleMember, req.DisplayName, h.Cfg.BcryptCost)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return errJSON(c, http.StatusConflict, "email already exists")
		case errors.Is(err, utils.ErrWeakPassword):
			return errJSON(c, http.StatusBadRequest, "password must be at least "+strconv.Itoa(utils.MinPasswordLen)+" characters")
		}
		return internalErr(c, err, "create user failed")
	}
	return h.issue(c, model.User{
		ID:          uid,
		Email:       req.Email,
		Role:        model.RoleMember,
		DisplayName: strings.TrimSpace(req.DisplayName),
	}, http.StatusCreated)
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return errJSON(c, http.StatusBadRequest, "email/password required")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errJSON(c, http.StatusUnauthorized, "invalid credentials")
		}
		return internalErr(c, err, "query failed")
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return errJSON(c, http.StatusUnauthorized, "invalid credentials")
	}
	return h.issue(c, u, http.StatusOK)
}

// Refresh validates a refresh token, revokes it and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	u, hash, err := h.userForRefresh(c)
	if err != nil || hash == "" {
		return err
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return internalErr(c, err, "revoke refresh failed")
	}
	return h.issue(c, u, http.StatusOK)
}

// RefreshAccess returns a new access token and keeps the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	u, hash, err := h.userForRefresh(c)
	if err != nil || hash == "" {
		return err
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return internalErr(c, err, "issue access failed")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// userForRefresh binds a refresh token and loads its user.  An empty hash
// means the error response was already written.
func (h *AuthHandler) userForRefresh(c echo.Context) (model.User, string, error) {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return model.User{}, "", errJSON(c, http.StatusBadRequest, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := dbCtx(c)
	defer cancel()
	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return model.User{}, "", errJSON(c, http.StatusUnauthorized, "invalid refresh")
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, "", errJSON(c, http.StatusUnauthorized, "invalid refresh")
		}
		return model.User{}, "", internalErr(c, err, "load user failed")
	}
	return u, hash, nil
}

// Logout revokes the refresh token in the body, or every session of the
// bearer when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := dbCtx(c)
	defer cancel()

	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return errJSON(c, http.StatusUnauthorized, "invalid refresh token")
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return internalErr(c, err, "logout failed")
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return errJSON(c, http.StatusBadRequest, "provide Authorization header or refresh_token")
	}
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || uid == 0 {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return internalErr(c, err, "logout failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's account and profile.
func (h *AuthHandler) Me(c echo.Context) error {
	cur, ok := currentUser(c)
	if !ok {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, cur.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errJSON(c, http.StatusNotFound, "user not found")
		}
		return internalErr(c, err, "load user failed")
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}

// UpdateMe changes the public profile shown next to the caller's reviews.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	cur, ok := currentUser(c)
	if !ok {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, cur.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errJSON(c, http.StatusNotFound, "user not found")
		}
		return internalErr(c, err, "load user failed")
	}
	if req.DisplayName != nil {
		u.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.AvatarURL != nil {
		u.AvatarURL = strings.TrimSpace(*req.AvatarURL)
		if u.AvatarURL != "" {
			if pu, err := url.Parse(u.AvatarURL); err != nil || (pu.Scheme != "http" && pu.Scheme != "https") || pu.Host == "" {
				return errJSON(c, http.StatusBadRequest, "avatar_url must be an http(s) URL")
			}
		}
	}
	if err := h.Users.UpdateProfile(ctx, u.ID, u.DisplayName, u.AvatarURL); err != nil {
		return internalErr(c, err, "update profile failed")
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}
