package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/theatre-diary/internal/config"
	"github.com/iliyamo/theatre-diary/internal/model"
	"github.com/iliyamo/theatre-diary/internal/repository"
	"github.com/iliyamo/theatre-diary/internal/utils"
)

var userCols = []string{"id", "email", "password_hash", "role", "display_name", "avatar_url", "is_active", "created_at", "updated_at"}

func newAuthServer(t *testing.T) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{JWTSecret: "secret", AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: bcrypt.MinCost}
	h := NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db))

	e := echo.New()
	e.POST("/v1/auth/register", h.Register)
	e.POST("/v1/auth/login", h.Login)
	e.POST("/v1/auth/logout", h.Logout)
	me := e.Group("/v1", asUser(9, model.RoleMember))
	me.GET("/me", h.Me)
	me.PATCH("/me", h.UpdateMe)
	return e, mock
}

func TestRegisterIssuesTokens(t *testing.T) {
	e, mock := newAuthServer(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("ada@example.com", sqlmock.AnyArg(), model.RoleMember, "Ada").
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WithArgs(uint64(9), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := doJSON(e, http.MethodPost, "/v1/auth/register", `{"email":"Ada@example.com","password":"long enough","display_name":"Ada"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got authResp
	decode(t, rec, &got)
	if got.User.Role != model.RoleMember || got.User.DisplayName != "Ada" || got.Access.Token == "" || got.Refresh.Token == "" {
		t.Fatalf("unexpected response: %+v", got)
	}
	if _, err := utils.ParseAccessToken("secret", got.Access.Token); err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	e, _ := newAuthServer(t)
	rec := doJSON(e, http.MethodPost, "/v1/auth/register", `{"email":"ada@example.com","password":"short"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("long enough"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	now := time.Now()

	tests := []struct {
		name     string
		password string
		active   bool
		noUser   bool
		want     int
	}{
		{name: "ok", password: "long enough", active: true, want: http.StatusOK},
		{name: "wrong password", password: "not it at all", active: true, want: http.StatusUnauthorized},
		{name: "inactive", password: "long enough", active: false, want: http.StatusUnauthorized},
		{name: "unknown", password: "long enough", noUser: true, want: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			e, mock := newAuthServer(t)
			q := mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).WithArgs("ada@example.com")
			if tc.noUser {
				q.WillReturnError(sql.ErrNoRows)
			} else {
				q.WillReturnRows(sqlmock.NewRows(userCols).
					AddRow(uint64(9), "ada@example.com", string(hash), model.RoleMember, nil, nil, tc.active, now, now))
			}
			if tc.want == http.StatusOK {
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).WillReturnResult(sqlmock.NewResult(1, 1))
			}

			rec := doJSON(e, http.MethodPost, "/v1/auth/login", `{"email":"ada@example.com","password":"`+tc.password+`"}`)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestLogoutRevokesAllForBearer(t *testing.T) {
	e, mock := newAuthServer(t)
	tok, err := utils.NewAccessToken("secret", 9, model.RoleMember, 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=?")).
		WithArgs(uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	if rec := doJSON(e, http.MethodPost, "/v1/auth/logout", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("no credentials status = %d", rec.Code)
	}
}

func TestMeAndUpdateProfile(t *testing.T) {
	e, mock := newAuthServer(t)
	now := time.Now()
	row := func() *sqlmock.Rows {
		return sqlmock.NewRows(userCols).
			AddRow(uint64(9), "ada@example.com", "h", model.RoleMember, "Ada", nil, true, now, now)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).WithArgs(uint64(9)).WillReturnRows(row())
	rec := doJSON(e, http.MethodGet, "/v1/me", "")
	var got userPart
	decode(t, rec, &got)
	if got.ID != 9 || got.DisplayName != "Ada" {
		t.Fatalf("unexpected me: %+v", got)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).WithArgs(uint64(9)).WillReturnRows(row())
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET display_name=?")).
		WithArgs("Ada L.", "https://img.example/ada.png", uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	rec = doJSON(e, http.MethodPatch, "/v1/me", `{"display_name":"Ada L.","avatar_url":"https://img.example/ada.png"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).WithArgs(uint64(9)).WillReturnRows(row())
	if rec := doJSON(e, http.MethodPatch, "/v1/me", `{"avatar_url":"javascript:alert(1)"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad avatar status = %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name string
		db   Pinger
		want int
	}{
		{"no db", nil, http.StatusOK},
		{"db up", stubPinger{}, http.StatusOK},
		{"db down", stubPinger{err: errors.New("down")}, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/healthz", Health(tc.db))
			if rec := doJSON(e, http.MethodGet, "/healthz", ""); rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
