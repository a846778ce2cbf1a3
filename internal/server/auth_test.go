package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/NabidKabir/kura-final-project/internal/store"
)

func setupAuthHandler(t *testing.T) (*AuthHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	h := &AuthHandler{Store: &store.Store{DB: db}, Secret: []byte("test-secret")}
	return h, mock, func() { db.Close() }
}

func postJSON(path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestSignupCreatesUser(t *testing.T) {
	h, mock, cleanup := setupAuthHandler(t)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("kura@example.com", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ctx, rec := postJSON("/api/auth/signup", `{"email":"kura@example.com","password":"password123"}`)
	if err := h.signup(ctx); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSignupRejectsShortPassword(t *testing.T) {
	h, _, cleanup := setupAuthHandler(t)
	defer cleanup()

	ctx, _ := postJSON("/api/auth/signup", `{"email":"kura@example.com","password":"short"}`)
	err := h.signup(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	h, mock, cleanup := setupAuthHandler(t)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("kura@example.com", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	ctx, _ := postJSON("/api/auth/signup", `{"email":"kura@example.com","password":"password123"}`)
	err := h.signup(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestLoginIssuesTokenAndCookie(t *testing.T) {
	h, mock, cleanup := setupAuthHandler(t)
	defer cleanup()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	mock.ExpectQuery(`SELECT id, password_hash FROM users WHERE email=\$1`).
		WithArgs("kura@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("user-1", string(hash)))

	ctx, rec := postJSON("/api/auth/login", `{"email":"kura@example.com","password":"password123"}`)
	if err := h.login(ctx); err != nil {
		t.Fatalf("login: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token in the response body")
	}

	var authCookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "auth" {
			authCookie = ck
		}
	}
	if authCookie == nil || authCookie.Value != resp.Token {
		t.Fatalf("expected auth cookie carrying the token, got %+v", authCookie)
	}
	if !authCookie.HttpOnly {
		t.Fatal("expected HttpOnly auth cookie")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h, mock, cleanup := setupAuthHandler(t)
	defer cleanup()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	mock.ExpectQuery(`SELECT id, password_hash FROM users WHERE email=\$1`).
		WithArgs("kura@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("user-1", string(hash)))

	ctx, _ := postJSON("/api/auth/login", `{"email":"kura@example.com","password":"wrong-password"}`)
	err = h.login(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	h, mock, cleanup := setupAuthHandler(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT id, password_hash FROM users WHERE email=\$1`).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	ctx, _ := postJSON("/api/auth/login", `{"email":"nobody@example.com","password":"password123"}`)
	err := h.login(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}
