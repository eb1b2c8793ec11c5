package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/shop-admin/backend/internal/blacklist"
	"github.com/shop-admin/backend/internal/config"
	"github.com/shop-admin/backend/internal/model"
	"github.com/shop-admin/backend/internal/service"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type stubSessionRepo struct {
	user   *model.User
	tokens map[string]*model.RefreshToken
}

func newStubSessionRepo(t *testing.T) *stubSessionRepo {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	return &stubSessionRepo{
		user:   &model.User{ID: 17, Identifier: "0901234567", PasswordHash: string(hash), RoleID: 2},
		tokens: map[string]*model.RefreshToken{},
	}
}

func (s *stubSessionRepo) GetUserByIdentifier(_ context.Context, identifier string) (*model.User, error) {
	if s.user != nil && s.user.Identifier == identifier {
		return s.user, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *stubSessionRepo) GetUserByID(_ context.Context, userID int64) (*model.User, error) {
	if s.user != nil && s.user.ID == userID {
		return s.user, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *stubSessionRepo) CreateUser(_ context.Context, identifier, passwordHash string, roleID int) (*model.User, error) {
	s.user = &model.User{ID: 1, Identifier: identifier, PasswordHash: passwordHash, RoleID: roleID}
	return s.user, nil
}

func (s *stubSessionRepo) InsertRefreshToken(_ context.Context, userID int64, tokenHash string, _ model.RequestMeta, expiresAt time.Time) error {
	s.tokens[tokenHash] = &model.RefreshToken{ID: int64(len(s.tokens) + 1), UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}
	return nil
}

func (s *stubSessionRepo) GetRefreshTokenByHash(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	token, ok := s.tokens[tokenHash]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return token, nil
}

func (s *stubSessionRepo) TouchRefreshToken(_ context.Context, _ int64) error { return nil }

func (s *stubSessionRepo) RevokeRefreshTokenByHash(_ context.Context, tokenHash string) error {
	if token, ok := s.tokens[tokenHash]; ok && token.RevokedAt == nil {
		now := time.Now()
		token.RevokedAt = &now
	}
	return nil
}

func (s *stubSessionRepo) RevokeAllRefreshTokens(_ context.Context, userID int64) error {
	now := time.Now()
	for _, token := range s.tokens {
		if token.UserID == userID && token.RevokedAt == nil {
			token.RevokedAt = &now
		}
	}
	return nil
}

func (s *stubSessionRepo) RotateRefreshToken(_ context.Context, oldTokenID int64, userID int64, newTokenHash string, _ model.RequestMeta, newExpiresAt time.Time) error {
	now := time.Now()
	for _, token := range s.tokens {
		if token.ID == oldTokenID && token.RevokedAt == nil {
			token.RevokedAt = &now
		}
	}
	s.tokens[newTokenHash] = &model.RefreshToken{ID: int64(len(s.tokens) + 1), UserID: userID, TokenHash: newTokenHash, ExpiresAt: newExpiresAt}
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *stubSessionRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.AuthConfig{
		JWTSecret:     "test-secret",
		AccessTTL:     "30m",
		AccessTTLLong: "2h",
		RefreshTTL:    "720h",
	}

	codec, err := service.NewTokenCodec(cfg)
	if err != nil {
		t.Fatalf("codec init failed: %v", err)
	}

	repo := newStubSessionRepo(t)
	svc, err := service.NewAuthService(repo, codec, blacklist.NewMemory(), zap.NewNop(), cfg)
	if err != nil {
		t.Fatalf("service init failed: %v", err)
	}

	h := NewAuthHandler(svc)
	r := gin.New()
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/refresh", h.Refresh)
	authed := r.Group("", AuthMiddleware(svc))
	authed.GET("/api/auth/check", h.Check)
	authed.POST("/api/auth/logout", h.Logout)
	authed.POST("/api/auth/logout-all", h.LogoutAll)

	return r, repo
}

func doJSON(r *gin.Engine, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	r.ServeHTTP(w, req)
	return w
}

func TestLoginSetsCookiesAndReturnsUser(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/api/auth/login", `{"identifier":"0901234567","password":"secret1"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ErrCode int    `json:"errCode"`
		Token   string `json:"token"`
		Data    struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.ErrCode != 0 || resp.Token == "" {
		t.Fatalf("expected errCode 0 with token, got %+v", resp)
	}
	if resp.Data.ID != 17 {
		t.Fatalf("expected stored user id 17, got %d", resp.Data.ID)
	}

	cookies := w.Header().Values("Set-Cookie")
	for _, name := range []string{service.AccessCookieName, service.RefreshCookieName, service.FlagCookieName} {
		found := false
		for _, cookie := range cookies {
			if strings.HasPrefix(cookie, name+"=") {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing Set-Cookie for %s: %v", name, cookies)
		}
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/api/auth/login", `{"identifier":"0901234567","password":"not-the-one"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/api/auth/login", `not-json`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

// After logout the same access token must be rejected: it is blacklisted
// even though its signature is still valid.
func TestLogoutRevokesAccessToken(t *testing.T) {
	r, _ := newTestRouter(t)

	login := doJSON(r, http.MethodPost, "/api/auth/login", `{"identifier":"0901234567","password":"secret1"}`, nil)
	if login.Code != http.StatusOK {
		t.Fatalf("login failed: %d", login.Code)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(login.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad login body: %v", err)
	}

	bearer := http.Header{"Authorization": []string{"Bearer " + resp.Token}}

	check := doJSON(r, http.MethodGet, "/api/auth/check", "", bearer)
	if check.Code != http.StatusOK {
		t.Fatalf("expected 200 before logout, got %d", check.Code)
	}

	logout := doJSON(r, http.MethodPost, "/api/auth/logout", "", bearer)
	if logout.Code != http.StatusOK {
		t.Fatalf("logout failed: %d", logout.Code)
	}

	again := doJSON(r, http.MethodGet, "/api/auth/check", "", bearer)
	if again.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", again.Code)
	}
	if !strings.Contains(again.Body.String(), "revoked") {
		t.Fatalf("expected revoked message, got %s", again.Body.String())
	}
}

func TestCheckAcceptsAccessTokenCookie(t *testing.T) {
	r, _ := newTestRouter(t)

	login := doJSON(r, http.MethodPost, "/api/auth/login", `{"identifier":"0901234567","password":"secret1"}`, nil)
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(login.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad login body: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
	req.AddCookie(&http.Cookie{Name: service.AccessCookieName, Value: resp.Token})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with cookie auth, got %d", w.Code)
	}
	var check struct {
		Data struct {
			IsAuthenticated bool `json:"isAuthenticated"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &check); err != nil || !check.Data.IsAuthenticated {
		t.Fatalf("expected isAuthenticated=true, got %s", w.Body.String())
	}
}

func TestCheckWithoutTokenFails(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(r, http.MethodGet, "/api/auth/check", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRefreshRotatesCookieChain(t *testing.T) {
	r, repo := newTestRouter(t)

	login := doJSON(r, http.MethodPost, "/api/auth/login", `{"identifier":"0901234567","password":"secret1"}`, nil)
	refreshCookie := extractCookie(t, login, service.RefreshCookieName)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(refreshCookie)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Single-use chain: the old refresh cookie must now be rejected.
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req2.AddCookie(refreshCookie)
	r.ServeHTTP(w2, req2)
	if w2.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on replayed refresh, got %d", w2.Code)
	}

	active := 0
	for _, token := range repo.tokens {
		if token.RevokedAt == nil {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly 1 active refresh row, got %d", active)
	}
}

func extractCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	res := http.Response{Header: w.Header()}
	for _, cookie := range res.Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}
