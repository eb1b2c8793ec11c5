package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shop-admin/backend/internal/blacklist"
	"github.com/shop-admin/backend/internal/config"
	"github.com/shop-admin/backend/internal/db"
	"github.com/shop-admin/backend/internal/model"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	AccessCookieName  = "authToken"
	RefreshCookieName = "refreshToken"
	FlagCookieName    = "authFlag"
	FlagCookieValue   = "authenticated"

	minIdentifierLength = 3
	minPasswordLength   = 6

	insertRetryAttempts = 3
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrMisconfigured = errors.New("auth config invalid")
)

type CookieConfig struct {
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// sessionRepo is the slice of db.Postgres the session orchestrator needs.
type sessionRepo interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	CreateUser(ctx context.Context, identifier, passwordHash string, roleID int) (*model.User, error)
	InsertRefreshToken(ctx context.Context, userID int64, tokenHash string, meta model.RequestMeta, expiresAt time.Time) error
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	TouchRefreshToken(ctx context.Context, tokenID int64) error
	RevokeRefreshTokenByHash(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, userID int64) error
	RotateRefreshToken(ctx context.Context, oldTokenID int64, userID int64, newTokenHash string, meta model.RequestMeta, newExpiresAt time.Time) error
}

// AuthService composes the token codec, the blacklist and the refresh-token
// store into the session lifecycle: login, refresh, logout, logout-all.
type AuthService struct {
	repo          sessionRepo
	codec         *TokenCodec
	revoked       blacklist.Store
	log           *zap.Logger
	accessTTL     time.Duration
	accessTTLLong time.Duration
	refreshTTL    time.Duration
	cookieCfg     CookieConfig
}

type SessionTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	User         *model.User
}

func NewAuthService(repo sessionRepo, codec *TokenCodec, revoked blacklist.Store, log *zap.Logger, cfg config.AuthConfig) (*AuthService, error) {
	accessTTL, err := time.ParseDuration(cfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWT_ACCESS_TTL", ErrMisconfigured)
	}

	accessTTLLong, err := time.ParseDuration(cfg.AccessTTLLong)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWT_ACCESS_TTL_LONG", ErrMisconfigured)
	}

	refreshTTL, err := time.ParseDuration(cfg.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWT_REFRESH_TTL", ErrMisconfigured)
	}

	cookieSecure, err := parseBool(cfg.CookieSecure, false)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SECURE", ErrMisconfigured)
	}

	cookieSameSite, err := parseSameSite(cfg.CookieSameSite)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SAMESITE", ErrMisconfigured)
	}

	if cookieSameSite == http.SameSiteNoneMode && !cookieSecure {
		return nil, fmt.Errorf("%w: SameSite=None requires Secure cookie", ErrMisconfigured)
	}

	return &AuthService{
		repo:          repo,
		codec:         codec,
		revoked:       revoked,
		log:           log,
		accessTTL:     accessTTL,
		accessTTLLong: accessTTLLong,
		refreshTTL:    refreshTTL,
		cookieCfg: CookieConfig{
			Path:     "/",
			Domain:   cfg.CookieDomain,
			Secure:   cookieSecure,
			SameSite: cookieSameSite,
		},
	}, nil
}

func (s *AuthService) CookieConfig() CookieConfig {
	return s.cookieCfg
}

func (s *AuthService) AccessCookieMaxAge(rememberMe bool) int {
	return int(s.accessTTLFor(rememberMe).Seconds())
}

func (s *AuthService) RefreshCookieMaxAge() int {
	return int(s.refreshTTL.Seconds())
}

// EnsureAdmin seeds the first admin account from env on boot. A no-op when
// the identifier already exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, identifier, password string) error {
	if strings.TrimSpace(identifier) == "" || strings.TrimSpace(password) == "" {
		return nil
	}

	_, err := s.repo.GetUserByIdentifier(ctx, identifier)
	if err == nil {
		return nil
	}
	if !db.IsNoRows(err) {
		return err
	}

	if err := validateCredentials(identifier, password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = s.repo.CreateUser(ctx, identifier, string(hash), 1)
	return err
}

// Login moves a session from Anonymous to Authenticated. rememberMe stretches
// the access-token lifetime; the refresh token lifetime is fixed.
func (s *AuthService) Login(ctx context.Context, identifier, password string, rememberMe bool, meta model.RequestMeta) (*SessionTokens, error) {
	if err := validateCredentials(identifier, password); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrUnauthorized
	}

	return s.issueSession(ctx, user, rememberMe, meta)
}

// Refresh rotates the refresh token and mints a new access token. The old
// refresh token is single-use: any later presentation fails validation.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta model.RequestMeta) (*SessionTokens, error) {
	record, err := s.validateRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, record.UserID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	newRefreshToken, err := s.codec.IssueRefreshToken(user, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RotateRefreshToken(ctx, record.ID, record.UserID, hashToken(newRefreshToken), meta, time.Now().Add(s.refreshTTL)); err != nil {
		return nil, err
	}

	accessToken, expiresIn, err := s.codec.IssueAccessToken(user, s.accessTTL)
	if err != nil {
		return nil, err
	}

	return &SessionTokens{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresIn:    expiresIn,
		User:         user,
	}, nil
}

// Logout blacklists the presented access token for its remaining lifetime and
// revokes the presented refresh token. Idempotent; never fails the client for
// a token that is already gone.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken != "" {
		if err := s.revoked.Add(ctx, accessToken, s.codec.AccessTokenRemaining(accessToken)); err != nil {
			s.log.Error("failed to blacklist access token", zap.Error(err))
			return err
		}
	}

	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.repo.RevokeRefreshTokenByHash(ctx, hashToken(refreshToken))
}

// LogoutAll revokes every refresh token the user owns, independent of which
// session initiated it, then performs a normal logout for the caller.
func (s *AuthService) LogoutAll(ctx context.Context, userID int64, accessToken, refreshToken string) error {
	if err := s.repo.RevokeAllRefreshTokens(ctx, userID); err != nil {
		return err
	}
	return s.Logout(ctx, accessToken, refreshToken)
}

// ValidateAccess verifies the signature and consults the blacklist. Both
// failure modes surface as the same ErrUnauthorized.
func (s *AuthService) ValidateAccess(ctx context.Context, tokenStr string) (*model.AuthUser, error) {
	user, err := s.codec.VerifyAccessToken(tokenStr)
	if err != nil {
		return nil, ErrUnauthorized
	}

	revoked, err := s.revoked.Contains(ctx, tokenStr)
	if err != nil {
		s.log.Error("blacklist lookup failed", zap.Error(err))
		return nil, err
	}
	if revoked {
		return nil, ErrUnauthorized
	}

	return user, nil
}

func (s *AuthService) issueSession(ctx context.Context, user *model.User, rememberMe bool, meta model.RequestMeta) (*SessionTokens, error) {
	accessToken, expiresIn, err := s.codec.IssueAccessToken(user, s.accessTTLFor(rememberMe))
	if err != nil {
		return nil, err
	}

	// A duplicate token hash collides with the unique constraint; regenerate
	// and retry a bounded number of times before giving up.
	var refreshToken string
	err = retryBounded(insertRetryAttempts, func() error {
		token, issueErr := s.codec.IssueRefreshToken(user, s.refreshTTL)
		if issueErr != nil {
			return issueErr
		}
		if insertErr := s.repo.InsertRefreshToken(ctx, user.ID, hashToken(token), meta, time.Now().Add(s.refreshTTL)); insertErr != nil {
			return insertErr
		}
		refreshToken = token
		return nil
	}, db.IsUniqueViolation)
	if err != nil {
		if errors.Is(err, ErrRetryExhausted) {
			s.log.Error("refresh token insert exhausted retries", zap.Int64("userId", user.ID), zap.Error(err))
		}
		return nil, err
	}

	return &SessionTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		User:         user,
	}, nil
}

// validateRefresh composes signature check, row lookup, revoked/expiry check
// and the last_used_at touch. Every failure collapses to ErrUnauthorized.
func (s *AuthService) validateRefresh(ctx context.Context, refreshToken string) (*model.RefreshToken, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrUnauthorized
	}

	if _, err := s.codec.VerifyRefreshToken(refreshToken); err != nil {
		return nil, ErrUnauthorized
	}

	record, err := s.repo.GetRefreshTokenByHash(ctx, hashToken(refreshToken))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	if record.RevokedAt != nil || time.Now().After(record.ExpiresAt) {
		return nil, ErrUnauthorized
	}

	if err := s.repo.TouchRefreshToken(ctx, record.ID); err != nil {
		s.log.Warn("failed to touch refresh token", zap.Int64("tokenId", record.ID), zap.Error(err))
	}

	return record, nil
}

func (s *AuthService) accessTTLFor(rememberMe bool) time.Duration {
	if rememberMe {
		return s.accessTTLLong
	}
	return s.accessTTL
}

func validateCredentials(identifier, password string) error {
	identifier = strings.TrimSpace(identifier)
	password = strings.TrimSpace(password)

	if len(identifier) < minIdentifierLength || len(identifier) > 64 {
		return ErrInvalidInput
	}
	if len(password) < minPasswordLength || len(password) > 128 {
		return ErrInvalidInput
	}
	return nil
}

func parseBool(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, err
	}
	return parsed, nil
}

func parseSameSite(value string) (http.SameSite, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return http.SameSiteLaxMode, nil
	}
	switch value {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, ErrInvalidInput
	}
}

// Opaque tokens are stored hashed; a leaked table cannot be replayed.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// newOpaqueToken returns a random url-safe bearer string.
func newOpaqueToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
