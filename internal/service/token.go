package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shop-admin/backend/internal/config"
	"github.com/shop-admin/backend/internal/model"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type accessClaims struct {
	RoleID    int    `json:"roleId"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies access and refresh tokens. Stateless; all
// revocation state lives in the blacklist and the refresh-token table.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
}

func NewTokenCodec(cfg config.AuthConfig) (*TokenCodec, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET is required", ErrMisconfigured)
	}

	refreshSecret := cfg.JWTRefreshSecret
	if refreshSecret == "" {
		refreshSecret = cfg.JWTSecret
	}

	return &TokenCodec{
		accessSecret:  []byte(cfg.JWTSecret),
		refreshSecret: []byte(refreshSecret),
	}, nil
}

func (tc *TokenCodec) IssueAccessToken(user *model.User, ttl time.Duration) (string, int64, error) {
	now := time.Now()
	claims := accessClaims{
		RoleID:    user.RoleID,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tc.accessSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(ttl.Seconds()), nil
}

// IssueRefreshToken embeds a uuid nonce so two tokens minted for the same
// user within the same second are never identical.
func (tc *TokenCodec) IssueRefreshToken(user *model.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := refreshClaims{
		TokenType: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tc.refreshSecret)
}

// VerifyAccessToken returns the embedded identity, or ErrUnauthorized on any
// failure. Signature mismatch, expiry and wrong token type are deliberately
// indistinguishable to callers.
func (tc *TokenCodec) VerifyAccessToken(tokenStr string) (*model.AuthUser, error) {
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthorized
		}
		return tc.accessSecret, nil
	})
	if err != nil || !token.Valid || claims.TokenType != tokenTypeAccess {
		return nil, ErrUnauthorized
	}

	userID, err := parseSubject(claims.Subject)
	if err != nil {
		return nil, ErrUnauthorized
	}

	return &model.AuthUser{
		ID:     userID,
		RoleID: claims.RoleID,
		Token:  tokenStr,
	}, nil
}

// VerifyRefreshToken returns the owner's user id, or ErrUnauthorized.
func (tc *TokenCodec) VerifyRefreshToken(tokenStr string) (int64, error) {
	claims := &refreshClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthorized
		}
		return tc.refreshSecret, nil
	})
	if err != nil || !token.Valid || claims.TokenType != tokenTypeRefresh {
		return 0, ErrUnauthorized
	}

	userID, err := parseSubject(claims.Subject)
	if err != nil {
		return 0, ErrUnauthorized
	}
	return userID, nil
}

// AccessTokenRemaining reports how long the token stays valid; used to bound
// blacklist retention. Zero for unparsable or expired tokens.
func (tc *TokenCodec) AccessTokenRemaining(tokenStr string) time.Duration {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return tc.accessSecret, nil
	})
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func parseSubject(sub string) (int64, error) {
	return strconv.ParseInt(sub, 10, 64)
}
