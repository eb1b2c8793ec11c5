package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shop-admin/backend/internal/db"
	"github.com/shop-admin/backend/internal/model"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	otpDigits         = 6
	otpTTL            = 10 * time.Minute
	resetRateWindow   = 15 * time.Minute
	maxResetRequests  = 3
	maxOTPAttempts    = 5
	minNewPasswordLen = 6
)

// Reset-flow errors. The handler boundary maps each to a transport status and
// errCode; the service never speaks HTTP.
var (
	ErrResetNotFound     = errors.New("no account for identifier")
	ErrRateLimited       = errors.New("too many reset requests")
	ErrDeliveryFailed    = errors.New("code delivery failed")
	ErrOTPMismatch       = errors.New("otp code mismatch")
	ErrNoPendingReset    = errors.New("no pending reset for identifier")
	ErrTooManyAttempts   = errors.New("otp attempts exhausted")
	ErrResetTokenInvalid = errors.New("reset token invalid or consumed")
	ErrPasswordPolicy    = errors.New("password does not meet policy")
	ErrPasswordUnchanged = errors.New("new password equals current password")
)

// CodeSender delivers a one-time code over an external channel (SMS, email).
type CodeSender interface {
	SendCode(ctx context.Context, recipient, code string, ttl time.Duration) error
}

type resetRepo interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	InsertPasswordResetToken(ctx context.Context, row *model.PasswordResetToken) (int64, error)
	GetLivePasswordResetToken(ctx context.Context, identifier string) (*model.PasswordResetToken, error)
	GetPasswordResetTokenByHash(ctx context.Context, resetTokenHash string) (*model.PasswordResetToken, error)
	CountRecentPasswordResetRequests(ctx context.Context, identifier string, since time.Time) (int, error)
	InvalidateLivePasswordResetTokens(ctx context.Context, identifier string) error
	IncrementPasswordResetAttempts(ctx context.Context, id int64) (int, error)
	RotateResetTokenHash(ctx context.Context, id int64, resetTokenHash string) error
	DeletePasswordResetToken(ctx context.Context, id int64) error
	CompletePasswordReset(ctx context.Context, userID int64, passwordHash string, resetRowID int64) error
	UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error
	RevokeAllRefreshTokens(ctx context.Context, userID int64) error
}

// PasswordResetService gates password changes behind a verified one-time
// code: Requested -> OTPVerified -> Completed, with an attempt cap and expiry
// at each gate.
type PasswordResetService struct {
	repo   resetRepo
	sender CodeSender
	log    *zap.Logger
}

func NewPasswordResetService(repo resetRepo, sender CodeSender, log *zap.Logger) *PasswordResetService {
	return &PasswordResetService{repo: repo, sender: sender, log: log}
}

// RequestReset starts the flow: rate-limits per identifier, supersedes prior
// live codes, persists a fresh OTP row and hands the code to the sender.
// Returns the OTP lifetime in seconds.
func (s *PasswordResetService) RequestReset(ctx context.Context, identifier string, meta model.RequestMeta) (int64, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return 0, ErrInvalidInput
	}

	user, err := s.repo.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if db.IsNoRows(err) {
			return 0, ErrResetNotFound
		}
		return 0, err
	}

	count, err := s.repo.CountRecentPasswordResetRequests(ctx, identifier, time.Now().Add(-resetRateWindow))
	if err != nil {
		return 0, err
	}
	if count >= maxResetRequests {
		return 0, ErrRateLimited
	}

	if err := s.repo.InvalidateLivePasswordResetTokens(ctx, identifier); err != nil {
		return 0, err
	}

	code, err := newOTPCode()
	if err != nil {
		return 0, err
	}
	resetToken, err := newOpaqueToken()
	if err != nil {
		return 0, err
	}

	rowID, err := s.repo.InsertPasswordResetToken(ctx, &model.PasswordResetToken{
		UserID:         user.ID,
		Identifier:     identifier,
		ResetTokenHash: hashToken(resetToken),
		OTPHash:        hashToken(code),
		ExpiresAt:      time.Now().Add(otpTTL),
		MaxAttempts:    maxOTPAttempts,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
	})
	if err != nil {
		return 0, err
	}

	if err := s.sender.SendCode(ctx, identifier, code, otpTTL); err != nil {
		s.log.Error("otp delivery failed", zap.String("identifier", identifier), zap.Error(err))
		if delErr := s.repo.DeletePasswordResetToken(ctx, rowID); delErr != nil {
			s.log.Error("failed to delete undelivered reset row", zap.Int64("rowId", rowID), zap.Error(delErr))
		}
		return 0, ErrDeliveryFailed
	}

	return int64(otpTTL.Seconds()), nil
}

// VerifyOTP checks the submitted code against the newest live row. On a
// mismatch the remaining attempt count is returned alongside ErrOTPMismatch;
// once attempts are exhausted the row is destroyed and even the correct code
// fails afterwards. On a match the row's reset token is rotated and the fresh
// bearer string is returned.
func (s *PasswordResetService) VerifyOTP(ctx context.Context, identifier, code string) (string, int, error) {
	identifier = strings.TrimSpace(identifier)
	code = strings.TrimSpace(code)
	if identifier == "" || code == "" {
		return "", 0, ErrInvalidInput
	}

	row, err := s.repo.GetLivePasswordResetToken(ctx, identifier)
	if err != nil {
		if db.IsNoRows(err) {
			return "", 0, ErrNoPendingReset
		}
		return "", 0, err
	}

	if row.Attempts >= row.MaxAttempts {
		s.destroyRow(ctx, row.ID)
		return "", 0, ErrTooManyAttempts
	}

	attempts, err := s.repo.IncrementPasswordResetAttempts(ctx, row.ID)
	if err != nil {
		return "", 0, err
	}

	if subtle.ConstantTimeCompare([]byte(row.OTPHash), []byte(hashToken(code))) != 1 {
		remaining := row.MaxAttempts - attempts
		if remaining <= 0 {
			s.destroyRow(ctx, row.ID)
			return "", 0, ErrTooManyAttempts
		}
		return "", remaining, ErrOTPMismatch
	}

	resetToken, err := newOpaqueToken()
	if err != nil {
		return "", 0, err
	}
	if err := s.repo.RotateResetTokenHash(ctx, row.ID, hashToken(resetToken)); err != nil {
		if db.IsNoRows(err) {
			return "", 0, ErrNoPendingReset
		}
		return "", 0, err
	}

	return resetToken, 0, nil
}

// CompleteReset consumes the reset token exactly once: hashes the new
// password, marks the row used and revokes every refresh token of the user in
// one transaction. Replaying the token afterwards fails.
func (s *PasswordResetService) CompleteReset(ctx context.Context, resetToken, newPassword string) error {
	if strings.TrimSpace(resetToken) == "" {
		return ErrResetTokenInvalid
	}
	if len(strings.TrimSpace(newPassword)) < minNewPasswordLen {
		return ErrPasswordPolicy
	}

	row, err := s.repo.GetPasswordResetTokenByHash(ctx, hashToken(resetToken))
	if err != nil {
		if db.IsNoRows(err) {
			return ErrResetTokenInvalid
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := s.repo.CompletePasswordReset(ctx, row.UserID, string(hash), row.ID); err != nil {
		if db.IsNoRows(err) {
			// Lost the race with a concurrent completion of the same row.
			return ErrResetTokenInvalid
		}
		return err
	}

	s.log.Info("password reset completed", zap.Int64("userId", row.UserID))
	return nil
}

// ChangePassword is the authenticated variant: the current password stands in
// for the OTP gate, and reusing it as the new password is rejected.
func (s *PasswordResetService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	if len(strings.TrimSpace(newPassword)) < minNewPasswordLen {
		return ErrPasswordPolicy
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrUnauthorized
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(newPassword)) == nil {
		return ErrPasswordUnchanged
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateUserPassword(ctx, userID, string(hash)); err != nil {
		return err
	}

	// Force re-login on every device.
	if err := s.repo.RevokeAllRefreshTokens(ctx, userID); err != nil {
		return err
	}

	s.log.Info("password changed", zap.Int64("userId", userID))
	return nil
}

func (s *PasswordResetService) destroyRow(ctx context.Context, id int64) {
	if err := s.repo.DeletePasswordResetToken(ctx, id); err != nil {
		s.log.Error("failed to delete reset row", zap.Int64("rowId", id), zap.Error(err))
	}
}

// newOTPCode returns a zero-padded numeric code.
func newOTPCode() (string, error) {
	upper := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		upper.Mul(upper, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}
