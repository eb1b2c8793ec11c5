package model

import "time"

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type LoginResponse struct {
	ErrCode   int       `json:"errCode"`
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expiresIn"`
	Data      *UserInfo `json:"data"`
}

type RefreshResponse struct {
	ErrCode   int    `json:"errCode"`
	Message   string `json:"message"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

type CheckResponse struct {
	ErrCode int       `json:"errCode"`
	Data    CheckData `json:"data"`
}

type CheckData struct {
	ID              int64 `json:"id"`
	RoleID          int   `json:"roleId"`
	IsAuthenticated bool  `json:"isAuthenticated"`
}

type ForgotPasswordRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type ForgotPasswordResponse struct {
	ErrCode   int    `json:"errCode"`
	Message   string `json:"message"`
	ExpiresIn int64  `json:"expiresIn,omitempty"`
}

type VerifyResetOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTPCode     string `json:"otpCode"`
}

type VerifyResetOTPResponse struct {
	ErrCode           int    `json:"errCode"`
	Message           string `json:"message"`
	ResetToken        string `json:"resetToken,omitempty"`
	RemainingAttempts *int   `json:"remainingAttempts,omitempty"`
}

type ResetPasswordRequest struct {
	ResetToken  string `json:"resetToken"`
	NewPassword string `json:"newPassword"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AuthUser is the request-scoped identity attached by the auth middleware.
type AuthUser struct {
	ID     int64
	RoleID int
	Token  string
}

type RefreshToken struct {
	ID         int64
	UserID     int64
	TokenHash  string
	DeviceInfo string
	IPAddress  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

type PasswordResetToken struct {
	ID             int64
	UserID         int64
	Identifier     string
	ResetTokenHash string
	OTPHash        string
	ExpiresAt      time.Time
	Attempts       int
	MaxAttempts    int
	UsedAt         *time.Time
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
}

// RequestMeta carries per-request client details persisted with token rows.
type RequestMeta struct {
	DeviceInfo string
	IPAddress  string
	UserAgent  string
}
