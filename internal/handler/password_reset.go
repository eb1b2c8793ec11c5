package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shop-admin/backend/internal/model"
	"github.com/shop-admin/backend/internal/service"
)

type PasswordResetHandler struct {
	svc *service.PasswordResetService
}

func NewPasswordResetHandler(svc *service.PasswordResetService) *PasswordResetHandler {
	return &PasswordResetHandler{svc: svc}
}

// ForgotPassword godoc
// @Summary Request a password reset code
// @Description Sends a one-time code to the account's phone number. At most 3 requests per 15 minutes.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.ForgotPasswordRequest true "Phone number"
// @Success 200 {object} model.ForgotPasswordResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 429 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/forgot-password [post]
func (h *PasswordResetHandler) ForgotPassword(c *gin.Context) {
	var req model.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{ErrCode: 1, Message: "invalid request"})
		return
	}

	expiresIn, err := h.svc.RequestReset(c.Request.Context(), req.PhoneNumber, requestMeta(c))
	if err != nil {
		writeResetError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, model.ForgotPasswordResponse{
		ErrCode:   0,
		Message:   "Verification code sent",
		ExpiresIn: expiresIn,
	})
}

// VerifyResetOTP godoc
// @Summary Verify the reset code
// @Description Exchanges a correct one-time code for a reset token. Attempts are capped.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.VerifyResetOTPRequest true "Phone number and code"
// @Success 200 {object} model.VerifyResetOTPResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 429 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/verify-reset-otp [post]
func (h *PasswordResetHandler) VerifyResetOTP(c *gin.Context) {
	var req model.VerifyResetOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{ErrCode: 1, Message: "invalid request"})
		return
	}

	resetToken, remaining, err := h.svc.VerifyOTP(c.Request.Context(), req.PhoneNumber, req.OTPCode)
	if err != nil {
		writeResetError(c, err, &remaining)
		return
	}

	c.JSON(http.StatusOK, model.VerifyResetOTPResponse{
		ErrCode:    0,
		Message:    "Code verified",
		ResetToken: resetToken,
	})
}

// ResetPassword godoc
// @Summary Complete the password reset
// @Description Consumes the reset token once and revokes all sessions of the user.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.ResetPasswordRequest true "Reset token and new password"
// @Success 200 {object} model.StatusResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/reset-password [post]
func (h *PasswordResetHandler) ResetPassword(c *gin.Context) {
	var req model.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{ErrCode: 1, Message: "invalid request"})
		return
	}

	if err := h.svc.CompleteReset(c.Request.Context(), req.ResetToken, req.NewPassword); err != nil {
		writeResetError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, model.StatusResponse{ErrCode: 0, Message: "Password has been reset"})
}

// ChangePassword godoc
// @Summary Change password
// @Description Authenticated variant; verifies the current password and revokes all sessions.
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body model.ChangePasswordRequest true "Current and new password"
// @Success 200 {object} model.StatusResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/change-password [post]
func (h *PasswordResetHandler) ChangePassword(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeAuthError(c, service.ErrUnauthorized)
		return
	}

	var req model.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{ErrCode: 1, Message: "invalid request"})
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeResetError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, model.StatusResponse{ErrCode: 0, Message: "Password changed"})
}

func writeResetError(c *gin.Context, err error, remaining *int) {
	switch err {
	case service.ErrInvalidInput:
		c.JSON(http.StatusBadRequest, model.ErrorResponse{ErrCode: 1, Message: "invalid input"})
	case service.ErrResetNotFound:
		c.JSON(http.StatusBadRequest, model.ErrorResponse{ErrCode: 1, Message: "account not found"})
	case service.ErrRateLimited:
		c.JSON(http.StatusTooManyRequests, model.ErrorResponse{ErrCode: 2, Message: "too many requests, try again later"})
	case service.ErrNoPendingReset:
		c.JSON(http.StatusBadRequest, model.ErrorResponse{ErrCode: 1, Message: "no pending verification"})
	case service.ErrOTPMismatch:
		resp := model.VerifyResetOTPResponse{ErrCode: 2, Message: "incorrect code"}
		if remaining != nil {
			resp.RemainingAttempts = remaining
		}
		c.JSON(http.StatusBadRequest, resp)
	case service.ErrTooManyAttempts:
		c.JSON(http.StatusTooManyRequests, model.ErrorResponse{ErrCode: 2, Message: "too many attempts, request a new code"})
	case service.ErrDeliveryFailed:
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{ErrCode: 5, Message: "could not deliver the code"})
	case service.ErrResetTokenInvalid:
		c.JSON(http.StatusBadRequest, model.ErrorResponse{ErrCode: 1, Message: "reset token invalid or already used"})
	case service.ErrPasswordPolicy:
		c.JSON(http.StatusBadRequest, model.ErrorResponse{ErrCode: 1, Message: "password must be at least 6 characters"})
	case service.ErrPasswordUnchanged:
		c.JSON(http.StatusBadRequest, model.ErrorResponse{ErrCode: 1, Message: "new password must differ from the current one"})
	case service.ErrUnauthorized:
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{ErrCode: 3, Message: unauthorizedMessage})
	default:
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{ErrCode: 5, Message: "server error"})
	}
}
