package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shop-admin/backend/internal/model"
	"github.com/shop-admin/backend/internal/service"
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Login godoc
// @Summary Login
// @Description Authenticates with identifier (phone or email) and password, sets session cookies.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Identifier, password, rememberMe"
// @Success 200 {object} model.LoginResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{ErrCode: 1, Message: "invalid request"})
		return
	}

	tokens, err := h.svc.Login(c.Request.Context(), req.Identifier, req.Password, req.RememberMe, requestMeta(c))
	if err != nil {
		writeAuthError(c, err)
		return
	}

	h.setSessionCookies(c, tokens, req.RememberMe)
	c.JSON(http.StatusOK, model.LoginResponse{
		ErrCode:   0,
		Message:   "Login successful",
		Token:     tokens.AccessToken,
		ExpiresIn: tokens.ExpiresIn,
		Data:      tokens.User.Info(),
	})
}

// Refresh godoc
// @Summary Refresh access token
// @Description Rotates the refresh token cookie and mints a new access token.
// @Tags auth
// @Produce json
// @Success 200 {object} model.RefreshResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(service.RefreshCookieName)
	tokens, err := h.svc.Refresh(c.Request.Context(), refreshToken, requestMeta(c))
	if err != nil {
		// Any validation failure terminates the session.
		h.clearSessionCookies(c)
		writeAuthError(c, err)
		return
	}

	h.setSessionCookies(c, tokens, false)
	c.JSON(http.StatusOK, model.RefreshResponse{
		ErrCode:   0,
		Message:   "Token refreshed",
		Token:     tokens.AccessToken,
		ExpiresIn: tokens.ExpiresIn,
	})
}

// Logout godoc
// @Summary Logout
// @Description Blacklists the access token, revokes the refresh token, clears cookies.
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} model.StatusResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeAuthError(c, service.ErrUnauthorized)
		return
	}

	refreshToken, _ := c.Cookie(service.RefreshCookieName)
	if err := h.svc.Logout(c.Request.Context(), user.Token, refreshToken); err != nil {
		writeAuthError(c, err)
		return
	}

	h.clearSessionCookies(c)
	c.JSON(http.StatusOK, model.StatusResponse{ErrCode: 0, Message: "Logged out"})
}

// LogoutAll godoc
// @Summary Logout from all devices
// @Description Revokes every refresh token owned by the caller.
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} model.StatusResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeAuthError(c, service.ErrUnauthorized)
		return
	}

	refreshToken, _ := c.Cookie(service.RefreshCookieName)
	if err := h.svc.LogoutAll(c.Request.Context(), user.ID, user.Token, refreshToken); err != nil {
		writeAuthError(c, err)
		return
	}

	h.clearSessionCookies(c)
	c.JSON(http.StatusOK, model.StatusResponse{ErrCode: 0, Message: "Logged out everywhere"})
}

// Check godoc
// @Summary Check session
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} model.CheckResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/check [get]
func (h *AuthHandler) Check(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeAuthError(c, service.ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, model.CheckResponse{
		ErrCode: 0,
		Data: model.CheckData{
			ID:              user.ID,
			RoleID:          user.RoleID,
			IsAuthenticated: true,
		},
	})
}

func (h *AuthHandler) setSessionCookies(c *gin.Context, tokens *service.SessionTokens, rememberMe bool) {
	cfg := h.svc.CookieConfig()
	accessMaxAge := h.svc.AccessCookieMaxAge(rememberMe)
	refreshMaxAge := h.svc.RefreshCookieMaxAge()

	c.SetSameSite(cfg.SameSite)
	c.SetCookie(service.AccessCookieName, tokens.AccessToken, accessMaxAge, cfg.Path, cfg.Domain, cfg.Secure, true)
	c.SetCookie(service.RefreshCookieName, tokens.RefreshToken, refreshMaxAge, cfg.Path, cfg.Domain, cfg.Secure, true)
	// Readable flag for client-side UI checks; carries no credential.
	c.SetCookie(service.FlagCookieName, service.FlagCookieValue, accessMaxAge, cfg.Path, cfg.Domain, cfg.Secure, false)
}

func (h *AuthHandler) clearSessionCookies(c *gin.Context) {
	cfg := h.svc.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(service.AccessCookieName, "", -1, cfg.Path, cfg.Domain, cfg.Secure, true)
	c.SetCookie(service.RefreshCookieName, "", -1, cfg.Path, cfg.Domain, cfg.Secure, true)
	c.SetCookie(service.FlagCookieName, "", -1, cfg.Path, cfg.Domain, cfg.Secure, false)
}

func requestMeta(c *gin.Context) model.RequestMeta {
	return model.RequestMeta{
		DeviceInfo: c.Request.UserAgent(),
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}
}

func writeAuthError(c *gin.Context, err error) {
	switch err {
	case service.ErrInvalidInput:
		c.JSON(http.StatusBadRequest, model.ErrorResponse{ErrCode: 1, Message: "invalid input"})
	case service.ErrUnauthorized:
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{ErrCode: 3, Message: unauthorizedMessage})
	case service.ErrForbidden:
		c.JSON(http.StatusForbidden, model.ErrorResponse{ErrCode: 3, Message: "forbidden"})
	default:
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{ErrCode: 5, Message: "server error"})
	}
}
