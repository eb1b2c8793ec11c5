package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shop-admin/backend/internal/model"
	"github.com/shop-admin/backend/internal/service"
)

const authUserKey = "auth_user"

// Signature failure, expiry and blacklist hit all return this same body.
const unauthorizedMessage = "Token has been revoked or is invalid"

// AuthMiddleware authenticates every request from the access token, taken
// from the Authorization header or the authToken cookie, and consults the
// blacklist.
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token := extractAccessToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, model.ErrorResponse{ErrCode: 3, Message: unauthorizedMessage})
			c.Abort()
			return
		}

		user, err := authService.ValidateAccess(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, model.ErrorResponse{ErrCode: 3, Message: unauthorizedMessage})
			c.Abort()
			return
		}

		c.Set(authUserKey, user)
		c.Next()
	}
}

// RequireRole guards admin-only routes. Must run after AuthMiddleware.
func RequireRole(roleID int) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetAuthUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, model.ErrorResponse{ErrCode: 3, Message: unauthorizedMessage})
			c.Abort()
			return
		}
		if user.RoleID != roleID {
			c.JSON(http.StatusForbidden, model.ErrorResponse{ErrCode: 3, Message: "forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func GetAuthUser(c *gin.Context) *model.AuthUser {
	if value, ok := c.Get(authUserKey); ok {
		if user, ok := value.(*model.AuthUser); ok {
			return user
		}
	}
	return nil
}

func extractAccessToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")); token != "" {
			return token
		}
	}
	token, _ := c.Cookie(service.AccessCookieName)
	return token
}

func CORSMiddleware(allowedOrigins []string, allowCredentials bool) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				if allowCredentials {
					c.Header("Access-Control-Allow-Credentials", "true")
				}
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
