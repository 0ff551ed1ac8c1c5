package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"filepanel/internal/apperrors"
	"filepanel/internal/models"
	"filepanel/internal/services"

	"github.com/gin-gonic/gin"
)

// Context keys set by RequireAuth for downstream handlers.
const (
	ContextUserKey   = "user"
	ContextUserIDKey = "user_id"
	ContextRoleKey   = "user_role"
	ContextTokenKey  = "token"
)

// RequireAuth is the request gate: token extraction, session validity,
// signature verification, identity resolution, context attachment. Each
// stage short-circuits; nothing downstream runs on failure.
//
// The session-store check deliberately runs before signature verification
// so a blacklisted token is rejected without touching the signing key, and
// a session-valid-but-corrupted token still fails closed.
func RequireAuth(auth *services.AuthService, sessions *services.SessionService, users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abort(c, apperrors.NewAuth("Please login first to view this content."))
			return
		}

		valid, err := sessions.IsValid(token)
		if err != nil || !valid {
			abort(c, apperrors.NewAuth("Invalid or expired session. Please login again."))
			return
		}

		claims, err := auth.VerifyToken(token)
		if err != nil {
			abort(c, apperrors.NewAuth("Invalid token. Please login again."))
			return
		}

		user, err := users.FindByID(claims.UserID)
		if err != nil || user == nil || !user.IsActive {
			abort(c, apperrors.NewAuth("User account is disabled or not found."))
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextRoleKey, user.Role)
		c.Set(ContextTokenKey, token)

		c.Next()
	}
}

// RequireAdmin allows only admin callers past. It assumes RequireAuth
// already ran.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextRoleKey)
		if !exists {
			abort(c, apperrors.NewAuth("Authentication required."))
			return
		}
		if role.(models.Role) != models.RoleAdmin {
			abort(c, apperrors.NewGeneralWithCode(http.StatusForbidden, "Access denied. Admin privileges required."))
			return
		}
		c.Next()
	}
}

// RequirePermission gates a route on one capability, re-deriving the
// target path from the request. Internal lookup failures surface as the
// same generic denial; store errors never reach the client from here.
func RequirePermission(users *services.UserService, cap models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(ContextUserIDKey)
		if userID == "" {
			abort(c, apperrors.NewAuth("Authentication required."))
			return
		}

		path := extractPath(c)

		allowed, err := users.HasPermission(userID, cap, path)
		if err != nil || !allowed {
			abort(c, apperrors.NewGeneralWithCode(http.StatusForbidden,
				fmt.Sprintf("Access denied. You don't have %s permission.", cap)))
			return
		}

		c.Next()
	}
}

// extractToken prefers the custom header, then the standard Bearer form.
func extractToken(c *gin.Context) string {
	if token := c.GetHeader("x-auth-token"); token != "" {
		return token
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// extractPath finds the operation's target path: body.path, then
// query.path, then the first element of body.paths. The body is restored
// so the handler can still bind it. Non-JSON bodies (uploads) simply
// yield no path, leaving the capability flag alone to govern.
func extractPath(c *gin.Context) string {
	var payload struct {
		Path  string   `json:"path"`
		Paths []string `json:"paths"`
	}

	if c.Request.Body != nil {
		body, err := io.ReadAll(c.Request.Body)
		if err == nil {
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
			if len(body) > 0 {
				_ = json.Unmarshal(body, &payload)
			}
		}
	}

	if payload.Path != "" {
		return payload.Path
	}
	if q := c.Query("path"); q != "" {
		return q
	}
	if len(payload.Paths) > 0 {
		return payload.Paths[0]
	}
	return ""
}

func abort(c *gin.Context, err error) {
	status, msg := apperrors.Status(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
