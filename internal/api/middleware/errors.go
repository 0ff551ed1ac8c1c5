package middleware

import (
	"log/slog"

	"filepanel/internal/apperrors"

	"github.com/gin-gonic/gin"
)

// ErrorHandler turns errors attached via c.Error into JSON responses.
// It is the single place handler errors become client-visible, so a raw
// store failure can only ever surface as a generic 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, msg := apperrors.Status(err)
		if status >= 500 {
			slog.Error("request failed", "path", c.Request.URL.Path, "error", err)
		}
		c.JSON(status, gin.H{"error": msg})
	}
}
