package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Audit writes an access record after every successful request on routes
// that expose applicant data or change it.
func Audit(logger *zap.Logger, action string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("audit")
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		fields := []zap.Field{
			zap.String("action", action),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Time("at", start),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.GetHeader("User-Agent")),
		}
		if claims, ok := ClaimsFromContext(c); ok {
			fields = append(fields, zap.String("actor_id", claims.UserID))
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, zap.String("application_id", id))
		}
		logger.Info("staff_access", fields...)
	}
}
