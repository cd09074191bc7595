package api

import (
	"strconv"
	"time"

	"github.com/ericogbekene/Bakery-projectBE/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionCookie = "session_id"
	sessionHeader = "X-Session-ID"
	sessionCtxKey = "session_id"
	sessionMaxAge = 7 * 24 * 60 * 60
)

// sessionMiddleware resolves the cart session: an explicit X-Session-ID
// header wins, otherwise the session cookie, otherwise a fresh UUID is
// minted and set as a cookie. Every cart operation is keyed by this ID.
func sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := c.GetHeader(sessionHeader)
		if sid == "" {
			sid, _ = c.Cookie(sessionCookie)
		}
		if sid == "" {
			sid = uuid.NewString()
			c.SetCookie(sessionCookie, sid, sessionMaxAge, "/", "", false, true)
		}
		c.Set(sessionCtxKey, sid)
		c.Next()
	}
}

// sessionID returns the session resolved by sessionMiddleware.
func sessionID(c *gin.Context) string {
	return c.GetString(sessionCtxKey)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
