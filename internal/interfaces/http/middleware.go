package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ncr-tracker/internal/domain/apperr"
	"github.com/garyjia/ncr-tracker/internal/domain/entity"
)

const principalKey = "principal"

// loggingMiddleware logs one line per request
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		kv := []interface{}{
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		if p := principalFrom(c); p != nil {
			kv = append(kv, "user_id", p.ID)
		}
		s.logger.Info("HTTP request", kv...)
	}
}

func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

// authenticate resolves the bearer token into a principal or aborts with 401
func (h *Handlers) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			h.fail(c, apperr.Unauthenticated("no token provided"))
			c.Abort()
			return
		}

		principal, err := h.services.Identity.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.fail(c, err)
			c.Abort()
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// bearerToken accepts "Bearer <token>" or the bare token
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func principalFrom(c *gin.Context) *entity.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*entity.Principal)
	return p
}
