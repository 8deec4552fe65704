package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wfunc/guessduel/apperr"
	"github.com/wfunc/guessduel/auth"
	"github.com/wfunc/guessduel/logger"
	"github.com/wfunc/guessduel/persistence"
)

const identityKey = "identity"

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log.Debugw("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// authenticate resolves the bearer token into an identity and provisions
// the account on first sight.
func (s *GameServer) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(c, apperr.ErrUnauthenticated)
			return
		}

		id, err := s.gateway.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identity(c).IsAdmin() {
			writeError(c, apperr.ErrForbidden)
			return
		}
		c.Next()
	}
}

func identity(c *gin.Context) *auth.Identity {
	return c.MustGet(identityKey).(*auth.Identity)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Wrap(apperr.ErrBadRequest, "invalid id %q", raw)
	}
	return uint(id), nil
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := parseID(c.Param(name))
	if err != nil {
		writeError(c, err)
		return 0, false
	}
	return id, true
}

// writeError renders err as {"error", "code"}. Unclassified errors are
// logged and reported as internal; lost lock races carry Retry-After.
func writeError(c *gin.Context, err error) {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		logger.Log.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	if persistence.IsConflict(err) {
		c.Header("Retry-After", "1")
	}
	c.AbortWithStatusJSON(e.HTTPStatus(), gin.H{"error": e.Message, "code": e.Code})
}
