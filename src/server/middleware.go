package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	app "catalogserv/src/app"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const principalKey = "principal"

// Authenticator resolves a bearer token to the principal behind it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*app.Principal, error)
}

// Authenticate requires an `Authorization: Bearer <token>` header and attaches
// the resolved principal to the request.
func Authenticate(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abort(c, app.Unauthenticated("bearer token required"))
			return
		}
		p, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// Require lets the request through only when the principal holds one of roles.
func Require(roles ...app.Role) gin.HandlerFunc {
	allowed := make(map[app.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		p := principal(c)
		if p == nil {
			abort(c, app.Unauthenticated("authentication required"))
			return
		}
		if !allowed[p.Role] {
			abort(c, app.Forbidden("role %s may not access this resource", p.Role))
			return
		}
		c.Next()
	}
}

func principal(c *gin.Context) *app.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*app.Principal)
	return p
}

// RequestLogger writes one entry per request once it has been handled.
func RequestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  status,
			"latency": time.Since(start).String(),
		}
		if p := principal(c); p != nil {
			fields["principal"] = p.ID.Hex()
		}
		entry := logger.WithFields(fields)
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}
