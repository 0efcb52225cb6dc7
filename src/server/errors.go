package server

import (
	"errors"
	"net/http"

	app "catalogserv/src/app"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var statusByKind = map[app.Kind]int{
	app.KindInvalidIdentifier: http.StatusBadRequest,
	app.KindValidation:        http.StatusBadRequest,
	app.KindUnauthenticated:   http.StatusUnauthorized,
	app.KindForbidden:         http.StatusForbidden,
	app.KindNotFound:          http.StatusNotFound,
	app.KindConflict:          http.StatusConflict,
	app.KindUpload:            http.StatusBadGateway,
}

func statusOf(kind app.Kind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorResponder renders the last error a handler attached with c.Error.
// Unclassified errors are logged and reported without their details.
func ErrorResponder(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		kind := app.KindOf(err)
		status := statusOf(kind)

		message := "internal server error"
		var appErr *app.Error
		if errors.As(err, &appErr) && kind != app.KindInternal {
			message = appErr.Error()
		}
		if status >= http.StatusInternalServerError {
			logger.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
		}
		c.JSON(status, gin.H{"status": "error", "error": kind, "message": message})
	}
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
