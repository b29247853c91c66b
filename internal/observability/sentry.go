package observability

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// InitSentry wires error reporting when a DSN is configured. A missing DSN
// disables Sentry entirely.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

// FlushSentry drains buffered events before shutdown
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// Recover is a gin middleware that reports panics to Sentry and answers with
// a plain 500 instead of tearing down the connection.
func Recover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				sentry.WithScope(func(scope *sentry.Scope) {
					scope.SetExtra("panic", rec)
					scope.SetExtra("stack", string(debug.Stack()))
					scope.SetExtra("path", c.Request.URL.Path)
					sentry.CaptureMessage("panic in request")
				})

				log.WithFields(log.Fields{
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
					"panic":  rec,
				}).Error("Panic recovered in request handler")

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
			}
		}()

		c.Next()
	}
}
