package utils

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

// sentryService tags every event with the emitting service.
const sentryService = "myautowhiz-api"

func hubFor(c *gin.Context) *sentry.Hub {
	if c != nil {
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			return hub
		}
	}
	return sentry.CurrentHub()
}

// describeRequest copies routing metadata onto scope. The request id header is set by
// the request id middleware before handlers run.
func describeRequest(scope *sentry.Scope, c *gin.Context) {
	if c == nil || c.Request == nil {
		return
	}
	scope.SetTag("http.method", c.Request.Method)
	if route := c.FullPath(); route != "" {
		scope.SetTag("http.route", route)
	}
	if id := c.Writer.Header().Get("X-Request-ID"); id != "" {
		scope.SetTag("request_id", id)
	}
	scope.SetExtra("client_ip", GetClientIP(c))
}

// CaptureSentryError reports err, or message when err is nil, with request metadata when available.
func CaptureSentryError(c *gin.Context, err error, message string, extras map[string]interface{}) {
	if err == nil && message == "" {
		return
	}
	hub := hubFor(c)
	if hub == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("service", sentryService)
		describeRequest(scope, c)
		if message != "" {
			scope.SetExtra("context", message)
		}
		for k, v := range extras {
			scope.SetExtra(k, v)
		}

		if err != nil {
			hub.CaptureException(err)
			return
		}
		hub.CaptureMessage(message)
	})
}

// CaptureSentryPanic reports a value recovered in a background goroutine.
func CaptureSentryPanic(location string, recovered interface{}) {
	if recovered == nil {
		return
	}
	hub := sentry.CurrentHub()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("service", sentryService)
		scope.SetTag("goroutine", location)
		scope.SetLevel(sentry.LevelFatal)
		scope.SetExtra("panic_value", fmt.Sprint(recovered))
		hub.CaptureException(fmt.Errorf("panic in %s: %v", location, recovered))
	})
}
