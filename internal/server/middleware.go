package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/talentbay/internal/authsession"
	obscontext "github.com/smallbiznis/talentbay/internal/observability/context"
	"github.com/smallbiznis/talentbay/internal/observability/logger"
	"github.com/smallbiznis/talentbay/internal/routeguard"
	"go.uber.org/zap"
)

const (
	contextDeviceIDKey   = "device_id"
	contextControllerKey = "auth_controller"
	contextViewKey       = "auth_view"
	contextGuardKey      = "guard_decision"

	holdRetryAfterSeconds = "1"
)

// DeviceSession identifies the browser by its device cookie and pins the
// device's controller for the duration of the request.
func (s *Server) DeviceSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID := s.sessions.EnsureDeviceID(c)
		c.Request = c.Request.WithContext(obscontext.WithDeviceID(c.Request.Context(), deviceID))

		ctrl, release, err := s.registry.Acquire(deviceID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		defer release()

		c.Set(contextDeviceIDKey, deviceID)
		c.Set(contextControllerKey, ctrl)
		c.Next()
	}
}

// RouteGuard applies the route policy to every request. Pages are
// redirected; API calls get a status code and the redirect location.
func (s *Server) RouteGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctrl, ok := controllerFrom(c)
		if !ok {
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		view := s.settledView(c.Request.Context(), ctrl)
		if view.Identity != nil {
			c.Request = c.Request.WithContext(obscontext.WithActorID(c.Request.Context(), view.Identity.ID))
		}
		c.Set(contextViewKey, view)

		decision, req := s.policy.Evaluate(view, c.Request.URL.Path, c.Request.URL.RequestURI())
		c.Set(contextGuardKey, decision.String())

		switch decision.Kind {
		case routeguard.DecisionAllow:
			c.Next()
		case routeguard.DecisionHold:
			s.hold(c)
		case routeguard.DecisionRedirect:
			if view.Status == authsession.StatusError {
				s.sessionUnavailable(c, ctrl, req)
				return
			}
			s.redirect(c, view, decision.Location)
		}
	}
}

// settledView waits up to the hold timeout for the first session read. An
// identity past its expiry is signed out first.
func (s *Server) settledView(ctx context.Context, ctrl *authsession.Controller) authsession.View {
	if ctrl.ExpireIfDue() {
		logger.WithContext(ctx, s.log).Info("signed out expired session")
	}
	view := ctrl.View()
	if view.Settled() || s.cfg.Guard.HoldTimeout <= 0 {
		return view
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.Guard.HoldTimeout)
	defer cancel()

	view, err := ctrl.WaitSettled(waitCtx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		logger.WithContext(ctx, s.log).Debug("wait for session view ended", zap.Error(err))
	}
	return view
}

func (s *Server) hold(c *gin.Context) {
	c.Header("Retry-After", holdRetryAfterSeconds)
	c.Header("Cache-Control", "no-store")
	if isAPIRequest(c) {
		AbortWithError(c, ErrSessionPending)
		return
	}
	c.Header("Refresh", holdRetryAfterSeconds)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(loadingPage))
	c.Abort()
}

func (s *Server) redirect(c *gin.Context, view authsession.View, location string) {
	if !isAPIRequest(c) {
		c.Redirect(http.StatusSeeOther, location)
		c.Abort()
		return
	}
	if !view.IsAuthenticated() {
		abortWithLocation(c, ErrUnauthorized, location)
		return
	}
	abortWithLocation(c, ErrForbidden, location)
}

// sessionUnavailable handles a protected route while the session could not
// be read. A refresh is started so the next request can recover.
func (s *Server) sessionUnavailable(c *gin.Context, ctrl *authsession.Controller, req routeguard.Requirement) {
	ctrl.Refresh()
	logger.WithContext(c.Request.Context(), s.log).Warn("session unavailable on protected route",
		zap.String("requirement", req.String()),
	)

	if isAPIRequest(c) {
		c.Header("Retry-After", holdRetryAfterSeconds)
		AbortWithError(c, ErrSessionUnavailable)
		return
	}

	location := s.policy.Current().Guard.SignInLocation(c.Request.URL.RequestURI())
	c.Redirect(http.StatusSeeOther, withQuery(location, "error", "session_unavailable"))
	c.Abort()
}

func controllerFrom(c *gin.Context) (*authsession.Controller, bool) {
	v, ok := c.Get(contextControllerKey)
	if !ok {
		return nil, false
	}
	ctrl, ok := v.(*authsession.Controller)
	return ctrl, ok && ctrl != nil
}

func deviceIDFrom(c *gin.Context) string {
	return c.GetString(contextDeviceIDKey)
}

func isAPIRequest(c *gin.Context) bool {
	path := c.Request.URL.Path
	if path == "/api" || strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/auth/") {
		return true
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

func withQuery(location, key, value string) string {
	u, err := url.Parse(location)
	if err != nil {
		return location
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

const loadingPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>Loading</title></head>
<body><p>Loading your session…</p></body></html>
`
