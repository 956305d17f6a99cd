package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/talentbay/internal/auth/domain"
	"github.com/smallbiznis/talentbay/internal/observability/logger"
	"go.uber.org/zap"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	if s.loginLimiter.Enabled() {
		res, err := s.loginLimiter.Allow(ctx, c.ClientIP(), email)
		if err != nil {
			logger.WithContext(ctx, s.log).Warn("login rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			s.obsMetrics.RecordThrottled(ctx, c.FullPath())
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			AbortWithError(c, ErrTooManyRequests)
			return
		}
	}

	_, err := s.authsvc.Login(ctx, authdomain.LoginRequest{
		DeviceID:  deviceIDFrom(c),
		Email:     email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, authdomain.ErrInvalidCredentials) {
			outcome = "invalid_credentials"
		}
		s.obsMetrics.RecordSignIn(ctx, outcome)
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordSignIn(ctx, "success")

	// The store announced the sign-in synchronously, so the controller is
	// already resolving the new identity.
	ctrl, ok := controllerFrom(c)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, s.settledView(ctx, ctrl))
}

func (s *Server) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.authsvc.Logout(ctx, deviceIDFrom(c)); err != nil {
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordSignOut(ctx)
	c.Status(http.StatusNoContent)
}

// ExtendSession refreshes the session token. The identity stays the same.
func (s *Server) ExtendSession(c *gin.Context) {
	ctx := c.Request.Context()
	identity, err := s.authsvc.Extend(ctx, deviceIDFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordSessionExtend(ctx)
	c.JSON(http.StatusOK, gin.H{"identity": identity})
}

func (s *Server) Me(c *gin.Context) {
	ctrl, ok := controllerFrom(c)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	view := s.settledView(c.Request.Context(), ctrl)
	if !view.IsAuthenticated() {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"identity": view.Identity,
		"profile":  view.Profile,
	})
}
