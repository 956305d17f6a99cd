package session

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallbiznis/talentbay/internal/config"
)

const (
	DeviceCookieName = "_did"

	// Browsers cap cookie lifetime at 400 days.
	deviceCookieMaxAge = 400 * 24 * 60 * 60
)

// Manager manages the device cookie that keys sessions and controllers.
type Manager struct {
	cookieName string
	secure     bool
}

func NewManager(cfg config.Config) *Manager {
	return &Manager{
		cookieName: DeviceCookieName,
		secure:     cfg.AuthCookieSecure,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

// ReadDeviceID returns the device id carried by the request, if it is a valid uuid.
func (m *Manager) ReadDeviceID(c *gin.Context) (string, bool) {
	raw, err := c.Cookie(m.cookieName)
	if err != nil {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	if _, err := uuid.Parse(raw); err != nil {
		return "", false
	}
	return raw, true
}

// EnsureDeviceID returns the request's device id, issuing a new cookie when
// the request carries none.
func (m *Manager) EnsureDeviceID(c *gin.Context) string {
	if id, ok := m.ReadDeviceID(c); ok {
		return id
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, id, deviceCookieMaxAge, "/", "", m.secure, true)
	return id
}
