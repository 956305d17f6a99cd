package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/talentbay/internal/authsession"
)

const (
	sessionViewEvent      = "view"
	sessionHeartbeatEvent = "heartbeat"

	sessionStreamHeartbeat = 15 * time.Second
	sessionStreamRetry     = 2000 // milliseconds
)

func (s *Server) GetSession(c *gin.Context) {
	ctrl, ok := controllerFrom(c)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, s.settledView(c.Request.Context(), ctrl))
}

// RefreshSession re-reads the session and profile in the background. The
// current view is returned; changes arrive on the stream.
func (s *Server) RefreshSession(c *gin.Context) {
	ctrl, ok := controllerFrom(c)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	ctrl.Refresh()
	c.JSON(http.StatusAccepted, ctrl.View())
}

// StreamSession sends the current view, then every later view, as
// server-sent events until the client disconnects.
func (s *Server) StreamSession(c *gin.Context) {
	ctrl, ok := controllerFrom(c)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	// Views are whole snapshots, so a slow client only needs the latest.
	updates := make(chan authsession.View, 1)
	unsubscribe := ctrl.Subscribe(func(v authsession.View) {
		select {
		case <-updates:
		default:
		}
		updates <- v
	})
	defer unsubscribe()

	headers := c.Writer.Header()
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")

	last := ctrl.View()
	if !sendEvent(c, sse.Event{Event: sessionViewEvent, Retry: sessionStreamRetry, Data: last}) {
		return
	}

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(sessionStreamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case view := <-updates:
			if view.Equal(last) {
				continue
			}
			last = view
			if !sendEvent(c, sse.Event{Event: sessionViewEvent, Data: view}) {
				return
			}
		case <-heartbeat.C:
			if ctrl.Closed() {
				return
			}
			if !sendEvent(c, sse.Event{Event: sessionHeartbeatEvent, Data: "ping"}) {
				return
			}
		}
	}
}

// sendEvent renders one event and flushes it to the client. It reports
// whether the stream is still usable.
func sendEvent(c *gin.Context, event sse.Event) bool {
	c.Render(-1, event)
	if c.IsAborted() {
		return false
	}
	c.Writer.Flush()
	return true
}
