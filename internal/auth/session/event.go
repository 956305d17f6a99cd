package session

import (
	"github.com/smallbiznis/talentbay/internal/auth/domain"
	"github.com/smallbiznis/talentbay/pkg/telemetry/correlation"
)

type EventKind string

const (
	EventSignedIn  EventKind = "signed_in"
	EventSignedOut EventKind = "signed_out"
	EventRefreshed EventKind = "refreshed"
)

// Event announces a change to one device session. Identity is nil for
// EventSignedOut.
type Event struct {
	ID       string               `json:"id"`
	Kind     EventKind            `json:"kind"`
	DeviceID string               `json:"device_id"`
	Identity *domain.Identity     `json:"identity,omitempty"`
	Meta     correlation.Metadata `json:"meta"`
}
