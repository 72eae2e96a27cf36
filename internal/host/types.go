package host

import (
	"context"
	"sort"
	"strings"
	"time"
)

// NotificationDomain is the entity and service domain for persistent notifications.
const NotificationDomain = "persistent_notification"

// Entity is the state of one host entity.
type Entity struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged time.Time      `json:"last_changed"`
}

// Domain returns the part of the entity ID before the first dot.
func (e Entity) Domain() string {
	domain, _, _ := strings.Cut(e.EntityID, ".")
	return domain
}

// FriendlyName returns the friendly_name attribute, falling back to the entity ID.
func (e Entity) FriendlyName() string {
	if name, ok := e.Attributes["friendly_name"].(string); ok && name != "" {
		return name
	}
	return e.EntityID
}

func (e Entity) clone() Entity {
	out := e
	if e.Attributes != nil {
		out.Attributes = make(map[string]any, len(e.Attributes))
		for k, v := range e.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// Snapshot is a point-in-time copy of every entity, keyed by entity ID.
type Snapshot map[string]Entity

// Has reports whether the snapshot contains entityID.
func (s Snapshot) Has(entityID string) bool {
	_, ok := s[entityID]
	return ok
}

// EntityIDs returns the entity IDs in sorted order.
func (s Snapshot) EntityIDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ServiceCall is one invocation of a host service.
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]any
}

// ServiceHandler handles a service call. A non-nil map is returned to the
// caller as the service response.
type ServiceHandler func(ctx context.Context, call ServiceCall) (map[string]any, error)

// Connection is the panel's view of the host.
type Connection interface {
	// CallService invokes domain.service with data and returns the service
	// response, which may be nil.
	CallService(ctx context.Context, domain, service string, data map[string]any) (map[string]any, error)

	// States returns a snapshot of all entity states.
	States(ctx context.Context) (Snapshot, error)
}

// NotificationEntityID returns the entity ID a persistent notification is stored under.
func NotificationEntityID(notificationID string) string {
	return NotificationDomain + "." + notificationID
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
