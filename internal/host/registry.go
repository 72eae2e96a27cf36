package host

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry is an in-process host: a service table plus an entity state store.
//
// It registers the persistent_notification.create and
// persistent_notification.dismiss services on construction.
//
// All public methods are thread-safe. Service handlers run without any
// registry lock held, so they may call back into the registry.
type Registry struct {
	mu       sync.RWMutex
	services map[string]ServiceHandler // keyed by "domain.service"
	states   map[string]Entity

	listenerMu sync.RWMutex
	listeners  map[int]func()
	nextID     int

	logger Logger
	now    func() time.Time
}

// NewRegistry creates an empty host registry.
func NewRegistry(logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}
	r := &Registry{
		services:  make(map[string]ServiceHandler),
		states:    make(map[string]Entity),
		listeners: make(map[int]func()),
		logger:    logger,
		now:       time.Now,
	}
	r.registerNotificationServices()
	return r
}

func serviceKey(domain, service string) string {
	return domain + "." + service
}

// RegisterService installs handler for domain.service, replacing any existing one.
func (r *Registry) RegisterService(domain, service string, handler ServiceHandler) error {
	if domain == "" || service == "" || handler == nil {
		return fmt.Errorf("%w: %q.%q", ErrInvalidService, domain, service)
	}

	r.mu.Lock()
	r.services[serviceKey(domain, service)] = handler
	r.mu.Unlock()

	r.logger.Debug("service registered", "domain", domain, "service", service)
	return nil
}

// RemoveService uninstalls domain.service. Removing an unknown service is a no-op.
func (r *Registry) RemoveService(domain, service string) {
	r.mu.Lock()
	delete(r.services, serviceKey(domain, service))
	r.mu.Unlock()
}

// HasService reports whether domain.service is registered.
func (r *Registry) HasService(domain, service string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.services[serviceKey(domain, service)]
	return ok
}

// Services returns the registered "domain.service" names in sorted order.
func (r *Registry) Services() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// CallService invokes the handler registered for domain.service.
//
// A panicking handler is recovered and reported as a *ServiceError so one
// bad service cannot take the host down.
func (r *Registry) CallService(ctx context.Context, domain, service string, data map[string]any) (result map[string]any, err error) {
	r.mu.RLock()
	handler, ok := r.services[serviceKey(domain, service)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrServiceNotFound, domain, service)
	}

	call := ServiceCall{Domain: domain, Service: service, Data: copyData(data)}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("service handler panic recovered",
				"domain", domain,
				"service", service,
				"panic", rec,
			)
			result = nil
			err = NewServiceError("service %s.%s failed unexpectedly", domain, service)
		}
	}()

	return handler(ctx, call)
}

// SetState creates or replaces an entity. attributes is copied.
func (r *Registry) SetState(entityID, state string, attributes map[string]any) {
	e := Entity{
		EntityID:    entityID,
		State:       state,
		Attributes:  attributes,
		LastChanged: r.now().UTC(),
	}.clone()

	r.mu.Lock()
	r.states[entityID] = e
	r.mu.Unlock()

	r.notify()
}

// RemoveState deletes an entity and reports whether it existed.
func (r *Registry) RemoveState(entityID string) bool {
	r.mu.Lock()
	_, ok := r.states[entityID]
	delete(r.states, entityID)
	r.mu.Unlock()

	if ok {
		r.notify()
	}
	return ok
}

// State returns a copy of one entity.
func (r *Registry) State(entityID string) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.states[entityID]
	if !ok {
		return Entity{}, false
	}
	return e.clone(), true
}

// States returns a deep copy of every entity.
func (r *Registry) States(_ context.Context) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(Snapshot, len(r.states))
	for id, e := range r.states {
		snap[id] = e.clone()
	}
	return snap, nil
}

// CreateNotification stores a persistent notification as the entity
// persistent_notification.<notificationID>, replacing any earlier one.
func (r *Registry) CreateNotification(notificationID, title, message string) {
	r.SetState(NotificationEntityID(notificationID), "notifying", map[string]any{
		"title":   title,
		"message": message,
	})
}

// DismissNotification removes a persistent notification.
func (r *Registry) DismissNotification(notificationID string) {
	r.RemoveState(NotificationEntityID(notificationID))
}

// OnChange registers fn to run after every state change. The returned
// function removes it.
func (r *Registry) OnChange(fn func()) (remove func()) {
	r.listenerMu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.listenerMu.Unlock()

	return func() {
		r.listenerMu.Lock()
		delete(r.listeners, id)
		r.listenerMu.Unlock()
	}
}

func (r *Registry) notify() {
	r.listenerMu.RLock()
	fns := make([]func(), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.listenerMu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// registerNotificationServices exposes notifications as services so remote
// callers can raise and clear them.
func (r *Registry) registerNotificationServices() {
	r.services[serviceKey(NotificationDomain, "create")] = func(_ context.Context, call ServiceCall) (map[string]any, error) {
		id, _ := call.Data["notification_id"].(string)
		message, _ := call.Data["message"].(string)
		title, _ := call.Data["title"].(string)
		if id == "" {
			id = fmt.Sprintf("notification_%d", r.now().UnixNano())
		}
		if message == "" {
			return nil, NewServiceError("notification message is required")
		}
		r.CreateNotification(id, title, message)
		return nil, nil
	}

	r.services[serviceKey(NotificationDomain, "dismiss")] = func(_ context.Context, call ServiceCall) (map[string]any, error) {
		id, _ := call.Data["notification_id"].(string)
		if id == "" {
			return nil, NewServiceError("notification_id is required")
		}
		r.DismissNotification(id)
		return nil, nil
	}
}

func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
