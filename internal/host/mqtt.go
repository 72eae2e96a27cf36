package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/automation-creator/internal/infrastructure/mqtt"
)

// Response codes carried in serviceResponse.Code.
const (
	codeServiceError    = "service_error"
	codeServiceNotFound = "service_not_found"
	codeInternalError   = "internal_error"
	codeBadRequest      = "bad_request"
)

// defaultCallTimeout applies when NewMQTTConnection is given a zero timeout.
const defaultCallTimeout = 60 * time.Second

// Broker is the part of the MQTT client the host transport uses.
// *mqtt.Client satisfies it.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	QoS() byte
}

// serviceRequest is the payload published on a service request topic.
type serviceRequest struct {
	Data map[string]any `json:"data"`
}

// serviceResponse is the payload published on a service response topic.
type serviceResponse struct {
	ID      string         `json:"id"`
	Success bool           `json:"success"`
	Result  map[string]any `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    string         `json:"code,omitempty"`
}

// =============================================================================
// Client side
// =============================================================================

// MQTTConnection is a Connection to a host served by ServeMQTT.
//
// Calls are correlated by a UUID in the request topic. The entity snapshot
// is taken from the retained host states topic.
//
// Thread Safety: all methods are safe for concurrent use.
type MQTTConnection struct {
	broker  Broker
	timeout time.Duration
	logger  Logger

	pendingMu sync.Mutex
	pending   map[string]chan serviceResponse

	statesMu sync.RWMutex
	states   Snapshot
}

// NewMQTTConnection subscribes to service responses and host states.
//
// Parameters:
//   - broker: connected MQTT client
//   - timeout: upper bound on a single service call (0 uses 60s)
//   - logger: may be nil
func NewMQTTConnection(broker Broker, timeout time.Duration, logger Logger) (*MQTTConnection, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	c := &MQTTConnection{
		broker:  broker,
		timeout: timeout,
		logger:  logger,
		pending: make(map[string]chan serviceResponse),
	}

	topics := mqtt.Topics{}
	if err := broker.Subscribe(topics.AllServiceResponses(), broker.QoS(), c.handleResponse); err != nil {
		return nil, fmt.Errorf("subscribing to service responses: %w", err)
	}
	if err := broker.Subscribe(topics.HostStates(), broker.QoS(), c.handleStates); err != nil {
		_ = broker.Unsubscribe(topics.AllServiceResponses())
		return nil, fmt.Errorf("subscribing to host states: %w", err)
	}

	return c, nil
}

// CallService publishes a request and waits for the matching response.
//
// Returns ErrTimeout when no response arrives within the call timeout,
// ErrServiceNotFound when the host has no such service, and a *ServiceError
// for any other rejection.
func (c *MQTTConnection) CallService(ctx context.Context, domain, service string, data map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(serviceRequest{Data: data})
	if err != nil {
		return nil, fmt.Errorf("encoding %s.%s request: %w", domain, service, err)
	}

	id := uuid.NewString()
	ch := make(chan serviceResponse, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	topic := mqtt.Topics{}.ServiceRequest(domain, service, id)
	if err := c.broker.Publish(topic, payload, c.broker.QoS(), false); err != nil {
		return nil, fmt.Errorf("publishing %s.%s request: %w", domain, service, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp.result(domain, service)
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for %s.%s: %w", domain, service, ctx.Err())
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s.%s after %v", ErrTimeout, domain, service, c.timeout)
	}
}

// States returns the last snapshot the host published.
func (c *MQTTConnection) States(_ context.Context) (Snapshot, error) {
	c.statesMu.RLock()
	defer c.statesMu.RUnlock()

	if c.states == nil {
		return nil, ErrStatesUnavailable
	}
	snap := make(Snapshot, len(c.states))
	for id, e := range c.states {
		snap[id] = e.clone()
	}
	return snap, nil
}

// Close drops the subscriptions made by NewMQTTConnection.
func (c *MQTTConnection) Close() error {
	topics := mqtt.Topics{}
	return errors.Join(
		c.broker.Unsubscribe(topics.AllServiceResponses()),
		c.broker.Unsubscribe(topics.HostStates()),
	)
}

func (c *MQTTConnection) handleResponse(topic string, payload []byte) error {
	id, ok := mqtt.Topics{}.ParseServiceResponse(topic)
	if !ok {
		return fmt.Errorf("unexpected response topic %q", topic)
	}

	var resp serviceResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("decoding response %s: %w", id, err)
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	c.pendingMu.Unlock()
	if !ok {
		// Late response for a call that already timed out.
		c.logger.Debug("dropping unmatched service response", "request_id", id)
		return nil
	}

	select {
	case ch <- resp:
	default:
	}
	return nil
}

func (c *MQTTConnection) handleStates(_ string, payload []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return fmt.Errorf("decoding host states: %w", err)
	}
	if snap == nil {
		snap = Snapshot{}
	}

	c.statesMu.Lock()
	c.states = snap
	c.statesMu.Unlock()
	return nil
}

func (r serviceResponse) result(domain, service string) (map[string]any, error) {
	if r.Success {
		return r.Result, nil
	}
	switch r.Code {
	case codeServiceNotFound:
		return nil, fmt.Errorf("%w: %s.%s", ErrServiceNotFound, domain, service)
	default:
		return nil, &ServiceError{Message: r.Error}
	}
}

// =============================================================================
// Host side
// =============================================================================

// MQTTServer answers service requests arriving over MQTT from a Registry
// and keeps the retained host states topic current.
type MQTTServer struct {
	registry      *Registry
	broker        Broker
	logger        Logger
	ctx           context.Context
	removeWatcher func()
	wg            sync.WaitGroup
}

// ServeMQTT exposes registry over broker until Close is called or ctx ends.
// Each request is handled in its own goroutine with ctx as its parent.
func ServeMQTT(ctx context.Context, registry *Registry, broker Broker, logger Logger) (*MQTTServer, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	s := &MQTTServer{
		registry: registry,
		broker:   broker,
		logger:   logger,
		ctx:      ctx,
	}

	if err := broker.Subscribe(mqtt.Topics{}.AllServiceRequests(), broker.QoS(), s.handleRequest); err != nil {
		return nil, fmt.Errorf("subscribing to service requests: %w", err)
	}

	s.removeWatcher = registry.OnChange(s.publishStates)
	s.publishStates()

	return s, nil
}

// Close stops accepting requests and waits for in-flight ones to finish.
func (s *MQTTServer) Close() error {
	s.removeWatcher()
	err := s.broker.Unsubscribe(mqtt.Topics{}.AllServiceRequests())
	s.wg.Wait()
	return err
}

func (s *MQTTServer) handleRequest(topic string, payload []byte) error {
	domain, service, id, ok := mqtt.Topics{}.ParseServiceRequest(topic)
	if !ok {
		return fmt.Errorf("unexpected request topic %q", topic)
	}

	var req serviceRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.respond(serviceResponse{ID: id, Error: "malformed request", Code: codeBadRequest})
		return fmt.Errorf("decoding request %s: %w", id, err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		result, err := s.registry.CallService(s.ctx, domain, service, req.Data)
		resp := serviceResponse{ID: id, Success: err == nil, Result: result}
		if err != nil {
			resp.Error, resp.Code = classify(err)
			s.logger.Warn("service call rejected",
				"domain", domain,
				"service", service,
				"request_id", id,
				"error", err,
			)
		}
		s.respond(resp)
	}()

	return nil
}

func (s *MQTTServer) respond(resp serviceResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("encoding service response", "request_id", resp.ID, "error", err)
		return
	}
	if err := s.broker.Publish(mqtt.Topics{}.ServiceResponse(resp.ID), payload, s.broker.QoS(), false); err != nil {
		s.logger.Error("publishing service response", "request_id", resp.ID, "error", err)
	}
}

func (s *MQTTServer) publishStates() {
	snap, _ := s.registry.States(s.ctx)
	payload, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error("encoding host states", "error", err)
		return
	}
	if err := s.broker.Publish(mqtt.Topics{}.HostStates(), payload, s.broker.QoS(), true); err != nil {
		s.logger.Warn("publishing host states", "error", err)
	}
}

// classify maps a registry error to the wire message and code.
func classify(err error) (message, code string) {
	var se *ServiceError
	switch {
	case errors.As(err, &se):
		return se.Message, codeServiceError
	case errors.Is(err, ErrServiceNotFound):
		return err.Error(), codeServiceNotFound
	default:
		return "internal error", codeInternalError
	}
}
