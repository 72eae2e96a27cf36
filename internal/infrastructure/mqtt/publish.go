package mqtt

import (
	"encoding/json"
	"fmt"
)

// maxPayloadSize caps one message at 1MB. Generated automations are a few
// KB; anything near the cap is a bug upstream.
const maxPayloadSize = 1 << 20

// Publish sends payload and waits for the broker to acknowledge it.
//
// Only the host snapshot and the system status are retained. Requests and
// responses are correlated per call and must not be replayed to later
// subscribers.
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or wrapping
//     ErrPublishFailed (including oversized payloads)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkTarget(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return await(c.paho.Publish(topic, qos, retained, payload), defaultPublishTimeout, ErrPublishFailed)
}

// PublishJSON encodes v and publishes it at the configured QoS.
func (c *Client) PublishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, payload, c.QoS(), retained)
}
