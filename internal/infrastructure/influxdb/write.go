package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementSubmissions = "submissions"
	measurementGenerations = "generations"
)

// WriteSubmission records one resolved panel submission.
//
// Parameters:
//   - outcome: success, pending_fetch or failure
//   - attempts: fetch calls made while polling
//   - corroborated: whether a pending result was confirmed by a notification
//   - duration: time from the creation call to resolution
//
// Example:
//
//	client.WriteSubmission("pending_fetch", 3, true, 4500*time.Millisecond)
func (c *Client) WriteSubmission(outcome string, attempts int, corroborated bool, duration time.Duration) {
	c.WritePoint(measurementSubmissions,
		map[string]string{"outcome": outcome},
		map[string]interface{}{
			"attempts":     attempts,
			"corroborated": corroborated,
			"duration_ms":  duration.Milliseconds(),
		},
	)
}

// WriteGeneration records one model call made by the creator service.
func (c *Client) WriteGeneration(model string, ok bool, duration time.Duration) {
	status := "ok"
	if !ok {
		status = "error"
	}
	c.WritePoint(measurementGenerations,
		map[string]string{"model": model, "status": status},
		map[string]interface{}{"duration_ms": duration.Milliseconds()},
	)
}

// WritePoint writes a custom point stamped now. Dropped when disconnected.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, c.now()))
}
