// Package influxdb records automation creator telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Two measurements are
// written:
//   - submissions: one point per resolved panel submission (outcome tag;
//     attempts, corroborated and duration_ms fields)
//   - generations: one point per model call (model and status tags;
//     duration_ms field)
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry is optional
//	}
//	defer client.Close()
//
//	client.WriteSubmission("success", 0, false, 2*time.Second)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; async write errors go
// to the SetOnError callback.
package influxdb
