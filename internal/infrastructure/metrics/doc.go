// Package metrics exposes automation creator metrics in the Prometheus
// text format.
//
// A Metrics value owns its own registry so tests and multiple servers in
// one process never collide on the global default registerer. It records
// submission outcomes, model calls and the number of open panel sessions.
package metrics
