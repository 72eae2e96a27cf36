// Package api implements the HTTP REST API and WebSocket server for the
// automation creator.
//
// This package provides:
//   - REST endpoints to open creator sessions, answer questions, submit and reset
//   - read access to the history of generated automations
//   - WebSocket hub broadcasting session state changes
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - the embedded panel UI under /panel/
//
// # Security
//
// Every endpoint except /health, /panel and the WebSocket upgrade requires a
// Bearer token. Session endpoints need the admin role. WebSocket connections
// use single-use tickets so tokens never appear in URLs.
//
// # Submissions
//
// POST /sessions/{id}/submit returns 202 with the submitting state and
// resolves in the background; the final state arrives on the
// "session.state_changed" WebSocket channel. Pass ?wait=true to block until
// the submission resolves instead.
package api
