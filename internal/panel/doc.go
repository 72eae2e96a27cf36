// Package panel serves the automation creator's browser UI.
//
// The UI is a single static page embedded into the binary with go:embed.
// It talks to the REST API under /api/v1 and listens for session updates
// on the WebSocket endpoint. Handler serves the embedded copy, or a
// directory on disk when one is configured so the page can be edited
// without a rebuild.
//
// index.html is rendered with the configured panel title. Unknown paths
// fall back to it so deep links keep working.
package panel
