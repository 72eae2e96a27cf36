package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/automation-creator/internal/auth"
)

// ticketTTL bounds the gap between POST /auth/ws-ticket and the upgrade.
const ticketTTL = 60 * time.Second

// wsTicket is the identity a WebSocket ticket stands in for. Browsers
// cannot set headers on an upgrade, so the JWT is exchanged for a
// single-use ticket that can go in the query string.
type wsTicket struct {
	subject   string
	role      auth.Role
	expiresAt time.Time
}

type ticketStore struct {
	mu      sync.Mutex
	pending map[string]wsTicket
	now     func() time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{pending: make(map[string]wsTicket), now: time.Now}
}

// issue returns a fresh random ticket. Expired tickets are pruned here, so
// the store never outgrows the tickets issued within one TTL.
func (ts *ticketStore) issue(subject string, role auth.Role) string {
	id := uuid.NewString()

	ts.mu.Lock()
	defer ts.mu.Unlock()
	now := ts.now()
	ts.pruneLocked(now)
	ts.pending[id] = wsTicket{subject: subject, role: role, expiresAt: now.Add(ticketTTL)}
	return id
}

// consume removes the ticket and reports whether it was still valid.
func (ts *ticketStore) consume(id string) (wsTicket, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	t, ok := ts.pending[id]
	if !ok {
		return wsTicket{}, false
	}
	delete(ts.pending, id)
	if !ts.now().Before(t.expiresAt) {
		return wsTicket{}, false
	}
	return t, true
}

func (ts *ticketStore) pruneLocked(now time.Time) {
	for id, t := range ts.pending {
		if !now.Before(t.expiresAt) {
			delete(ts.pending, id)
		}
	}
}

func (ts *ticketStore) len() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.pending)
}

// handleWSTicket exchanges the caller's bearer token for a ticket.
//
//	POST /api/v1/auth/ws-ticket → {"ticket": "...", "expires_in": 60}
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     s.tickets.issue(claims.Subject, claims.Role),
		"expires_in": int(ticketTTL.Seconds()),
	})
}
