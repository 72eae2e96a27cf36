package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/automation-creator/internal/audit"
)

// auditChanSize is the buffer size for the async audit channel.
// Entries beyond this are dropped so requests never wait on SQLite.
const auditChanSize = 256

// auditLog enqueues an audit entry for asynchronous write (best-effort).
// If the channel is full the entry is dropped and a warning is logged.
func (s *Server) auditLog(r *http.Request, action, entityType, entityID string, details map[string]any) {
	if s.auditRepo == nil {
		return
	}

	subject := ""
	if claims, ok := claimsFromContext(r.Context()); ok {
		subject = claims.Subject
	}
	s.enqueueAudit(&audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Subject:    subject,
		Source:     "api",
		Details:    details,
	})
}

func (s *Server) enqueueAudit(entry *audit.Entry) {
	if s.auditRepo == nil {
		return
	}
	select {
	case s.auditCh <- entry:
	default:
		s.logger.Warn("audit channel full, dropping entry",
			"action", entry.Action,
			"entity_type", entry.EntityType,
		)
	}
}

// drainAuditLog writes queued entries serially until ctx ends, then
// flushes whatever is left.
func (s *Server) drainAuditLog(ctx context.Context) {
	defer close(s.auditDone)
	for {
		select {
		case entry := <-s.auditCh:
			s.writeAudit(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-s.auditCh:
					s.writeAudit(entry)
				default:
					return
				}
			}
		}
	}
}

func (s *Server) writeAudit(entry *audit.Entry) {
	if err := s.auditRepo.Create(context.Background(), entry); err != nil {
		s.logger.Error("audit write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}

// handleListAudit returns a page of audit entries.
//
// Query parameters:
//   - action: e.g. session.submit
//   - entity_type: session or automation
//   - entity_id, subject: exact match
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Subject:    q.Get("subject"),
	}

	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeBadRequest(w, name+" must be a non-negative integer")
				return
			}
			*dst = n
		}
	}

	page, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, page)
}
