package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/automation-creator/internal/audit"
	"github.com/nerrad567/automation-creator/internal/conversation"
	"github.com/nerrad567/automation-creator/internal/session"
)

// createSessionRequest is the body for POST /sessions. The body is optional.
type createSessionRequest struct {
	Mode string `json:"mode" validate:"omitempty,oneof=guided single"`
}

// textRequest is the body for /answer and /submit.
type textRequest struct {
	Text string `json:"text" validate:"max=4000"`
}

// decodeOptional decodes a JSON body into v. An empty body leaves v unchanged.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// handleListSessions returns every open session.
func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	states := s.sessions.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": states,
		"count":    len(states),
	})
}

// handleCreateSession opens a new session in the requested mode.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeOptional(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidation(w, validationMessage(err))
		return
	}

	mode, err := session.ParseMode(req.Mode)
	if err != nil {
		writeValidation(w, "mode must be one of: guided, single")
		return
	}

	ctrl, err := s.sessions.Create(mode)
	if err != nil {
		s.logger.Error("failed to create session", "error", err)
		writeInternalError(w, "failed to create session")
		return
	}

	s.auditLog(r, audit.ActionSessionCreate, audit.EntitySession, ctrl.ID(), map[string]any{
		"mode": string(ctrl.Mode()),
	})
	writeJSON(w, http.StatusCreated, ctrl.State())
}

// handleGetSession returns the current state of a session.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ctrl.State())
}

// handleDeleteSession closes a session. Sessions that are submitting
// cannot be closed.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Delete(id); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.hub.PublishDeleted(id)
	s.auditLog(r, audit.ActionSessionDelete, audit.EntitySession, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleAnswer records the answer to the current guided question.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidation(w, validationMessage(err))
		return
	}

	state, err := ctrl.SubmitAnswer(req.Text)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleSubmit starts a submission.
//
// By default the submission resolves in the background and the response is
// 202 with the submitting state. With ?wait=true the handler blocks until
// the submission resolves and returns the final state with 200.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	var req textRequest
	if err := decodeOptional(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidation(w, validationMessage(err))
		return
	}

	wait := false
	if v := r.URL.Query().Get("wait"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "wait must be a boolean")
			return
		}
		wait = parsed
	}

	// The submission outlives the request unless the caller waits for it.
	ctx, cancel := s.submissionContext()
	state, done, err := ctrl.StartSubmit(ctx, req.Text)
	if err != nil {
		cancel()
		s.writeSessionError(w, err)
		return
	}

	s.auditLog(r, audit.ActionSessionSubmit, audit.EntitySession, ctrl.ID(), map[string]any{
		"mode":        string(ctrl.Mode()),
		"description": state.PendingDescription,
	})
	resolved := s.resolveAuditor(r, ctrl.ID())

	if wait {
		s.extendWriteDeadline(w, r)
		final := <-done
		cancel()
		resolved(final)
		writeJSON(w, http.StatusOK, final)
		return
	}

	go func() {
		final := <-done
		cancel()
		resolved(final)
	}()
	writeJSON(w, http.StatusAccepted, state)
}

// handleReset returns a session to collecting with a fresh conversation.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	state, err := ctrl.Reset()
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.auditLog(r, audit.ActionSessionReset, audit.EntitySession, ctrl.ID(), nil)
	writeJSON(w, http.StatusOK, state)
}

// resolveAuditor returns a func that records how a submission ended. The
// request is captured up front since the func may run after the handler
// has returned.
func (s *Server) resolveAuditor(r *http.Request, sessionID string) func(session.State) {
	subject := ""
	if claims, ok := claimsFromContext(r.Context()); ok {
		subject = claims.Subject
	}
	return func(final session.State) {
		details := map[string]any{
			"phase":   string(final.Phase),
			"outcome": final.Outcome,
		}
		if final.ErrorText != "" {
			details["error"] = final.ErrorText
		}
		s.enqueueAudit(&audit.Entry{
			Action:     audit.ActionSessionResolve,
			EntityType: audit.EntitySession,
			EntityID:   sessionID,
			Subject:    subject,
			Source:     "api",
			Details:    details,
		})
	}
}

// lookupSession resolves the {id} URL parameter, writing a 404 if unknown.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	ctrl, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeSessionError(w, err)
		return nil, false
	}
	return ctrl, true
}

// writeSessionError maps session and conversation errors to HTTP responses.
func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionClosed):
		writeNotFound(w, "session not found")
	case errors.Is(err, session.ErrSubmissionInFlight):
		writeConflict(w, "a submission is already in progress")
	case errors.Is(err, session.ErrResetNotAllowed):
		writeConflict(w, "cannot reset while a submission is in progress")
	case errors.Is(err, session.ErrNotCollecting):
		writeConflict(w, "session has finished; reset it to start again")
	case errors.Is(err, session.ErrWrongMode):
		writeValidation(w, "answers are only accepted in guided mode")
	case errors.Is(err, conversation.ErrEmptyInput):
		writeValidation(w, "text must not be empty")
	case errors.Is(err, conversation.ErrNotComplete):
		writeValidation(w, "answer every question before submitting")
	case errors.Is(err, conversation.ErrComplete):
		writeValidation(w, "every question has already been answered")
	default:
		s.logger.Error("session operation failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}

// waitWriteMargin is added to the submission timeout when a ?wait=true
// request stretches the server's write deadline.
const waitWriteMargin = 5 * time.Second

// extendWriteDeadline lets a waiting submit outlive api.timeouts.write: the
// final state is written after at most submission.timeout.
func (s *Server) extendWriteDeadline(w http.ResponseWriter, r *http.Request) {
	deadline := time.Now().Add(s.submissionTimeout + waitWriteMargin)
	if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil {
		s.logger.Debug("write deadline not extended", "error", err, "request_id", requestIDFrom(r.Context()))
	}
}
