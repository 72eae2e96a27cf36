package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/automation-creator/internal/auth"
	"github.com/nerrad567/automation-creator/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Handle("/panel/*", http.StripPrefix("/panel", panel.Handler(panel.Options{Dir: s.panelCfg.WebDir, Title: s.panelCfg.SidebarTitle})))
	r.Handle("/panel", http.RedirectHandler("/panel/", http.StatusMovedPermanently))
	r.Handle("/", http.RedirectHandler("/panel/", http.StatusFound))

	if s.metrics != nil {
		r.Handle(s.metricsPath, s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// No auth required
		r.Get("/health", s.handleHealth)
		r.Get("/panel", s.handlePanelInfo)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermSessionOperate))

				r.Post("/auth/ws-ticket", s.handleWSTicket)

				r.Route("/sessions", func(r chi.Router) {
					r.Get("/", s.handleListSessions)
					r.Post("/", s.handleCreateSession)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", s.handleGetSession)
						r.Delete("/", s.handleDeleteSession)
						r.Post("/answer", s.handleAnswer)
						r.Post("/submit", s.handleSubmit)
						r.Post("/reset", s.handleReset)
					})
				})
			})

			if s.automations != nil {
				r.Route("/automations", func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermAutomationRead))

					r.Get("/", s.handleListAutomations)
					r.Get("/latest", s.handleLatestAutomation)
					r.Get("/{id}", s.handleGetAutomation)
					r.With(s.requirePermission(auth.PermSystemAdmin)).Delete("/{id}", s.handleDeleteAutomation)
				})
			}

			if s.auditRepo != nil {
				r.With(s.requirePermission(auth.PermSystemAdmin)).Get("/audit", s.handleListAudit)
			}
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"sessions": s.sessions.Len(),
	})
}

// handlePanelInfo returns what the UI needs before the user authenticates.
func (s *Server) handlePanelInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"title":         s.panelCfg.SidebarTitle,
		"icon":          s.panelCfg.SidebarIcon,
		"require_admin": true,
		"modes":         []string{"guided", "single"},
		"version":       s.version,
	})
}
