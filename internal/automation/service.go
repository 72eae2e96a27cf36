package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/automation-creator/internal/host"
)

// Host is the part of the host registry the service needs.
// *host.Registry satisfies it.
type Host interface {
	RegisterService(domain, service string, handler host.ServiceHandler) error
	CallService(ctx context.Context, domain, service string, data map[string]any) (map[string]any, error)
	States(ctx context.Context) (host.Snapshot, error)
	SetState(entityID, state string, attributes map[string]any)
	CreateNotification(notificationID, title, message string)
	DismissNotification(notificationID string)
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	// Generator is nil when no model is configured; creation then fails
	// with an API error notification.
	Generator Generator

	// Store holds the latest result. Defaults to a MemoryResultStore.
	Store ResultStore

	// Repository records every generated automation. May be nil.
	Repository Repository

	// File receives generated automations. May be nil.
	File *AutomationsFile

	// InlineResult returns the YAML in the create_automation response.
	InlineResult bool

	// UseChoose wraps actions in a choose block keyed by trigger ID.
	UseChoose bool

	// Telemetry receives one sample per model call. May be nil.
	Telemetry GenerationRecorder

	Logger Logger
}

// GenerationRecorder records model calls. *influxdb.Client satisfies it.
type GenerationRecorder interface {
	WriteGeneration(model string, ok bool, duration time.Duration)
}

// GenerationRecorders fans one sample out to several recorders.
type GenerationRecorders []GenerationRecorder

// WriteGeneration implements GenerationRecorder.
func (rs GenerationRecorders) WriteGeneration(model string, ok bool, duration time.Duration) {
	for _, r := range rs {
		r.WriteGeneration(model, ok, duration)
	}
}

// Service implements the automation creator host services.
type Service struct {
	host  Host
	opts  ServiceOptions
	store ResultStore
	log   Logger
	now   func() time.Time

	// watchDebounce coalesces bursts of file events into one reload.
	watchDebounce time.Duration
}

// NewService creates a service bound to h. Call Register to expose it.
func NewService(h Host, opts ServiceOptions) *Service {
	store := opts.Store
	if store == nil {
		store = NewMemoryResultStore()
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{
		host:  h,
		opts:  opts,
		store: store,
		log:   logger,
		now:   time.Now,

		watchDebounce: defaultWatchDebounce,
	}
}

// Register adds create_automation, get_automation_yaml and, when a file is
// configured, automation.reload to the host.
func (s *Service) Register() error {
	if err := s.host.RegisterService(Domain, ServiceCreate, s.handleCreate); err != nil {
		return fmt.Errorf("registering %s.%s: %w", Domain, ServiceCreate, err)
	}
	if err := s.host.RegisterService(Domain, ServiceFetch, s.handleFetch); err != nil {
		return fmt.Errorf("registering %s.%s: %w", Domain, ServiceFetch, err)
	}
	if s.opts.File != nil {
		if err := s.host.RegisterService(ReloadDomain, ServiceReload, s.handleReload); err != nil {
			return fmt.Errorf("registering %s.%s: %w", ReloadDomain, ServiceReload, err)
		}
	}
	return nil
}

// Create generates, normalizes and stores an automation for description.
//
// Every outcome is reported through a persistent notification. Those left
// by an earlier creation are dismissed first, so whatever notification
// exists afterwards belongs to this call. The automation is kept as the
// latest result even when the file cannot be written.
func (s *Service) Create(ctx context.Context, description string) (*Record, error) {
	if err := ValidateDescription(description); err != nil {
		return nil, host.NewServiceError("%s", err.Error())
	}
	s.clearNotifications()

	if s.opts.Generator == nil {
		s.host.CreateNotification(NotificationAPIError, titleError,
			"OpenAI API key not configured. Please set up the integration properly.")
		return nil, host.NewServiceError("OpenAI API key not configured")
	}

	start := s.now()
	raw, err := s.opts.Generator.Generate(ctx, description, s.entityHints(ctx))
	if s.opts.Telemetry != nil {
		s.opts.Telemetry.WriteGeneration(s.opts.Generator.Model(), err == nil, s.now().Sub(start))
	}
	if err != nil {
		s.log.Error("automation generation failed", "error", err)
		s.host.CreateNotification(NotificationError, titleError,
			fmt.Sprintf("Error creating automation: %v", err))
		return nil, host.NewServiceError("Error creating automation: %v", err)
	}

	norm, err := Normalize(CleanResponse(raw), NormalizeOptions{
		Description: description,
		Now:         s.now(),
		UseChoose:   s.opts.UseChoose,
	})
	if err != nil {
		s.log.Warn("generated automation rejected", "error", err)
		s.host.CreateNotification(NotificationGenerationError, titleError,
			"Failed to generate automation YAML. Please try a different description.")
		return nil, host.NewServiceError("Failed to generate automation YAML. Please try a different description.")
	}

	if err := s.store.Save(ctx, norm.YAML); err != nil {
		s.log.Error("saving latest result", "error", err)
	}

	rec := &Record{
		AutomationID: norm.ID,
		Alias:        norm.Alias,
		Description:  description,
		YAML:         norm.YAML,
		Model:        s.opts.Generator.Model(),
		CreatedAt:    s.now().UTC(),
	}

	rec.Saved = s.saveToFile(ctx, rec)

	if s.opts.Repository != nil {
		if err := s.opts.Repository.Create(ctx, rec); err != nil {
			s.log.Error("recording generated automation", "automation_id", rec.AutomationID, "error", err)
		}
	}

	s.log.Info("automation created",
		"automation_id", rec.AutomationID,
		"alias", rec.Alias,
		"saved", rec.Saved,
	)
	return rec, nil
}

// Latest returns the most recently generated YAML or ErrNoResult.
func (s *Service) Latest(ctx context.Context) (string, error) {
	return s.store.Latest(ctx)
}

// Reload publishes an automation entity for every automation in the file.
// Returns the number of automations found.
func (s *Service) Reload() (int, error) {
	if s.opts.File == nil {
		return 0, nil
	}
	entries, err := s.opts.File.Load()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		attrs := map[string]any{"id": e.ID}
		if e.Alias != "" {
			attrs["friendly_name"] = e.Alias
		}
		s.host.SetState(entityIDPrefix+e.ID, "on", attrs)
		count++
	}
	return count, nil
}

// saveToFile appends rec to the automations file and reloads the host.
// Reports false when there is no file or the write failed.
func (s *Service) saveToFile(ctx context.Context, rec *Record) bool {
	if s.opts.File == nil {
		s.notifySuccess(rec.Description)
		return false
	}

	if err := s.opts.File.Append(rec.YAML); err != nil {
		s.log.Warn("writing automations file", "path", s.opts.File.Path(), "error", err)
		s.host.CreateNotification(NotificationWarning, titleWarning,
			fmt.Sprintf("Automation was generated but could not be saved to file: %v", err))
		return false
	}

	if _, err := s.host.CallService(ctx, ReloadDomain, ServiceReload, nil); err != nil && !errors.Is(err, host.ErrServiceNotFound) {
		s.log.Warn("reloading automations", "error", err)
	}

	s.notifySuccess(rec.Description)
	return true
}

// outcomeNotifications are the notifications Create may leave behind.
var outcomeNotifications = []string{
	NotificationSuccess,
	NotificationWarning,
	NotificationError,
	NotificationAPIError,
	NotificationGenerationError,
}

func (s *Service) clearNotifications() {
	for _, id := range outcomeNotifications {
		s.host.DismissNotification(id)
	}
}

func (s *Service) notifySuccess(description string) {
	s.host.CreateNotification(NotificationSuccess, titleSuccess,
		fmt.Sprintf("Successfully created automation from: %s", description))
}

// entityHints lists the host entities for the prompt, skipping
// notifications and automations.
func (s *Service) entityHints(ctx context.Context) []string {
	snap, err := s.host.States(ctx)
	if err != nil {
		s.log.Debug("no entity list for prompt", "error", err)
		return nil
	}

	var hints []string
	for _, id := range snap.EntityIDs() {
		e := snap[id]
		switch e.Domain() {
		case host.NotificationDomain, ReloadDomain:
			continue
		}
		if name := e.FriendlyName(); name != "" && name != id {
			hints = append(hints, id+" ("+name+")")
		} else {
			hints = append(hints, id)
		}
	}
	return hints
}

// ─── Host service handlers ──────────────────────────────────────────────────

func (s *Service) handleCreate(ctx context.Context, call host.ServiceCall) (map[string]any, error) {
	description, _ := call.Data["description"].(string)
	rec, err := s.Create(ctx, strings.TrimSpace(description))
	if err != nil {
		return nil, err
	}
	if !s.opts.InlineResult {
		return nil, nil
	}
	return map[string]any{
		"success":       true,
		"automation":    rec.YAML,
		"automation_id": rec.AutomationID,
	}, nil
}

func (s *Service) handleFetch(ctx context.Context, _ host.ServiceCall) (map[string]any, error) {
	latest, err := s.store.Latest(ctx)
	if err != nil && !errors.Is(err, ErrNoResult) {
		return nil, err
	}
	return map[string]any{"yaml": latest}, nil
}

func (s *Service) handleReload(_ context.Context, _ host.ServiceCall) (map[string]any, error) {
	count, err := s.Reload()
	if err != nil {
		return nil, host.NewServiceError("Error reloading automations: %v", err)
	}
	return map[string]any{"count": count}, nil
}
