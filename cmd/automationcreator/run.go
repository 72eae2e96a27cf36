package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/nerrad567/automation-creator/migrations"

	"github.com/nerrad567/automation-creator/internal/api"
	"github.com/nerrad567/automation-creator/internal/audit"
	"github.com/nerrad567/automation-creator/internal/automation"
	"github.com/nerrad567/automation-creator/internal/host"
	"github.com/nerrad567/automation-creator/internal/infrastructure/config"
	"github.com/nerrad567/automation-creator/internal/infrastructure/database"
	"github.com/nerrad567/automation-creator/internal/infrastructure/influxdb"
	"github.com/nerrad567/automation-creator/internal/infrastructure/logging"
	"github.com/nerrad567/automation-creator/internal/infrastructure/metrics"
	"github.com/nerrad567/automation-creator/internal/infrastructure/mqtt"
	"github.com/nerrad567/automation-creator/internal/session"
	"github.com/nerrad567/automation-creator/internal/submission"
)

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error { //nolint:gocognit,gocyclo // linear startup sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting automation creator",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Prometheus metrics (optional)
	var promMetrics *metrics.Metrics
	if cfg.Metrics.Enabled {
		promMetrics, err = metrics.New(cfg.Metrics)
		if err != nil {
			return fmt.Errorf("creating metrics: %w", err)
		}
		log.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	// Connect to MQTT broker (remote host transport only)
	var mqttClient *mqtt.Client
	if cfg.Host.Transport == config.HostTransportMQTT {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	// In-process host: entity states, notifications and services
	registry := host.NewRegistry(log.Component("host"))
	seedEntities(registry, cfg.Host.Entities)

	// Automation creator service
	var history automation.Repository
	if cfg.Creator.Enabled {
		cr, err := buildCreator(ctx, cfg, registry, db, generationRecorders(influxClient, promMetrics), log.Component("creator"))
		if err != nil {
			return err
		}
		defer cr.close()
		history = cr.repo
	} else {
		log.Info("automation creator service disabled; expecting a remote host")
	}

	// Connection the panel submits through
	var conn host.Connection = registry
	if mqttClient != nil {
		if cfg.Creator.Enabled {
			server, serveErr := host.ServeMQTT(ctx, registry, mqttClient, log.Component("host"))
			if serveErr != nil {
				return fmt.Errorf("serving host over MQTT: %w", serveErr)
			}
			defer func() {
				if closeErr := server.Close(); closeErr != nil {
					log.Error("error stopping MQTT host", "error", closeErr)
				}
			}()
		}

		remote, connErr := host.NewMQTTConnection(mqttClient, cfg.GetCallTimeout(), log.Component("host"))
		if connErr != nil {
			return fmt.Errorf("connecting to host over MQTT: %w", connErr)
		}
		defer func() {
			if closeErr := remote.Close(); closeErr != nil {
				log.Error("error closing host connection", "error", closeErr)
			}
		}()
		conn = remote
	}
	log.Info("host connection ready", "transport", cfg.Host.Transport)

	// Panel sessions
	sessions := session.NewManager(conn, cfg.Panel.Questions, submission.PolicyFromConfig(cfg.Submission), log.Component("session"))
	if influxClient != nil || promMetrics != nil {
		sessions.SetRecorder(submission.RecorderFunc(func(o submission.Outcome, d time.Duration) {
			if influxClient != nil {
				influxClient.WriteSubmission(o.Kind.String(), o.Attempts, o.Corroborated, d)
			}
			if promMetrics != nil {
				promMetrics.ObserveSubmission(o.Kind.String(), o.Attempts, o.Corroborated, d)
			}
		}))
	}

	apiDeps := api.Deps{
		Config:            cfg.API,
		WS:                cfg.WebSocket,
		Security:          cfg.Security,
		Panel:             cfg.Panel,
		Logger:            log.Component("api"),
		Sessions:          sessions,
		Automations:       history,
		Audit:             audit.NewSQLiteRepository(db.DB),
		SubmissionTimeout: cfg.GetSubmissionTimeout(),
		Version:           version,
	}
	if promMetrics != nil {
		if err := promMetrics.TrackSessions(sessions.Len); err != nil {
			return fmt.Errorf("registering session gauge: %w", err)
		}
		apiDeps.Metrics = promMetrics.Handler()
		apiDeps.MetricsPath = cfg.Metrics.Path
	}

	// HTTP API and panel
	apiServer, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API, host transport, creator stores, MQTT, InfluxDB, database.

	log.Info("automation creator stopped")
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil for the local transport)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// seedEntities loads the configured entities into the local host so the
// generator can offer them to the model.
func seedEntities(registry *host.Registry, entities []config.HostEntityConfig) {
	for _, e := range entities {
		state := e.State
		if state == "" {
			state = "unknown"
		}
		attrs := map[string]any{}
		if e.FriendlyName != "" {
			attrs["friendly_name"] = e.FriendlyName
		}
		registry.SetState(e.EntityID, state, attrs)
	}
}

// generationRecorders collects the enabled model-call recorders. Nil
// clients are skipped so no typed nil reaches the interface.
func generationRecorders(influxClient *influxdb.Client, promMetrics *metrics.Metrics) automation.GenerationRecorders {
	var rs automation.GenerationRecorders
	if influxClient != nil {
		rs = append(rs, influxClient)
	}
	if promMetrics != nil {
		rs = append(rs, promMetrics)
	}
	return rs
}

// creator holds the automation service and the resources it owns.
type creator struct {
	service *automation.Service
	repo    automation.Repository
	closers []func() error
	log     *logging.Logger
}

func (c *creator) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.log.Error("error closing creator resource", "error", err)
		}
	}
}

// buildCreator wires the automation service onto registry.
//
// A missing API key is not fatal: the service still registers and every
// creation call is rejected with an API error notification.
func buildCreator(ctx context.Context, cfg *config.Config, registry *host.Registry, db *database.DB, telemetry automation.GenerationRecorders, log *logging.Logger) (*creator, error) {
	c := &creator{
		repo: automation.NewSQLiteRepository(db.DB),
		log:  log,
	}

	opts := automation.ServiceOptions{
		Repository:   c.repo,
		InlineResult: cfg.Creator.InlineResult,
		UseChoose:    cfg.Creator.UseChoose,
		Logger:       log,
	}

	gen, err := automation.NewLLMGenerator(automation.LLMOptions{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
	})
	switch {
	case errors.Is(err, automation.ErrNotConfigured):
		log.Warn("no LLM API key configured; automation creation will fail until one is set")
	case err != nil:
		return nil, fmt.Errorf("creating generator: %w", err)
	default:
		opts.Generator = gen
		log.Info("LLM generator ready", "provider", cfg.LLM.Provider, "model", gen.Model())
	}

	switch cfg.Creator.ResultStore {
	case config.ResultStoreRedis:
		store, storeErr := automation.NewRedisResultStore(cfg.Redis.URL, cfg.GetRedisTTL())
		if storeErr != nil {
			return nil, fmt.Errorf("connecting result store: %w", storeErr)
		}
		c.closers = append(c.closers, store.Close)
		opts.Store = store
		log.Info("redis result store connected", "ttl", cfg.GetRedisTTL())
	default:
		opts.Store = automation.NewMemoryResultStore()
	}

	if cfg.Creator.AutomationsFile != "" {
		opts.File = automation.NewAutomationsFile(cfg.Creator.AutomationsFile)
	}

	if len(telemetry) > 0 {
		opts.Telemetry = telemetry
	}

	c.service = automation.NewService(registry, opts)
	if err := c.service.Register(); err != nil {
		c.close()
		return nil, fmt.Errorf("registering automation services: %w", err)
	}

	if opts.File != nil {
		count, reloadErr := c.service.Reload()
		if reloadErr != nil {
			log.Warn("could not load existing automations", "path", cfg.Creator.AutomationsFile, "error", reloadErr)
		} else {
			log.Info("automations loaded", "path", cfg.Creator.AutomationsFile, "count", count)
		}

		if cfg.Creator.WatchFile {
			if err := c.service.WatchFile(ctx); err != nil {
				log.Warn("not watching automations file", "error", err)
			}
		}
	}

	return c, nil
}
