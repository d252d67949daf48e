package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sadopc/habitlab/internal/config"
	"github.com/sadopc/habitlab/internal/logging"
	"github.com/sadopc/habitlab/internal/notify"
	"github.com/sadopc/habitlab/internal/store"
	"github.com/sadopc/habitlab/internal/telemetry"
	"github.com/sadopc/habitlab/internal/tracker"
)

// env is what every command runs against: config, logger, store and
// metrics, opened once before the command and closed after it.
type env struct {
	cfg      config.Config
	log      *logging.Logger
	store    *store.Store
	loc      *time.Location
	registry *prometheus.Registry
	metrics  *telemetry.Metrics
	now      func() time.Time
}

func openEnv(configPath string, verbose bool) (*env, error) {
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}
	cfg, created, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		File:   cfg.Log.File,
		Stderr: verbose,
	})
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("created default config", "path", configPath, "user_id", cfg.UserID)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Close()
		return nil, err
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "path", cfg.DBPath, "error", err)
		logger.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	st.SetLocation(loc)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &env{
		cfg:      cfg,
		log:      logger,
		store:    st,
		loc:      loc,
		registry: reg,
		metrics:  telemetry.New(reg),
		now:      time.Now,
	}, nil
}

func (e *env) Close() error {
	err := e.store.Close()
	if cerr := e.log.Close(); err == nil {
		err = cerr
	}
	return err
}

// session signs in as the configured user.
func (e *env) session(ctx context.Context) (*tracker.Session, error) {
	s := tracker.NewSession(tracker.Deps{
		Repo:     e.store,
		Logger:   e.log.Logger,
		Metrics:  e.metrics,
		Now:      e.now,
		Location: e.loc,
	})
	if err := s.SignIn(ctx, tracker.StaticAuthenticator(e.cfg.UserID)); err != nil {
		return nil, err
	}
	return s, nil
}

func (e *env) dispatcher() *notify.Dispatcher {
	n := e.cfg.Notifications
	return notify.NewDispatcher(e.store, notify.LogSender{Logger: e.log.Logger}, notify.Options{
		Title:         n.Title,
		Body:          n.Body,
		URL:           n.URL,
		RatePerSecond: n.RatePerSecond,
		Burst:         n.Burst,
		Location:      e.loc,
		Logger:        e.log.Logger,
		Metrics:       e.metrics,
		Now:           e.now,
	})
}
