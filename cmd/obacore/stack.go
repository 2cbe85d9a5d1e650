package main

import (
	"context"
	"errors"
	"io"

	"github.com/KilimcininKorOglu/obacore/internal/backend"
	"github.com/KilimcininKorOglu/obacore/internal/config"
	"github.com/KilimcininKorOglu/obacore/internal/logging"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
	"github.com/KilimcininKorOglu/obacore/internal/plugin"
	"github.com/KilimcininKorOglu/obacore/internal/psearch"
	"github.com/KilimcininKorOglu/obacore/internal/server"
	"github.com/KilimcininKorOglu/obacore/internal/workflow"
	"github.com/KilimcininKorOglu/obacore/internal/workqueue"
)

// stack is a fully wired engine: backend, routing, plugins, persistent
// searches, work queue and connection server.
type stack struct {
	logger   logging.Logger
	backend  *backend.Backend
	group    *workflow.NetworkGroup
	registry *psearch.Registry
	plugins  *plugin.Manager
	limiter  *plugin.RateLimiter
	engine   *operation.Engine
	queue    *workqueue.Queue
	server   *server.Server
}

// newStack builds every component from cfg. Log output goes to logOutput
// when it is not nil, otherwise to the configured output.
func newStack(cfg *config.Config, logOutput io.Writer) (*stack, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	s := &stack{}
	s.logger = logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		Writer: logOutput,
	})

	rootCfg := workflow.NewRootDSEConfig()
	rootCfg.VendorVersion = version
	s.group = workflow.NewNetworkGroup("default", rootCfg)
	s.registry = psearch.NewRegistry(s.logger)

	if len(cfg.Backend.BaseDNs) > 0 {
		backendCfg := backend.NewConfig()
		backendCfg.ApplySettings(cfg.Backend)
		b, err := backend.New(backendCfg, s.logger)
		if err != nil {
			return nil, err
		}
		s.backend = b

		wf := psearch.Wrap(b, s.registry)
		for _, suffix := range b.BaseDNs() {
			if err := s.group.Register(suffix, wf); err != nil {
				_ = b.Close()
				return nil, err
			}
		}
	}

	s.plugins, s.limiter = plugin.NewFromConfig(cfg.Plugins, s.logger)

	engineCfg := operation.NewEngineConfig()
	engineCfg.ApplySettings(cfg.Engine)
	engineCfg.Plugins = s.plugins
	engineCfg.LogSink = operation.NewAccessLog(s.logger)
	engineCfg.PersistentSearches = s.registry
	engineCfg.Logger = s.logger
	s.engine = operation.NewEngine(engineCfg)

	queueCfg := workqueue.NewConfig()
	queueCfg.ApplySettings(cfg.WorkQueue)
	s.queue = workqueue.New(s.engine, queueCfg, s.logger)

	opts := server.NewOptions()
	opts.ApplySettings(cfg.Limits)
	if s.limiter != nil {
		opts.OnDisconnect = s.limiter.Forget
	}
	s.server = server.New(s.engine, s.group, s.queue, opts, s.logger)

	s.logger.Info("engine started",
		"naming_contexts", s.group.NamingContexts(),
		"plugins", s.plugins.Names(),
		"workers", queueCfg.Workers)
	return s, nil
}

// close disconnects every client, drains the work queue and closes the
// backend.
func (s *stack) close(ctx context.Context) error {
	s.server.Close("the server is shutting down")

	var errs []error
	if err := s.queue.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Info("engine stopped")
	return errors.Join(errs...)
}
