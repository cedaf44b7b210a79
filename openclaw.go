// Package openclaw assembles the sandbox-hosted OpenClaw gateway supervisor:
// a daemon that keeps the gateway process alive inside an ephemeral sandbox
// and mirrors its state to object storage so it survives sandbox recycling.
package openclaw

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/liorwn/openclaw-cloudflare/internal/admin"
	"github.com/liorwn/openclaw-cloudflare/internal/audit"
	auditch "github.com/liorwn/openclaw-cloudflare/internal/audit/clickhouse"
	"github.com/liorwn/openclaw-cloudflare/internal/backup"
	cfg "github.com/liorwn/openclaw-cloudflare/internal/config"
	"github.com/liorwn/openclaw-cloudflare/internal/metrics"
	"github.com/liorwn/openclaw-cloudflare/internal/runner"
	"github.com/liorwn/openclaw-cloudflare/internal/sandbox"
	"github.com/liorwn/openclaw-cloudflare/internal/scheduler"
	iapi "github.com/liorwn/openclaw-cloudflare/internal/server"
	"github.com/liorwn/openclaw-cloudflare/internal/storage"
	"github.com/liorwn/openclaw-cloudflare/internal/supervisor"
	itls "github.com/liorwn/openclaw-cloudflare/internal/tls"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Device = admin.Device

type DeviceList = admin.DeviceList

type ApproveResult = admin.ApproveResult

type StorageStatus = admin.StorageStatus

type SyncStatus = admin.SyncStatus

type RestartStatus = admin.RestartStatus

type RestoreStatus = admin.RestoreStatus

type AuditSink = audit.Sink

type Config = cfg.FileConfig

// Options control system assembly.
type Options struct {
	Config *Config

	// Dev wires an in-memory sandbox and store so the daemon runs without a
	// platform. Overrides the configured sandbox and store backends.
	Dev bool

	Logger *slog.Logger

	// Sink overrides the audit sink built from config.
	Sink audit.Sink
}

// System is the assembled daemon: one sandbox runtime, its supervised
// gateway, and the storage-backed sync machinery.
type System struct {
	Runtime    sandbox.Runtime
	Runner     *runner.Runner
	Supervisor *supervisor.Supervisor
	Store      storage.Store
	Engine     *backup.Engine
	Facade     *admin.Facade

	cfg     *Config
	closers []func() error
}

// New assembles a System from options.
func New(opts Options) (*System, error) {
	fc := opts.Config
	if fc == nil {
		fc = &Config{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sys := &System{cfg: fc}

	if opts.Dev {
		sys.Runtime = sandbox.NewFake()
		sys.Store = storage.NewMemoryStore()
	} else {
		sys.Runtime = sandbox.NewClient(sandbox.ClientConfig{
			BaseURL: fc.Sandbox.BaseURL,
			Token:   fc.Sandbox.Token,
			Timeout: fc.Sandbox.Timeout,
			Logger:  logger,
		})
		storeCfg := fc.Storage.Store
		if storeCfg.Type == "" {
			storeCfg.Type = "memory"
		}
		store, err := storage.CreateStore(storeCfg)
		if err != nil {
			return nil, fmt.Errorf("create store: %w", err)
		}
		sys.Store = store
		sys.closers = append(sys.closers, store.Close)
	}

	env, err := fc.GatewayEnv()
	if err != nil {
		return nil, fmt.Errorf("build gateway env: %w", err)
	}

	sys.Runner = runner.New(sys.Runtime, logger)
	sys.Supervisor = supervisor.New(sys.Runtime, supervisor.Config{
		Command:      fc.Gateway.Command,
		Env:          env,
		PollInterval: fc.Gateway.PollInterval,
		StartTimeout: fc.Gateway.StartTimeout,
	}, logger)
	sys.Engine = backup.New(sys.Runtime, sys.Runner, sys.Store, backup.Paths{
		ConfigDir:       fc.Paths.ConfigDir,
		LegacyConfigDir: fc.Paths.LegacyConfigDir,
		WorkspaceDir:    fc.Paths.WorkspaceDir,
		SkillsDir:       fc.Paths.SkillsDir,
	}, logger)

	sink := opts.Sink
	if sink == nil {
		sink, err = buildSink(fc, logger)
		if err != nil {
			return nil, err
		}
	}

	sys.Facade = admin.New(sys.Supervisor, sys.Runner, sys.Engine, admin.Config{
		GatewayCLI: fc.Gateway.Command,
		Credentials: admin.StorageCredentials{
			AccountID:       fc.Storage.AccountID,
			AccessKeyID:     fc.Storage.AccessKeyID,
			SecretAccessKey: fc.Storage.SecretAccessKey,
		},
	}, sink, logger)

	return sys, nil
}

func buildSink(fc *Config, logger *slog.Logger) (audit.Sink, error) {
	switch fc.Audit.Type {
	case "", "log":
		return audit.LogSink{Logger: logger}, nil
	case "clickhouse":
		table := fc.Audit.Table
		if table == "" {
			table = "openclaw_audit"
		}
		sink, err := auditch.New(fc.Audit.DSN, table)
		if err != nil {
			return nil, fmt.Errorf("create clickhouse sink: %w", err)
		}
		if err := sink.EnsureSchema(context.Background()); err != nil {
			_ = sink.Close()
			return nil, err
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unsupported audit sink type: %s", fc.Audit.Type)
	}
}

// Close releases backing resources.
func (s *System) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Boot ensures the gateway is running and restores state when the sandbox is
// fresh. Called once at daemon startup.
func (s *System) Boot(ctx context.Context) error {
	res, err := s.Facade.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if res.Files > 0 {
		slog.Info("state restored", "files", res.Files)
	}
	if _, err := s.Supervisor.EnsureRunning(ctx); err != nil {
		return fmt.Errorf("ensure gateway: %w", err)
	}
	return nil
}

// RunSyncLoop runs the periodic sync and orphan cleanup jobs until the
// context ends. Overlapping passes are skipped, not queued.
func (s *System) RunSyncLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	schedule := "@every " + interval.String()

	sched := scheduler.New()
	_ = sched.Add(&scheduler.Job{
		Name:     "sync",
		Schedule: schedule,
		Run: func(ctx context.Context) {
			if _, err := s.Facade.Sync(ctx); err != nil {
				slog.Warn("periodic sync failed", "error", err)
			}
		},
	})
	_ = sched.Add(&scheduler.Job{
		Name:     "cleanup",
		Schedule: schedule,
		Run: func(ctx context.Context) {
			if _, err := s.Facade.Cleanup(ctx); err != nil {
				slog.Warn("orphan cleanup failed", "error", err)
			}
		},
	})
	if err := sched.Start(ctx); err != nil {
		slog.Warn("sync scheduler failed to start", "error", err)
		return
	}
	defer sched.Stop()
	<-ctx.Done()
}

func LoadConfig(path string) (*Config, error) {
	return cfg.Load(path)
}

// NewHTTPServer starts an HTTP server exposing the admin API for the system.
// TLS is taken from the [server] config section when enabled there.
func NewHTTPServer(addr, basePath string, withMetrics bool, s *System) (*http.Server, error) {
	tlsConf, err := itls.Setup(s.cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("setup TLS: %w", err)
	}
	return iapi.NewServer(addr, basePath, withMetrics, tlsConf, s.Facade)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
