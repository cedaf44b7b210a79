// Package admin composes the supervisor, runner, and backup engine into the
// operations the HTTP layer and CLI expose. Every operation returns a
// structured result within a bounded time; callers never see an indefinite
// hang or a panic from degraded sandbox output.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/liorwn/openclaw-cloudflare/internal/audit"
	"github.com/liorwn/openclaw-cloudflare/internal/backup"
	"github.com/liorwn/openclaw-cloudflare/internal/supervisor"
)

// Outer deadlines per operation. Once a deadline fires the operation reports
// failure; any process it started keeps running in the sandbox and is
// reconciled later by orphan cleanup.
const (
	listDevicesTimeout = 15 * time.Second
	approveTimeout     = 20 * time.Second
	syncTimeout        = 20 * time.Second
	restartTimeout     = 15 * time.Second
	statusTimeout      = 15 * time.Second
	restoreTimeout     = time.Minute
)

// CommandRunner runs a shell command in the sandbox and returns its combined
// output, empty on any failure.
type CommandRunner interface {
	Run(ctx context.Context, command string, timeout time.Duration) string
}

// StorageCredentials is the credential triple forwarded to the gateway for
// object-storage access. Contents are never parsed or validated, only
// checked for presence.
type StorageCredentials struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
}

// Missing names the absent credentials.
func (c StorageCredentials) Missing() []string {
	var missing []string
	if c.AccountID == "" {
		missing = append(missing, "account_id")
	}
	if c.AccessKeyID == "" {
		missing = append(missing, "access_key_id")
	}
	if c.SecretAccessKey == "" {
		missing = append(missing, "secret_access_key")
	}
	return missing
}

// Config holds facade configuration.
type Config struct {
	// GatewayCLI is the base invocation for the gateway's own CLI surface.
	GatewayCLI string

	Credentials StorageCredentials
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.GatewayCLI == "" {
		out.GatewayCLI = "openclaw-gateway"
	}
	return out
}

// Facade exposes the admin operations.
type Facade struct {
	sup    *supervisor.Supervisor
	run    CommandRunner
	engine *backup.Engine
	cfg    Config
	sink   audit.Sink
	logger *slog.Logger
}

func New(sup *supervisor.Supervisor, run CommandRunner, engine *backup.Engine, cfg Config, sink audit.Sink, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{
		sup:    sup,
		run:    run,
		engine: engine,
		cfg:    cfg.withDefaults(),
		sink:   sink,
		logger: logger,
	}
}

// StorageStatus reports credential presence and the last successful sync.
type StorageStatus struct {
	Configured bool       `json:"configured"`
	Missing    []string   `json:"missing,omitempty"`
	LastSync   *time.Time `json:"last_sync,omitempty"`
}

// SyncStatus is the structured outcome of a manual sync trigger.
type SyncStatus struct {
	Success   bool      `json:"success"`
	Files     int       `json:"files,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	Reason    string    `json:"reason,omitempty"`
}

// RestartStatus reports a gateway restart.
type RestartStatus struct {
	PreviousID string `json:"previous_id,omitempty"`
}

// RestoreStatus reports a restore pass.
type RestoreStatus struct {
	Files int `json:"files"`
}

// StorageStatus reports whether all storage credentials are present and when
// the last sync succeeded. Missing credentials are a structured failure, not
// a crash.
func (f *Facade) StorageStatus(ctx context.Context) (StorageStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	status := StorageStatus{Missing: f.cfg.Credentials.Missing()}
	status.Configured = len(status.Missing) == 0

	ts, ok, err := f.engine.LastSync(ctx)
	if err != nil {
		return status, err
	}
	if ok {
		status.LastSync = &ts
	}
	return status, nil
}

// Sync triggers a sync pass after making sure the gateway is up. A
// nothing-to-sync outcome is reported as a failed status with a reason, not
// an error.
func (f *Facade) Sync(ctx context.Context) (SyncStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	if _, err := f.sup.EnsureRunning(ctx); err != nil {
		return SyncStatus{Reason: err.Error()}, err
	}

	res, err := f.engine.Sync(ctx)
	if errors.Is(err, backup.ErrNothingToSync) {
		audit.Emit(ctx, f.sink, audit.Event{Type: audit.EventSync, Detail: err.Error()})
		return SyncStatus{Reason: err.Error()}, nil
	}
	if err != nil {
		audit.Emit(ctx, f.sink, audit.Event{Type: audit.EventSync, Detail: err.Error()})
		return SyncStatus{Reason: err.Error()}, err
	}

	audit.Emit(ctx, f.sink, audit.Event{Type: audit.EventSync, Success: true, Files: res.Files})
	return SyncStatus{Success: true, Files: res.Files, Timestamp: res.Timestamp}, nil
}

// Restart bounces the gateway and reports the previous process id. The new
// process comes up asynchronously; callers poll status rather than block.
func (f *Facade) Restart(ctx context.Context) (RestartStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, restartTimeout)
	defer cancel()

	prev, err := f.sup.Restart(ctx)
	if err != nil {
		audit.Emit(ctx, f.sink, audit.Event{Type: audit.EventRestart, Detail: err.Error()})
		return RestartStatus{}, err
	}
	audit.Emit(ctx, f.sink, audit.Event{Type: audit.EventRestart, Success: true, Detail: prev})
	return RestartStatus{PreviousID: prev}, nil
}

// Restore rehydrates sandbox state from object storage. A store without a
// last-sync marker restores nothing; that is a first boot, not an error.
func (f *Facade) Restore(ctx context.Context) (RestoreStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, restoreTimeout)
	defer cancel()

	n, err := f.engine.Restore(ctx)
	if err != nil {
		audit.Emit(ctx, f.sink, audit.Event{Type: audit.EventRestore, Files: n, Detail: err.Error()})
		return RestoreStatus{Files: n}, err
	}
	if n > 0 {
		audit.Emit(ctx, f.sink, audit.Event{Type: audit.EventRestore, Success: true, Files: n})
	}
	return RestoreStatus{Files: n}, nil
}

// Cleanup reconciles stray sandbox processes.
func (f *Facade) Cleanup(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	n, err := f.sup.CleanupOrphans(ctx)
	if n > 0 {
		audit.Emit(ctx, f.sink, audit.Event{Type: audit.EventOrphanCleanup, Success: err == nil, Files: n})
	}
	return n, err
}
