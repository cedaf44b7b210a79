// Package backup implements the sync and restore passes that mirror sandbox
// state into object storage and back. Sandboxes are ephemeral; object storage
// is the only durable home for gateway config and workspace files.
package backup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/liorwn/openclaw-cloudflare/internal/sandbox"
	"github.com/liorwn/openclaw-cloudflare/internal/storage"
)

// ErrNothingToSync is reported when no source data exists yet. It is an
// expected failure on a fresh sandbox, not an error state requiring alarm.
var ErrNothingToSync = errors.New("nothing to sync")

// lastSyncKey is the bare object-storage key holding the RFC 3339 timestamp
// of the most recent successful sync.
const lastSyncKey = ".last-sync"

// Storage prefixes mirroring the three sandbox trees.
const (
	configPrefix    = "openclaw/"
	workspacePrefix = "workspace/"
	skillsPrefix    = "skills/"
)

const (
	listTimeout = 15 * time.Second
	readTimeout = 10 * time.Second
)

// Paths locate the sandbox directories the engine operates on.
type Paths struct {
	// ConfigDir is the gateway config directory; LegacyConfigDir is probed
	// when the primary has no files (pre-rename installs).
	ConfigDir       string
	LegacyConfigDir string

	// WorkspaceDir is synced excluding SkillsDir, which forms its own tree.
	WorkspaceDir string
	SkillsDir    string
}

func (p Paths) withDefaults() Paths {
	if p.ConfigDir == "" {
		p.ConfigDir = "/root/.openclaw"
	}
	if p.LegacyConfigDir == "" {
		p.LegacyConfigDir = "/root/.clawdbot"
	}
	if p.WorkspaceDir == "" {
		p.WorkspaceDir = "/root/workspace"
	}
	if p.SkillsDir == "" {
		p.SkillsDir = p.WorkspaceDir + "/skills"
	}
	return p
}

// CommandRunner runs a shell command in the sandbox and returns its combined
// output, empty on any failure.
type CommandRunner interface {
	Run(ctx context.Context, command string, timeout time.Duration) string
}

// Engine performs sync and restore passes. Passes are idempotent by storage
// key, so overlapping or retried runs converge rather than conflict; no
// locking is used.
type Engine struct {
	rt     sandbox.Runtime
	run    CommandRunner
	store  storage.Store
	paths  Paths
	logger *slog.Logger

	now func() time.Time
}

func New(rt sandbox.Runtime, run CommandRunner, store storage.Store, paths Paths, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		rt:     rt,
		run:    run,
		store:  store,
		paths:  paths.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// LastSync returns the last successful sync time, or false when no sync has
// happened yet.
func (e *Engine) LastSync(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := e.store.Get(ctx, lastSyncKey)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	ts, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		return time.Time{}, false, nil
	}
	return ts, true, nil
}
