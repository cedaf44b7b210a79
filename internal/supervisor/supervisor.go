package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/liorwn/openclaw-cloudflare/internal/metrics"
	"github.com/liorwn/openclaw-cloudflare/internal/sandbox"
)

// gatewaySignatures identify the gateway process in a listing. The supervisor
// may be re-instantiated across requests, so the singleton is looked up by
// command line rather than held as an in-memory handle.
var gatewaySignatures = []string{
	"openclaw-gateway",
	"openclaw gateway",
}

// processCeiling bounds how many live processes the sandbox may hold before
// orphan cleanup starts killing non-gateway stragglers.
const processCeiling = 5

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultStartTimeout = 10 * time.Second
	defaultTeardownWait = time.Second
)

// Config holds gateway launch parameters.
type Config struct {
	// Command is the gateway launcher invocation. It must match one of the
	// known gateway signatures or FindExisting will never see the process.
	Command string

	// Env is injected into the gateway process on launch: provider keys,
	// storage credentials, access-control parameters. Forwarded verbatim.
	Env []string

	PollInterval time.Duration
	StartTimeout time.Duration
	TeardownWait time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Command == "" {
		out.Command = "openclaw-gateway"
	}
	if out.PollInterval <= 0 {
		out.PollInterval = defaultPollInterval
	}
	if out.StartTimeout <= 0 {
		out.StartTimeout = defaultStartTimeout
	}
	if out.TeardownWait <= 0 {
		out.TeardownWait = defaultTeardownWait
	}
	return out
}

// Supervisor keeps the single gateway process alive inside one sandbox.
// EnsureRunning is idempotent and safe to call redundantly from overlapping
// requests; transient duplicate launches across supervisor instances are
// reconciled by CleanupOrphans.
type Supervisor struct {
	rt     sandbox.Runtime
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	sleep func(ctx context.Context, d time.Duration)
}

func New(rt sandbox.Runtime, cfg Config, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		rt:     rt,
		cfg:    cfg.withDefaults(),
		logger: logger,
		sleep:  sleepCtx,
	}
}

// IsGateway reports whether a command line matches a known gateway-launch
// signature.
func IsGateway(command string) bool {
	for _, sig := range gatewaySignatures {
		if strings.Contains(command, sig) {
			return true
		}
	}
	return false
}

// FindExisting returns the gateway process from a fresh listing, preferring
// a live one over an exited one.
func (s *Supervisor) FindExisting(ctx context.Context) (sandbox.ProcessInfo, bool, error) {
	procs, err := s.rt.ListProcesses(ctx)
	if err != nil {
		return sandbox.ProcessInfo{}, false, fmt.Errorf("list processes: %w", err)
	}
	var dead sandbox.ProcessInfo
	var found bool
	for _, p := range procs {
		if !IsGateway(p.Command) {
			continue
		}
		if p.Status.Alive() {
			return p, true, nil
		}
		dead, found = p, true
	}
	return dead, found, nil
}

// EnsureRunning makes sure a gateway process is up, launching one if needed.
// It blocks until the new process leaves the starting state or the bounded
// wait elapses; the caller's context cancels the wait early. Calling it when
// a live gateway exists is a no-op.
func (s *Supervisor) EnsureRunning(ctx context.Context) (sandbox.ProcessInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok, err := s.FindExisting(ctx); err != nil {
		return sandbox.ProcessInfo{}, err
	} else if ok && p.Status.Alive() {
		return p, nil
	}

	info, err := s.rt.StartProcess(ctx, s.cfg.Command, s.cfg.Env)
	if err != nil {
		return sandbox.ProcessInfo{}, fmt.Errorf("start gateway: %w", err)
	}
	metrics.IncGatewayStart()
	s.logger.Info("gateway started", "id", info.ID)

	return s.waitStarted(ctx, info)
}

// waitStarted polls the process status until it leaves starting or the wait
// budget runs out. A process still starting at the deadline is returned as-is
// rather than treated as failed.
func (s *Supervisor) waitStarted(ctx context.Context, info sandbox.ProcessInfo) (sandbox.ProcessInfo, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.StartTimeout)
	defer cancel()

	for info.Status == sandbox.StatusStarting {
		s.sleep(waitCtx, s.cfg.PollInterval)
		if waitCtx.Err() != nil {
			s.logger.Warn("gateway still starting at deadline", "id", info.ID)
			return info, nil
		}
		p, ok, err := sandbox.FindProcess(waitCtx, s.rt, info.ID)
		if err != nil || !ok {
			return info, nil
		}
		info = p
	}
	return info, nil
}

// Restart kills the existing gateway, waits briefly for teardown, then
// re-ensures asynchronously. It returns the previous process id immediately;
// the caller is not blocked on the new process becoming healthy.
func (s *Supervisor) Restart(ctx context.Context) (string, error) {
	var previousID string
	if p, ok, err := s.FindExisting(ctx); err != nil {
		return "", err
	} else if ok {
		previousID = p.ID
		// The process may already be dead.
		if err := s.rt.Kill(ctx, p.ID); err != nil {
			s.logger.Debug("gateway kill failed", "id", p.ID, "error", err)
		}
		metrics.IncGatewayRestart()
	}

	s.sleep(ctx, s.cfg.TeardownWait)

	go func() {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StartTimeout+s.cfg.TeardownWait)
		defer cancel()
		if _, err := s.EnsureRunning(bg); err != nil {
			s.logger.Error("gateway re-ensure after restart failed", "error", err)
		}
	}()

	return previousID, nil
}

// CleanupOrphans kills every live non-gateway process once the live process
// count exceeds the ceiling. Best-effort: kill errors are swallowed and the
// returned count is of attempted kills. Callers must not rely on it for
// correctness, only for resource hygiene.
func (s *Supervisor) CleanupOrphans(ctx context.Context) (int, error) {
	procs, err := s.rt.ListProcesses(ctx)
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}

	live := 0
	for _, p := range procs {
		if p.Status.Alive() {
			live++
		}
	}
	if live <= processCeiling {
		return 0, nil
	}

	killed := 0
	for _, p := range procs {
		if IsGateway(p.Command) || !p.Status.Alive() {
			continue
		}
		if err := s.rt.Kill(ctx, p.ID); err != nil {
			s.logger.Debug("orphan kill failed", "id", p.ID, "error", err)
		}
		killed++
	}
	if killed > 0 {
		metrics.AddOrphansKilled(killed)
		s.logger.Info("orphan cleanup", "live", live, "killed", killed)
	}
	return killed, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
