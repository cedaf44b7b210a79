package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/liorwn/openclaw-cloudflare/internal/metrics"
	"github.com/liorwn/openclaw-cloudflare/internal/sandbox"
	"github.com/liorwn/openclaw-cloudflare/internal/stream"
)

// Sentinel is appended to the output file once the wrapped command finishes.
// Its presence is the only completion signal we trust from the platform.
const Sentinel = "__OPENCLAW_CMD_DONE__"

const (
	// innerTimeout is the hard timeout the wrapper imposes inside the
	// sandbox so the output file always eventually gains the sentinel.
	innerTimeout = 12 * time.Second

	maxHeadStart   = 10 * time.Second
	headStartSlack = 2 * time.Second
	readTimeout    = 5 * time.Second
	retryDelay     = 3 * time.Second
)

// Runner executes shell commands inside a sandbox whose execution primitive
// does not reliably signal completion. All failure modes degrade to an empty
// or truncated string; callers must pattern-match for the payload they expect
// instead of assuming well-formed output.
type Runner struct {
	rt         sandbox.Runtime
	logger     *slog.Logger
	transcript *slog.Logger

	// injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func New(rt sandbox.Runtime, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		rt:     rt,
		logger: logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// SetTranscript records every invocation and its outcome to the given
// logger. A nil logger disables the transcript.
func (r *Runner) SetTranscript(l *slog.Logger) {
	r.transcript = l
}

func (r *Runner) record(command string, elapsed time.Duration, done bool, size int) {
	if r.transcript == nil {
		return
	}
	r.transcript.Info("command", "cmd", command, "elapsed", elapsed, "done", done, "bytes", size)
}

// Run starts command in the sandbox and returns its combined stdout/stderr,
// bounded by timeout. An empty result means "the command may not have
// finished", not "the command failed"; no error is ever raised for execution
// failures.
func (r *Runner) Run(ctx context.Context, command string, timeout time.Duration) string {
	started := r.now()
	outPath := fmt.Sprintf("/tmp/.cmd-%d.out", started.UnixNano())
	wrapped := wrap(command, outPath)

	if _, err := r.rt.StartProcess(ctx, wrapped, nil); err != nil {
		r.logger.Warn("command start failed", "error", err)
		r.record(command, r.now().Sub(started), false, 0)
		return ""
	}

	r.sleep(ctx, headStart(timeout))

	out, done := r.readResult(ctx, outPath)
	if !done {
		r.sleep(ctx, retryDelay)
		out, done = r.readResult(ctx, outPath)
	}
	if !done {
		metrics.IncCommandTimeout()
		r.logger.Warn("command completion not observed",
			"elapsed", r.now().Sub(started), "output_file", outPath)
		r.record(command, r.now().Sub(started), false, 0)
		return ""
	}

	r.logger.Debug("command completed", "elapsed", r.now().Sub(started))
	result := strings.TrimSpace(strings.Replace(out, Sentinel, "", 1))
	r.record(command, r.now().Sub(started), true, len(result))
	return result
}

// readResult reads the output file once with a bounded deadline and reports
// whether the completion sentinel was observed.
func (r *Runner) readResult(ctx context.Context, path string) (string, bool) {
	readCtx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	raw, err := r.rt.ReadFileStream(readCtx, path)
	if err != nil {
		r.logger.Debug("output file unreadable", "path", path, "error", err)
		return "", false
	}
	content := stream.FileContent(raw)
	if !strings.Contains(content, Sentinel) {
		return "", false
	}
	return content, true
}

// wrap builds the sandbox-side command: run with an internal hard timeout,
// redirect all output to the file, then append the sentinel regardless of
// how the command exited.
func wrap(command, outPath string) string {
	return fmt.Sprintf("(timeout %d sh -c %s > %s 2>&1); echo %s >> %s",
		int(innerTimeout.Seconds()), shellQuote(command), outPath, Sentinel, outPath)
}

// headStart gives the command time to finish before the first read attempt:
// min(requested-2s, 10s), never negative.
func headStart(timeout time.Duration) time.Duration {
	d := timeout - headStartSlack
	if d > maxHeadStart {
		d = maxHeadStart
	}
	if d < 0 {
		d = 0
	}
	return d
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
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
