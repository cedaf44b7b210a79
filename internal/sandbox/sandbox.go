package sandbox

import "context"

// ProcessStatus is the lifecycle state reported by the sandbox runtime.
type ProcessStatus string

const (
	StatusStarting  ProcessStatus = "starting"
	StatusRunning   ProcessStatus = "running"
	StatusCompleted ProcessStatus = "completed"
	StatusFailed    ProcessStatus = "failed"
)

// Alive reports whether a process in this status is still occupying the
// sandbox (running or about to).
func (s ProcessStatus) Alive() bool {
	return s == StatusStarting || s == StatusRunning
}

// ProcessInfo is the sandbox runtime's view of one process. The runtime owns
// the process; callers hold only this reference plus cached status and must
// re-query rather than assume liveness.
type ProcessInfo struct {
	ID      string        `json:"id"`
	Command string        `json:"command"`
	Status  ProcessStatus `json:"status"`
}

// Runtime is the control surface of one ephemeral compute sandbox. All calls
// may hang on a degraded platform, so every method takes a context and
// callers are expected to wrap invocations in deadlines.
//
// ReadFileStream and ExecStream return the raw framed text protocol (see
// internal/stream); the caller decodes it. A read of a missing file returns
// an error, but an empty result with a nil error is also possible on a
// degraded platform and must be tolerated.
type Runtime interface {
	StartProcess(ctx context.Context, command string, env []string) (ProcessInfo, error)
	ListProcesses(ctx context.Context) ([]ProcessInfo, error)
	Kill(ctx context.Context, id string) error
	WriteFile(ctx context.Context, path, content string) error
	Mkdir(ctx context.Context, path string, recursive bool) error
	ReadFileStream(ctx context.Context, path string) (string, error)
	ExecStream(ctx context.Context, command string) (string, error)
}

// FindProcess returns the process with the given id from a fresh listing,
// or false when it is gone.
func FindProcess(ctx context.Context, rt Runtime, id string) (ProcessInfo, bool, error) {
	procs, err := rt.ListProcesses(ctx)
	if err != nil {
		return ProcessInfo{}, false, err
	}
	for _, p := range procs {
		if p.ID == id {
			return p, true, nil
		}
	}
	return ProcessInfo{}, false, nil
}
