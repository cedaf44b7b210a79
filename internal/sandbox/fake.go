package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Fake is an in-memory Runtime used by tests and by dev mode, where the
// daemon runs without a real sandbox platform. It frames file reads through
// the same protocol the real platform uses so the decode path is exercised.
type Fake struct {
	mu     sync.Mutex
	nextID int
	procs  []ProcessInfo
	files  map[string]string
	dirs   map[string]bool

	// StartStatus is the status assigned to newly started processes.
	// Defaults to running.
	StartStatus ProcessStatus

	// StartHook, when set, runs on every StartProcess with the raw command.
	// Tests use it to simulate the command's side effects on the filesystem.
	StartHook func(command string)

	// ExecHandler, when set, produces the framed reply for ExecStream.
	ExecHandler func(command string) string

	// DropReads makes the next N ReadFileStream calls return an empty body
	// with no error, imitating the platform's silent empty-read failure.
	DropReads int

	// KillErr is returned from Kill when set.
	KillErr error

	// MkdirCalls counts Mkdir invocations.
	MkdirCalls int
}

// NewFake returns an empty fake runtime.
func NewFake() *Fake {
	return &Fake{
		files:       make(map[string]string),
		dirs:        make(map[string]bool),
		StartStatus: StatusRunning,
	}
}

func (f *Fake) StartProcess(_ context.Context, command string, _ []string) (ProcessInfo, error) {
	f.mu.Lock()
	f.nextID++
	info := ProcessInfo{
		ID:      fmt.Sprintf("proc-%d", f.nextID),
		Command: command,
		Status:  f.StartStatus,
	}
	f.procs = append(f.procs, info)
	hook := f.StartHook
	f.mu.Unlock()
	if hook != nil {
		hook(command)
	}
	return info, nil
}

func (f *Fake) ListProcesses(_ context.Context) ([]ProcessInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ProcessInfo, len(f.procs))
	copy(out, f.procs)
	return out, nil
}

func (f *Fake) Kill(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.KillErr != nil {
		return f.KillErr
	}
	for i := range f.procs {
		if f.procs[i].ID == id {
			f.procs[i].Status = StatusCompleted
			return nil
		}
	}
	return fmt.Errorf("no such process: %s", id)
}

func (f *Fake) WriteFile(_ context.Context, path, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = content
	return nil
}

func (f *Fake) Mkdir(_ context.Context, path string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MkdirCalls++
	f.dirs[path] = true
	return nil
}

func (f *Fake) ReadFileStream(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DropReads > 0 {
		f.DropReads--
		return "", nil
	}
	content, ok := f.files[path]
	if !ok {
		return "", fmt.Errorf("no such file: %s", path)
	}
	return frameFile(content), nil
}

func (f *Fake) ExecStream(_ context.Context, command string) (string, error) {
	f.mu.Lock()
	handler := f.ExecHandler
	f.mu.Unlock()
	if handler != nil {
		return handler(command), nil
	}
	return "", nil
}

// PutFile seeds a file into the fake filesystem.
func (f *Fake) PutFile(path, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = content
}

// GetFile returns a file's content and whether it exists.
func (f *Fake) GetFile(path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.files[path]
	return c, ok
}

// Files returns all file paths in sorted order.
func (f *Fake) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, 0, len(f.files))
	for p := range f.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// SetStatus overrides the status of a process by id.
func (f *Fake) SetStatus(id string, status ProcessStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.procs {
		if f.procs[i].ID == id {
			f.procs[i].Status = status
		}
	}
}

// frameFile encodes content as metadata + chunk* + complete records.
func frameFile(content string) string {
	const chunkSize = 64
	var b strings.Builder
	writeRecord(&b, map[string]any{"type": "metadata", "size": len(content), "mime": "text/plain", "binary": false})
	for i := 0; i < len(content); i += chunkSize {
		end := i + chunkSize
		if end > len(content) {
			end = len(content)
		}
		writeRecord(&b, map[string]any{"type": "chunk", "data": content[i:end]})
	}
	writeRecord(&b, map[string]any{"type": "complete", "bytes": len(content)})
	return b.String()
}

// FrameCommandOutput encodes text as stdout records, one per line, the way
// the platform frames exec streams. Exposed for ExecHandler implementations.
func FrameCommandOutput(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		writeRecord(&b, map[string]any{"type": "stdout", "data": line + "\n"})
	}
	return b.String()
}

func writeRecord(b *strings.Builder, payload map[string]any) {
	data, _ := json.Marshal(payload)
	b.WriteString("data: ")
	b.Write(data)
	b.WriteString("\n\n")
}
