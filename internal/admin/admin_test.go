package admin

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/liorwn/openclaw-cloudflare/internal/audit"
	"github.com/liorwn/openclaw-cloudflare/internal/backup"
	"github.com/liorwn/openclaw-cloudflare/internal/sandbox"
	"github.com/liorwn/openclaw-cloudflare/internal/storage"
	"github.com/liorwn/openclaw-cloudflare/internal/supervisor"
)

// runnerFunc adapts a function to CommandRunner.
type runnerFunc func(ctx context.Context, command string, timeout time.Duration) string

func (f runnerFunc) Run(ctx context.Context, command string, timeout time.Duration) string {
	return f(ctx, command, timeout)
}

// scriptedRunner replies to commands by substring match, recording each call.
type scriptedRunner struct {
	replies  []struct{ sub, out string }
	commands []string
}

func (r *scriptedRunner) reply(sub, out string) {
	r.replies = append(r.replies, struct{ sub, out string }{sub, out})
}

func (r *scriptedRunner) Run(_ context.Context, command string, _ time.Duration) string {
	r.commands = append(r.commands, command)
	for _, rep := range r.replies {
		if strings.Contains(command, rep.sub) {
			return rep.out
		}
	}
	return ""
}

func newTestFacade(t *testing.T, run CommandRunner, cfg Config) (*Facade, *sandbox.Fake, *storage.MemoryStore) {
	t.Helper()
	fake := sandbox.NewFake()
	store := storage.NewMemoryStore()
	sup := supervisor.New(fake, supervisor.Config{}, nil)
	engine := backup.New(fake, run, store, backup.Paths{}, nil)
	return New(sup, run, engine, cfg, nil, nil), fake, store
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`noise before {"pending":[]} noise after`, `{"pending":[]}`, true},
		{`{"a":{"b":1}}`, `{"a":{"b":1}}`, true},
		{`log line {"s":"has } brace"} tail`, `{"s":"has } brace"}`, true},
		{`{"s":"esc \" quote"}`, `{"s":"esc \" quote"}`, true},
		{"no json here", "", false},
		{`{"never":"closed"`, "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := extractJSON(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("extractJSON(%q) = %q, %v; want %q, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestListDevices(t *testing.T) {
	run := &scriptedRunner{}
	run.reply("devices list", `Fetching devices...
{"pending":[{"requestId":"req-1"}],"paired":[{"requestId":"req-2"}]}
Done.`)
	f, fake, _ := newTestFacade(t, run, Config{})

	list, err := f.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("list devices: %v", err)
	}
	if len(list.Pending) != 1 || list.Pending[0].RequestID != "req-1" {
		t.Fatalf("unexpected pending: %+v", list.Pending)
	}
	if len(list.Paired) != 1 || list.Paired[0].RequestID != "req-2" {
		t.Fatalf("unexpected paired: %+v", list.Paired)
	}

	// The gateway must be brought up before the CLI is used.
	procs, _ := fake.ListProcesses(context.Background())
	if len(procs) != 1 || !supervisor.IsGateway(procs[0].Command) {
		t.Fatalf("expected a running gateway, got %+v", procs)
	}
}

func TestListDevicesGarbledOutput(t *testing.T) {
	run := &scriptedRunner{}
	run.reply("devices list", "gateway exploded, no payload")
	f, _, _ := newTestFacade(t, run, Config{})

	if _, err := f.ListDevices(context.Background()); err == nil {
		t.Fatal("expected error for garbled output")
	}
}

func TestApproveDevicesSequential(t *testing.T) {
	run := &scriptedRunner{}
	run.reply("approve req-1", "Device APPROVED successfully")
	run.reply("approve req-2", "something went wrong")
	f, _, _ := newTestFacade(t, run, Config{})

	res, err := f.ApproveDevices(context.Background(), []string{"req-1", "req-2"})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if len(res.Approved) != 1 || res.Approved[0] != "req-1" {
		t.Fatalf("unexpected approved: %v", res.Approved)
	}
	if len(res.Failed) != 1 || res.Failed[0] != "req-2" {
		t.Fatalf("unexpected failed: %v", res.Failed)
	}

	var approveCmds []string
	for _, c := range run.commands {
		if strings.Contains(c, "approve") {
			approveCmds = append(approveCmds, c)
		}
	}
	if len(approveCmds) != 2 || !strings.Contains(approveCmds[0], "req-1") || !strings.Contains(approveCmds[1], "req-2") {
		t.Fatalf("approvals not sequential in order: %v", approveCmds)
	}
}

func TestStorageStatusMissingCredentials(t *testing.T) {
	f, _, _ := newTestFacade(t, &scriptedRunner{}, Config{
		Credentials: StorageCredentials{AccountID: "acc"},
	})

	status, err := f.StorageStatus(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Configured {
		t.Fatal("expected unconfigured status")
	}
	want := []string{"access_key_id", "secret_access_key"}
	if len(status.Missing) != 2 || status.Missing[0] != want[0] || status.Missing[1] != want[1] {
		t.Fatalf("unexpected missing list: %v", status.Missing)
	}
	if status.LastSync != nil {
		t.Fatal("expected no last sync on fresh store")
	}
}

func TestStorageStatusConfigured(t *testing.T) {
	f, _, store := newTestFacade(t, &scriptedRunner{}, Config{
		Credentials: StorageCredentials{AccountID: "a", AccessKeyID: "k", SecretAccessKey: "s"},
	})
	ts := "2026-03-01T12:00:00Z"
	if err := store.Put(context.Background(), ".last-sync", []byte(ts)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	status, err := f.StorageStatus(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Configured || len(status.Missing) != 0 {
		t.Fatalf("expected configured status, got %+v", status)
	}
	if status.LastSync == nil || status.LastSync.Format(time.RFC3339) != ts {
		t.Fatalf("unexpected last sync: %v", status.LastSync)
	}
}

func TestSyncNothingToSyncIsStructuredFailure(t *testing.T) {
	f, _, _ := newTestFacade(t, &scriptedRunner{}, Config{})

	status, err := f.Sync(context.Background())
	if err != nil {
		t.Fatalf("nothing-to-sync must not be an error: %v", err)
	}
	if status.Success || status.Reason == "" {
		t.Fatalf("expected failed status with reason, got %+v", status)
	}
}

func TestSyncSuccess(t *testing.T) {
	run := runnerFunc(func(_ context.Context, command string, _ time.Duration) string {
		if strings.HasPrefix(command, "find /root/.openclaw") {
			return "/root/.openclaw/a.json"
		}
		return ""
	})
	f, fake, store := newTestFacade(t, run, Config{})
	fake.PutFile("/root/.openclaw/a.json", `{"x":1}`)

	status, err := f.Sync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !status.Success || status.Files != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if _, ok, _ := store.Get(context.Background(), "openclaw/a.json"); !ok {
		t.Fatal("synced object missing")
	}
}

// recordingSink captures emitted audit events.
type recordingSink struct {
	events []audit.Event
}

func (s *recordingSink) Send(_ context.Context, e audit.Event) error {
	s.events = append(s.events, e)
	return nil
}

func TestRestoreEmitsAuditEvent(t *testing.T) {
	fake := sandbox.NewFake()
	store := storage.NewMemoryStore()
	sink := &recordingSink{}
	sup := supervisor.New(fake, supervisor.Config{}, nil)
	engine := backup.New(fake, &scriptedRunner{}, store, backup.Paths{}, nil)
	f := New(sup, &scriptedRunner{}, engine, Config{}, sink, nil)
	ctx := context.Background()

	// First boot: no marker, nothing restored, nothing audited.
	res, err := f.Restore(ctx)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if res.Files != 0 || len(sink.events) != 0 {
		t.Fatalf("expected silent no-op, got %+v events %v", res, sink.events)
	}

	if err := store.Put(ctx, ".last-sync", []byte("2026-03-01T12:00:00Z")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Put(ctx, "openclaw/a.json", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err = f.Restore(ctx)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if res.Files != 1 {
		t.Fatalf("expected one restored file, got %+v", res)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected one audit event, got %v", sink.events)
	}
	e := sink.events[0]
	if e.Type != audit.EventRestore || !e.Success || e.Files != 1 {
		t.Fatalf("unexpected audit event: %+v", e)
	}
}

func TestRestartReportsPreviousID(t *testing.T) {
	f, fake, _ := newTestFacade(t, &scriptedRunner{}, Config{})
	old, err := fake.StartProcess(context.Background(), "openclaw-gateway --port 18789", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	status, err := f.Restart(context.Background())
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if status.PreviousID != old.ID {
		t.Fatalf("expected previous id %s, got %s", old.ID, status.PreviousID)
	}
}
