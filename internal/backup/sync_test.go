package backup

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/liorwn/openclaw-cloudflare/internal/sandbox"
	"github.com/liorwn/openclaw-cloudflare/internal/storage"
)

var excludeDirRe = regexp.MustCompile(`-not -path '(/[^']*)/\*'`)

// findRunner emulates the sandbox-side find invocation against the fake
// runtime's filesystem.
type findRunner struct {
	fake *sandbox.Fake
}

func (r findRunner) Run(_ context.Context, command string, _ time.Duration) string {
	fields := strings.Fields(command)
	if len(fields) < 2 || fields[0] != "find" {
		return ""
	}
	dir := fields[1]
	var exclude string
	if m := excludeDirRe.FindStringSubmatch(command); m != nil {
		exclude = m[1]
	}

	var out []string
	for _, p := range r.fake.Files() {
		if !strings.HasPrefix(p, dir+"/") {
			continue
		}
		if strings.Contains(p, "/.git/") || strings.Contains(p, "/node_modules/") {
			continue
		}
		if strings.HasSuffix(p, ".lock") || strings.HasSuffix(p, ".log") || strings.HasSuffix(p, ".tmp") {
			continue
		}
		if exclude != "" && strings.HasPrefix(p, exclude+"/") {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, "\n")
}

func newTestEngine(t *testing.T) (*Engine, *sandbox.Fake, *storage.MemoryStore) {
	t.Helper()
	fake := sandbox.NewFake()
	store := storage.NewMemoryStore()
	e := New(fake, findRunner{fake}, store, Paths{}, nil)
	e.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e, fake, store
}

func TestSyncNothingToSync(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.Sync(context.Background())
	if !errors.Is(err, ErrNothingToSync) {
		t.Fatalf("expected ErrNothingToSync, got %v", err)
	}
}

func TestSyncUploadsAllTrees(t *testing.T) {
	e, fake, store := newTestEngine(t)
	fake.PutFile("/root/.openclaw/openclaw.json", `{"model":"x"}`)
	fake.PutFile("/root/.openclaw/session.log", "excluded")
	fake.PutFile("/root/workspace/notes.md", "notes")
	fake.PutFile("/root/workspace/skills/weather/skill.md", "skill")

	res, err := e.Sync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Files != 3 {
		t.Fatalf("expected 3 files synced, got %d", res.Files)
	}

	for key, want := range map[string]string{
		"openclaw/openclaw.json":  `{"model":"x"}`,
		"workspace/notes.md":      "notes",
		"skills/weather/skill.md": "skill",
		".last-sync":              "2026-03-01T12:00:00Z",
	} {
		v, ok, err := store.Get(context.Background(), key)
		if err != nil || !ok {
			t.Fatalf("missing key %s: ok=%v err=%v", key, ok, err)
		}
		if string(v) != want {
			t.Fatalf("key %s: expected %q, got %q", key, want, v)
		}
	}

	// The skills subtree must not leak into the workspace prefix.
	if _, ok, _ := store.Get(context.Background(), "workspace/skills/weather/skill.md"); ok {
		t.Fatal("skills file uploaded under workspace prefix")
	}
	if _, ok, _ := store.Get(context.Background(), "openclaw/session.log"); ok {
		t.Fatal("log file should be excluded from sync")
	}
}

func TestSyncLegacyConfigFallback(t *testing.T) {
	e, fake, store := newTestEngine(t)
	fake.PutFile("/root/.clawdbot/openclaw.json", "legacy")

	if _, err := e.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	v, ok, _ := store.Get(context.Background(), "openclaw/openclaw.json")
	if !ok || string(v) != "legacy" {
		t.Fatalf("legacy config not synced: %q ok=%v", v, ok)
	}
}

func TestSyncIdempotent(t *testing.T) {
	e, fake, store := newTestEngine(t)
	fake.PutFile("/root/.openclaw/a.json", "a")
	fake.PutFile("/root/workspace/b.md", "b")

	if _, err := e.Sync(context.Background()); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	first, err := storage.ListAllKeys(context.Background(), store, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if _, err := e.Sync(context.Background()); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	second, err := storage.ListAllKeys(context.Background(), store, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("key sets diverged: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("key sets diverged: %v vs %v", first, second)
		}
	}
}

func TestSyncSweepsCorruptKeys(t *testing.T) {
	e, fake, store := newTestEngine(t)
	fake.PutFile("/root/.openclaw/a.json", "a")

	ctx := context.Background()
	corrupt := []string{
		`openclaw/{"path":"old"}`,
		`workspace/bad"name`,
		`workspace/two\nlines`,
	}
	for _, k := range corrupt {
		if err := store.Put(ctx, k, []byte("junk")); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if err := store.Put(ctx, "workspace/kept.md", []byte("keep")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := e.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}

	for _, k := range corrupt {
		if _, ok, _ := store.Get(ctx, k); ok {
			t.Fatalf("corrupt key survived sweep: %s", k)
		}
	}
	if _, ok, _ := store.Get(ctx, "workspace/kept.md"); !ok {
		t.Fatal("clean key deleted by sweep")
	}
}

func TestSyncSkipsUnreadableFiles(t *testing.T) {
	e, fake, store := newTestEngine(t)
	fake.PutFile("/root/.openclaw/a.json", "a")
	fake.PutFile("/root/.openclaw/b.json", "b")
	fake.DropReads = 1 // first read degrades to an empty stream

	res, err := e.Sync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Files != 1 {
		t.Fatalf("expected 1 file synced past the bad read, got %d", res.Files)
	}
	keys, _ := storage.ListAllKeys(context.Background(), store, "openclaw/")
	if len(keys) != 1 {
		t.Fatalf("expected 1 uploaded object, got %v", keys)
	}
}
