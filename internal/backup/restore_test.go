package backup

import (
	"context"
	"testing"

	"github.com/liorwn/openclaw-cloudflare/internal/sandbox"
)

func seedMarker(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.store.Put(context.Background(), lastSyncKey, []byte("2026-03-01T12:00:00Z")); err != nil {
		t.Fatalf("seed marker: %v", err)
	}
}

func TestRestoreSkipsWithoutMarker(t *testing.T) {
	e, fake, store := newTestEngine(t)
	if err := store.Put(context.Background(), "openclaw/a.json", []byte("a")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, err := e.Restore(context.Background())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 restored files, got %d", n)
	}
	if len(fake.Files()) != 0 || fake.MkdirCalls != 0 {
		t.Fatal("restore touched the sandbox without a marker")
	}
}

func TestRestoreSkipRule(t *testing.T) {
	e, fake, store := newTestEngine(t)
	seedMarker(t, e)

	ctx := context.Background()
	objects := map[string]string{
		"openclaw/openclaw.json":  `{"model":"x"}`,
		"openclaw/creds.json":     "secret",
		"openclaw/session.log":    "excluded",
		"openclaw/old.bak":        "excluded",
		`openclaw/{"path":"bad"}`: "corrupt",
	}
	for k, v := range objects {
		if err := store.Put(ctx, k, []byte(v)); err != nil {
			t.Fatalf("seed %s: %v", k, err)
		}
	}

	n, err := e.Restore(ctx)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected exactly 2 restored files, got %d", n)
	}
	if v, ok := fake.GetFile("/root/.openclaw/openclaw.json"); !ok || v != `{"model":"x"}` {
		t.Fatalf("config file not restored: %q ok=%v", v, ok)
	}
	if _, ok := fake.GetFile("/root/.openclaw/session.log"); ok {
		t.Fatal("excluded extension restored")
	}
}

func TestRestoreWritesMarkerIntoConfigDir(t *testing.T) {
	e, fake, store := newTestEngine(t)
	seedMarker(t, e)
	if err := store.Put(context.Background(), "openclaw/a.json", []byte("a")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := e.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if v, ok := fake.GetFile("/root/.openclaw/.last-sync"); !ok || v != "2026-03-01T12:00:00Z" {
		t.Fatalf("expected restored marker, got %q ok=%v", v, ok)
	}
}

func TestRestoreSkipsSkillsPrefix(t *testing.T) {
	e, fake, store := newTestEngine(t)
	seedMarker(t, e)
	ctx := context.Background()
	if err := store.Put(ctx, "skills/weather/skill.md", []byte("skill")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Put(ctx, "workspace/notes.md", []byte("notes")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, err := e.Restore(ctx)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 restored file, got %d", n)
	}
	if _, ok := fake.GetFile("/root/workspace/skills/weather/skill.md"); ok {
		t.Fatal("skills prefix must not be restored")
	}
}

func TestRestoreMemoizesMkdir(t *testing.T) {
	e, fake, store := newTestEngine(t)
	seedMarker(t, e)
	ctx := context.Background()
	for _, k := range []string{"workspace/deep/a.md", "workspace/deep/b.md", "workspace/deep/c.md"} {
		if err := store.Put(ctx, k, []byte("v")); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	if _, err := e.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if fake.MkdirCalls != 1 {
		t.Fatalf("expected 1 mkdir for the shared parent, got %d", fake.MkdirCalls)
	}
}

func TestSyncThenRestoreRoundTrip(t *testing.T) {
	source, sourceFake, store := newTestEngine(t)
	sourceFake.PutFile("/root/.openclaw/a.json", `{"x":1}`)
	sourceFake.PutFile("/root/.openclaw/b.log", "excluded")

	res, err := source.Sync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Files != 1 {
		t.Fatalf("expected 1 synced file, got %d", res.Files)
	}

	// A fresh sandbox restores from the same store.
	targetFake := sandbox.NewFake()
	target := New(targetFake, findRunner{targetFake}, store, Paths{}, nil)
	n, err := target.Restore(context.Background())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 restored file, got %d", n)
	}
	if v, ok := targetFake.GetFile("/root/.openclaw/a.json"); !ok || v != `{"x":1}` {
		t.Fatalf("round trip lost content: %q ok=%v", v, ok)
	}
}
