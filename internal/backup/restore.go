package backup

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/liorwn/openclaw-cloudflare/internal/metrics"
	"github.com/liorwn/openclaw-cloudflare/internal/storage"
)

// restoreExcludedExts are object extensions never written back into the
// sandbox: session logs and backup/temp artifacts.
var restoreExcludedExts = []string{".log", ".bak", ".tmp"}

// Restore writes stored objects back into a fresh sandbox. It is a no-op
// when no last-sync marker exists (first boot). The skills prefix is not
// restored: skill files are baked into the deployed image, and re-fetching
// them would burn the platform's per-invocation outbound-call budget.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	raw, ok, err := e.store.Get(ctx, lastSyncKey)
	if err != nil {
		return 0, fmt.Errorf("read last-sync marker: %w", err)
	}
	if !ok {
		e.logger.Info("no last-sync marker, skipping restore")
		return 0, nil
	}

	mappings := []struct {
		prefix string
		dir    string
	}{
		{configPrefix, e.paths.ConfigDir},
		{workspacePrefix, e.paths.WorkspaceDir},
	}

	madeDirs := make(map[string]bool)
	restored := 0
	for _, m := range mappings {
		n, err := e.restorePrefix(ctx, m.prefix, m.dir, madeDirs)
		if err != nil {
			return restored, err
		}
		restored += n
	}

	if restored > 0 {
		// Downstream startup logic detects a restored sandbox by this file.
		marker := path.Join(e.paths.ConfigDir, lastSyncKey)
		if err := e.rt.WriteFile(ctx, marker, string(raw)); err != nil {
			e.logger.Warn("restore marker write failed", "path", marker, "error", err)
		}
		metrics.AddRestoredFiles(restored)
	}
	e.logger.Info("restore complete", "files", restored)
	return restored, nil
}

// restorePrefix paginates one prefix listing exhaustively and writes each
// eligible object into the corresponding sandbox path. Per-object failures
// are logged and skipped.
func (e *Engine) restorePrefix(ctx context.Context, prefix, dir string, madeDirs map[string]bool) (int, error) {
	restored := 0
	var cursor string
	for {
		page, err := e.store.List(ctx, storage.ListOptions{Prefix: prefix, Cursor: cursor})
		if err != nil {
			return restored, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range page.Objects {
			if !restorable(obj.Key) {
				continue
			}
			if e.restoreObject(ctx, obj.Key, targetPath(dir, prefix, obj.Key), madeDirs) {
				restored++
			}
		}
		if !page.Truncated {
			return restored, nil
		}
		cursor = page.Cursor
	}
}

// restorable rejects directory markers, excluded extensions, and corrupt keys.
func restorable(key string) bool {
	if strings.HasSuffix(key, "/") {
		return false
	}
	for _, ext := range restoreExcludedExts {
		if strings.HasSuffix(key, ext) {
			return false
		}
	}
	return !IsCorrupt(key)
}

func (e *Engine) restoreObject(ctx context.Context, key, target string, madeDirs map[string]bool) bool {
	value, ok, err := e.store.Get(ctx, key)
	if err != nil || !ok {
		e.logger.Warn("skipping unreadable object", "key", key, "error", err)
		return false
	}

	parent := path.Dir(target)
	if !madeDirs[parent] {
		if err := e.rt.Mkdir(ctx, parent, true); err != nil {
			e.logger.Warn("mkdir failed", "path", parent, "error", err)
			return false
		}
		madeDirs[parent] = true
	}

	if err := e.rt.WriteFile(ctx, target, string(value)); err != nil {
		e.logger.Warn("restore write failed", "path", target, "error", err)
		return false
	}
	return true
}
