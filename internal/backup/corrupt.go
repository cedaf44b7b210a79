package backup

import (
	"context"
	"strings"

	"github.com/liorwn/openclaw-cloudflare/internal/metrics"
	"github.com/liorwn/openclaw-cloudflare/internal/storage"
)

// corruptionMarkers are substrings an earlier faulty serializer leaked into
// storage keys. Legitimate keys never contain them: keys are derived from
// sandbox file paths, which the listing filter already rejects when unclean.
var corruptionMarkers = []string{`"`, `{`, `}`, `\n`}

// IsCorrupt reports whether a key or path carries the known bad-serialization
// signature.
func IsCorrupt(s string) bool {
	for _, m := range corruptionMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// sweepCorrupt deletes every stored key matching the corruption signature.
// It runs on every sync so the store self-heals even if corruption reoccurs.
// Best-effort: delete errors are logged and skipped.
func (e *Engine) sweepCorrupt(ctx context.Context) int {
	keys, err := storage.ListAllKeys(ctx, e.store, "")
	if err != nil {
		e.logger.Warn("corruption sweep listing failed", "error", err)
		return 0
	}
	deleted := 0
	for _, key := range keys {
		if !IsCorrupt(key) {
			continue
		}
		if err := e.store.Delete(ctx, key); err != nil {
			e.logger.Warn("corrupt key delete failed", "key", key, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		metrics.AddCorruptKeysDeleted(deleted)
		e.logger.Info("corruption sweep", "deleted", deleted)
	}
	return deleted
}
