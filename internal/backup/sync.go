package backup

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/liorwn/openclaw-cloudflare/internal/metrics"
	"github.com/liorwn/openclaw-cloudflare/internal/stream"
)

// SyncResult reports a successful sync pass.
type SyncResult struct {
	Files     int
	Timestamp time.Time
}

// tree is one sandbox directory mirrored under a storage prefix.
type tree struct {
	dir        string
	prefix     string
	excludeDir string
}

// Sync mirrors the config, workspace, and skills trees into object storage
// and writes the last-sync marker. Per-file failures are logged and skipped;
// a pass that backs up 9 of 10 files is still a success. ErrNothingToSync is
// returned when no source data exists.
func (e *Engine) Sync(ctx context.Context) (SyncResult, error) {
	configDir, configFiles := e.probeConfigDir(ctx)
	if len(configFiles) == 0 {
		metrics.IncSyncPass("nothing_to_sync")
		return SyncResult{}, ErrNothingToSync
	}

	e.sweepCorrupt(ctx)

	trees := []struct {
		tree
		files []string
	}{
		{tree{dir: configDir, prefix: configPrefix}, configFiles},
		{tree{dir: e.paths.WorkspaceDir, prefix: workspacePrefix, excludeDir: e.paths.SkillsDir}, nil},
		{tree{dir: e.paths.SkillsDir, prefix: skillsPrefix}, nil},
	}

	total := 0
	for _, t := range trees {
		files := t.files
		if files == nil {
			files = e.listFiles(ctx, t.dir, t.excludeDir)
		}
		total += e.uploadTree(ctx, t.tree, files)
	}

	if total == 0 {
		metrics.IncSyncPass("nothing_to_sync")
		return SyncResult{}, ErrNothingToSync
	}

	ts := e.now().UTC().Truncate(time.Second)
	if err := e.store.Put(ctx, lastSyncKey, []byte(ts.Format(time.RFC3339))); err != nil {
		metrics.IncSyncPass("error")
		return SyncResult{}, fmt.Errorf("write last-sync marker: %w", err)
	}

	metrics.IncSyncPass("success")
	metrics.AddSyncedFiles(total)
	metrics.SetLastSyncTime(ts)
	e.logger.Info("sync complete", "files", total, "timestamp", ts)
	return SyncResult{Files: total, Timestamp: ts}, nil
}

// probeConfigDir lists the primary config directory, falling back to the
// legacy one when the primary has no files.
func (e *Engine) probeConfigDir(ctx context.Context) (string, []string) {
	if files := e.listFiles(ctx, e.paths.ConfigDir, ""); len(files) > 0 {
		return e.paths.ConfigDir, files
	}
	files := e.listFiles(ctx, e.paths.LegacyConfigDir, "")
	if len(files) > 0 {
		e.logger.Info("using legacy config directory", "dir", e.paths.LegacyConfigDir)
	}
	return e.paths.LegacyConfigDir, files
}

// listFiles enumerates syncable files under dir via a find run through the
// bounded runner. Version-control, lock, log, and temp files are excluded at
// the find level; results are additionally filtered through the corruption
// check as a second line of defense.
func (e *Engine) listFiles(ctx context.Context, dir, excludeDir string) []string {
	cmd := fmt.Sprintf("find %s -type f"+
		" -not -path '*/.git/*'"+
		" -not -path '*/node_modules/*'"+
		" -not -name '*.lock'"+
		" -not -name '*.log'"+
		" -not -name '*.tmp'", dir)
	if excludeDir != "" {
		cmd += fmt.Sprintf(" -not -path '%s/*'", excludeDir)
	}

	out := e.run.Run(ctx, cmd, listTimeout)
	var files []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, dir+"/") {
			continue
		}
		if IsCorrupt(line) {
			e.logger.Warn("skipping unclean path", "path", line)
			continue
		}
		files = append(files, line)
	}
	return files
}

// uploadTree reads each file through the streaming path and uploads it under
// the tree's prefix, returning how many made it.
func (e *Engine) uploadTree(ctx context.Context, t tree, files []string) int {
	uploaded := 0
	for _, file := range files {
		content, ok := e.readFile(ctx, file)
		if !ok {
			e.logger.Warn("skipping unreadable file", "path", file)
			continue
		}
		key := t.prefix + strings.TrimPrefix(file, t.dir+"/")
		if err := e.store.Put(ctx, key, []byte(content)); err != nil {
			e.logger.Warn("upload failed", "key", key, "error", err)
			continue
		}
		uploaded++
	}
	return uploaded
}

// readFile reads one sandbox file through the framed-stream decode path.
// An unreadable or unparseable stream reports false rather than an error.
func (e *Engine) readFile(ctx context.Context, file string) (string, bool) {
	readCtx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	raw, err := e.rt.ReadFileStream(readCtx, file)
	if err != nil {
		return "", false
	}
	if len(stream.Parse(raw)) == 0 {
		return "", false
	}
	return stream.FileContent(raw), true
}

// targetPath maps a storage key under prefix into a sandbox path under dir.
func targetPath(dir, prefix, key string) string {
	return path.Join(dir, strings.TrimPrefix(key, prefix))
}
