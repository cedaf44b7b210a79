package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "openclawd.toml", `
env = ["ANTHROPIC_API_KEY=sk-test"]

[sandbox]
base_url = "https://sandbox.example.com"
token = "tok"
timeout = "30s"

[gateway]
command = "openclaw-gateway --port 18789"
env = ["OPENCLAW_MODEL=claude"]
poll_interval = "500ms"

[storage]
account_id = "acc"
access_key_id = "key"
secret_access_key = "secret"

[storage.store]
type = "sqlite"
path = "/var/lib/openclawd/objects.db"

[paths]
config_dir = "/root/.openclaw"

[server]
listen = ":9090"
metrics = true

[audit]
type = "clickhouse"
dsn = "localhost:9000"
table = "openclaw_audit"
`)

	fc, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fc.Sandbox.BaseURL != "https://sandbox.example.com" || fc.Sandbox.Timeout != 30*time.Second {
		t.Fatalf("unexpected sandbox config: %+v", fc.Sandbox)
	}
	if fc.Gateway.Command != "openclaw-gateway --port 18789" {
		t.Fatalf("unexpected gateway command: %q", fc.Gateway.Command)
	}
	if fc.Gateway.PollInterval != 500*time.Millisecond {
		t.Fatalf("unexpected poll interval: %v", fc.Gateway.PollInterval)
	}
	if fc.Storage.Store.Type != "sqlite" || fc.Storage.Store.Path != "/var/lib/openclawd/objects.db" {
		t.Fatalf("unexpected store config: %+v", fc.Storage.Store)
	}
	if fc.Server.Listen != ":9090" || !fc.Server.Metrics {
		t.Fatalf("unexpected server config: %+v", fc.Server)
	}
	if fc.Audit.Type != "clickhouse" || fc.Audit.Table != "openclaw_audit" {
		t.Fatalf("unexpected audit config: %+v", fc.Audit)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "min.toml", `
[gateway]
command = "openclaw-gateway"
`)
	fc, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fc.Storage.Store.Type != "memory" {
		t.Fatalf("expected memory store default, got %q", fc.Storage.Store.Type)
	}
	if fc.Server.Listen != ":8080" {
		t.Fatalf("expected default listen, got %q", fc.Server.Listen)
	}
	if fc.Audit.Type != "log" {
		t.Fatalf("expected log audit default, got %q", fc.Audit.Type)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.toml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestGatewayEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, "secrets.env", `
# provider secrets
ANTHROPIC_API_KEY=from-file
TELEGRAM_BOT_TOKEN=tg-token
`)
	fc := &FileConfig{
		Env:      []string{"ANTHROPIC_API_KEY=from-toml"},
		EnvFiles: []string{envFile},
		Gateway:  GatewayConfig{Env: []string{"OPENCLAW_MODEL=claude"}},
		Storage: StorageConfig{
			AccountID:       "acc",
			AccessKeyID:     "key",
			SecretAccessKey: "secret",
		},
	}

	env, err := fc.GatewayEnv()
	if err != nil {
		t.Fatalf("gateway env: %v", err)
	}
	got := make(map[string]string)
	for _, kv := range env {
		i := strings.IndexByte(kv, '=')
		got[kv[:i]] = kv[i+1:]
	}

	// Top-level env overrides env_files.
	if got["ANTHROPIC_API_KEY"] != "from-toml" {
		t.Fatalf("expected toml override, got %q", got["ANTHROPIC_API_KEY"])
	}
	if got["TELEGRAM_BOT_TOKEN"] != "tg-token" {
		t.Fatalf("missing env-file value: %v", got)
	}
	if got["OPENCLAW_MODEL"] != "claude" {
		t.Fatalf("missing gateway env: %v", got)
	}
	if got["OPENCLAW_STORAGE_ACCOUNT_ID"] != "acc" ||
		got["OPENCLAW_STORAGE_ACCESS_KEY_ID"] != "key" ||
		got["OPENCLAW_STORAGE_SECRET_ACCESS_KEY"] != "secret" {
		t.Fatalf("missing storage credentials: %v", got)
	}
}

func TestGatewayEnvMissingEnvFile(t *testing.T) {
	fc := &FileConfig{EnvFiles: []string{"/does/not/exist.env"}}
	if _, err := fc.GatewayEnv(); err == nil {
		t.Fatal("expected error for missing env file")
	}
}
