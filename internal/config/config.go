package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/liorwn/openclaw-cloudflare/internal/storage"
)

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	Env      []string `toml:"env" mapstructure:"env"`
	EnvFiles []string `toml:"env_files" mapstructure:"env_files"`
	UseOSEnv bool     `toml:"use_os_env" mapstructure:"use_os_env"`

	Sandbox SandboxConfig `toml:"sandbox" mapstructure:"sandbox"`
	Gateway GatewayConfig `toml:"gateway" mapstructure:"gateway"`
	Storage StorageConfig `toml:"storage" mapstructure:"storage"`
	Paths   PathsConfig   `toml:"paths" mapstructure:"paths"`
	Server  ServerConfig  `toml:"server" mapstructure:"server"`
	Audit   AuditConfig   `toml:"audit" mapstructure:"audit"`
	Log     *LogConfig    `toml:"log" mapstructure:"log"`
}

// SandboxConfig locates the sandbox control API.
type SandboxConfig struct {
	BaseURL string        `toml:"base_url" mapstructure:"base_url"`
	Token   string        `toml:"token" mapstructure:"token"`
	Timeout time.Duration `toml:"timeout" mapstructure:"timeout"`
}

// GatewayConfig describes how the gateway process is launched.
type GatewayConfig struct {
	Command      string        `toml:"command" mapstructure:"command"`
	Env          []string      `toml:"env" mapstructure:"env"`
	PollInterval time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
	StartTimeout time.Duration `toml:"start_timeout" mapstructure:"start_timeout"`
}

// StorageConfig holds the object-storage credential triple forwarded to the
// gateway plus the backend the daemon's own store uses. Credential contents
// are forwarded as process environment, never parsed.
type StorageConfig struct {
	AccountID       string `toml:"account_id" mapstructure:"account_id"`
	AccessKeyID     string `toml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key" mapstructure:"secret_access_key"`

	Store storage.Config `toml:"store" mapstructure:"store"`
}

// PathsConfig overrides the sandbox directories the backup engine walks.
type PathsConfig struct {
	ConfigDir       string `toml:"config_dir" mapstructure:"config_dir"`
	LegacyConfigDir string `toml:"legacy_config_dir" mapstructure:"legacy_config_dir"`
	WorkspaceDir    string `toml:"workspace_dir" mapstructure:"workspace_dir"`
	SkillsDir       string `toml:"skills_dir" mapstructure:"skills_dir"`
}

// ServerConfig configures the admin HTTP server.
type ServerConfig struct {
	Listen        string     `toml:"listen" mapstructure:"listen"`
	Metrics       bool       `toml:"metrics" mapstructure:"metrics"`
	TLSMinVersion string     `toml:"tls_min_version" mapstructure:"tls_min_version"`
	TLSMaxVersion string     `toml:"tls_max_version" mapstructure:"tls_max_version"`
	TLS           *TLSConfig `toml:"tls" mapstructure:"tls"`
}

// TLSConfig enables TLS on the admin server, either from existing
// certificate files or a directory with optional self-signed generation.
type TLSConfig struct {
	Enabled      bool        `toml:"enabled" mapstructure:"enabled"`
	CertFile     string      `toml:"cert_file" mapstructure:"cert_file"`
	KeyFile      string      `toml:"key_file" mapstructure:"key_file"`
	Dir          string      `toml:"dir" mapstructure:"dir"`
	AutoGenerate bool        `toml:"auto_generate" mapstructure:"auto_generate"`
	AutoGen      *AutoGenTLS `toml:"auto_gen" mapstructure:"auto_gen"`
}

// AutoGenTLS tunes self-signed certificate generation.
type AutoGenTLS struct {
	CommonName   string   `toml:"common_name" mapstructure:"common_name"`
	Organization string   `toml:"organization" mapstructure:"organization"`
	DNSNames     []string `toml:"dns_names" mapstructure:"dns_names"`
	IPAddresses  []string `toml:"ip_addresses" mapstructure:"ip_addresses"`
	ValidDays    int      `toml:"valid_days" mapstructure:"valid_days"`
}

// AuditConfig selects the audit sink.
type AuditConfig struct {
	Type  string `toml:"type" mapstructure:"type"` // "log" (default) or "clickhouse"
	DSN   string `toml:"dsn" mapstructure:"dsn"`
	Table string `toml:"table" mapstructure:"table"`
}

// LogConfig configures rotated file logging.
type LogConfig struct {
	Dir        string `toml:"dir" mapstructure:"dir"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// Load parses a TOML config file.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if fc.Storage.Store.Type == "" {
		fc.Storage.Store.Type = "memory"
	}
	if fc.Server.Listen == "" {
		fc.Server.Listen = ":8080"
	}
	if fc.Audit.Type == "" {
		fc.Audit.Type = "log"
	}
	return &fc, nil
}

// GatewayEnv builds the environment injected into the gateway process.
// Precedence: OS env (when enabled) provides base; then env_files in order;
// then top-level env; then [gateway] env; storage credentials last.
func (fc *FileConfig) GatewayEnv() ([]string, error) {
	m := make(map[string]string)
	if fc.UseOSEnv {
		for _, kv := range os.Environ() {
			applyKV(m, kv)
		}
	}
	for _, p := range fc.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, err
		}
		for k, v := range pairs {
			m[k] = v
		}
	}
	for _, kv := range fc.Env {
		applyKV(m, kv)
	}
	for _, kv := range fc.Gateway.Env {
		applyKV(m, kv)
	}
	if fc.Storage.AccountID != "" {
		m["OPENCLAW_STORAGE_ACCOUNT_ID"] = fc.Storage.AccountID
	}
	if fc.Storage.AccessKeyID != "" {
		m["OPENCLAW_STORAGE_ACCESS_KEY_ID"] = fc.Storage.AccessKeyID
	}
	if fc.Storage.SecretAccessKey != "" {
		m["OPENCLAW_STORAGE_SECRET_ACCESS_KEY"] = fc.Storage.SecretAccessKey
	}

	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out, nil
}

func applyKV(m map[string]string, kv string) {
	if i := strings.IndexByte(kv, '='); i >= 0 {
		m[kv[:i]] = kv[i+1:]
	}
}

// loadEnvFile parses a simple .env file with KEY=VALUE lines (no export, no quotes). Lines starting with # are ignored.
func loadEnvFile(path string) (map[string]string, error) {
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.TrimSpace(line[i+1:])
			m[k] = v
		}
	}
	return m, nil
}
