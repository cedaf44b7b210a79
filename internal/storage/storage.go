package storage

import (
	"context"
	"strings"
	"time"
)

// defaultPageSize bounds one List page when the caller does not say otherwise.
const defaultPageSize = 1000

// Object is one stored entry's listing view.
type Object struct {
	Key string `json:"key"`
}

// Page is one slice of a listing. When Truncated is true the Cursor resumes
// the listing where this page ended.
type Page struct {
	Objects   []Object `json:"objects"`
	Truncated bool     `json:"truncated"`
	Cursor    string   `json:"cursor,omitempty"`
}

// ListOptions select and paginate a listing.
type ListOptions struct {
	Prefix string
	Cursor string
	Limit  int
}

// Store is the object-storage surface the sync and restore engines run
// against. Get reports absence with the second return rather than an error.
// Put overwrites; writes are idempotent by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, opts ListOptions) (Page, error)

	Ping(ctx context.Context) error
	Close() error
}

// Config represents configuration for different store types
type Config struct {
	Type string `toml:"type" yaml:"type" json:"type"` // "memory", "sqlite", "postgresql"

	// SQLite specific
	Path string `toml:"path,omitempty" yaml:"path,omitempty" json:"path,omitempty"`

	// PostgreSQL specific
	Host     string `toml:"host,omitempty" yaml:"host,omitempty" json:"host,omitempty"`
	Port     int    `toml:"port,omitempty" yaml:"port,omitempty" json:"port,omitempty"`
	Database string `toml:"database,omitempty" yaml:"database,omitempty" json:"database,omitempty"`
	Username string `toml:"username,omitempty" yaml:"username,omitempty" json:"username,omitempty"`
	Password string `toml:"password,omitempty" yaml:"password,omitempty" json:"password,omitempty"`
	SSLMode  string `toml:"ssl_mode,omitempty" yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty"`

	// Connection pooling
	MaxOpenConns int           `toml:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`
	MaxIdleConns int           `toml:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`
	ConnMaxAge   time.Duration `toml:"conn_max_age,omitempty" yaml:"conn_max_age,omitempty" json:"conn_max_age,omitempty"`

	TablePrefix string `toml:"table_prefix,omitempty" yaml:"table_prefix,omitempty" json:"table_prefix,omitempty"`
}

func (c Config) tableName() string {
	return c.TablePrefix + "objects"
}

// likePrefix turns a key prefix into a LIKE pattern with SQL wildcards
// escaped, for the SQL-backed stores.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

// ListAllKeys drains a prefix listing across pages.
func ListAllKeys(ctx context.Context, s Store, prefix string) ([]string, error) {
	var keys []string
	var cursor string
	for {
		page, err := s.List(ctx, ListOptions{Prefix: prefix, Cursor: cursor})
		if err != nil {
			return nil, err
		}
		for _, o := range page.Objects {
			keys = append(keys, o.Key)
		}
		if !page.Truncated {
			return keys, nil
		}
		cursor = page.Cursor
	}
}
