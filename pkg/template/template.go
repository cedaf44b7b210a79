// Package template generates starter daemon configurations for the common
// deployment flavors, used by `openclawd config init`.
package template

import (
	"fmt"
	"strings"
)

// TemplateType selects the deployment flavor to generate.
type TemplateType string

const (
	TypeDev      TemplateType = "dev"
	TypeSQLite   TemplateType = "sqlite"
	TypePostgres TemplateType = "postgresql"
	TypePG       TemplateType = "pg"
)

// ConfigTemplate holds the values substituted into the rendered TOML.
type ConfigTemplate struct {
	StoreType string
	StorePath string // sqlite file path
	StoreHost string // postgres host
	StorePort int
	Listen    string
	Metrics   bool
	LogDir    string
	Sandbox   bool // emit a [sandbox] section
}

// Generator provides configuration template generation.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate creates a configuration template for the given flavor.
func (g *Generator) Generate(templateType TemplateType) (*ConfigTemplate, error) {
	switch templateType {
	case TypeDev:
		return &ConfigTemplate{
			StoreType: "memory",
			Listen:    ":8080",
			Metrics:   true,
		}, nil
	case TypeSQLite:
		return &ConfigTemplate{
			StoreType: "sqlite",
			StorePath: "/var/lib/openclaw/state.db",
			Listen:    ":8080",
			Metrics:   true,
			LogDir:    "/var/log/openclaw",
			Sandbox:   true,
		}, nil
	case TypePostgres, TypePG:
		return &ConfigTemplate{
			StoreType: "postgresql",
			StoreHost: "localhost",
			StorePort: 5432,
			Listen:    ":8080",
			Metrics:   true,
			LogDir:    "/var/log/openclaw",
			Sandbox:   true,
		}, nil
	default:
		return nil, fmt.Errorf("unknown template type: %s (supported: %s)",
			templateType, strings.Join(SupportedTypes(), ", "))
	}
}

// SupportedTypes returns the accepted template type names.
func SupportedTypes() []string {
	return []string{string(TypeDev), string(TypeSQLite), string(TypePostgres)}
}

// Render produces the TOML configuration text.
func (ct *ConfigTemplate) Render() string {
	var b strings.Builder

	b.WriteString("# openclawd configuration\n\nuse_os_env = true\n")

	if ct.Sandbox {
		b.WriteString("\n[sandbox]\n")
		b.WriteString("base_url = \"https://sandbox.internal:8443\"\n")
		b.WriteString("token = \"changeme\"\n")
		b.WriteString("timeout = \"30s\"\n")
	}

	b.WriteString("\n[gateway]\ncommand = \"openclaw-gateway\"\n")

	b.WriteString("\n[storage]\n")
	b.WriteString("account_id = \"\"\naccess_key_id = \"\"\nsecret_access_key = \"\"\n")
	b.WriteString("\n[storage.store]\n")
	fmt.Fprintf(&b, "type = %q\n", ct.StoreType)
	if ct.StorePath != "" {
		fmt.Fprintf(&b, "path = %q\n", ct.StorePath)
	}
	if ct.StoreHost != "" {
		fmt.Fprintf(&b, "host = %q\nport = %d\n", ct.StoreHost, ct.StorePort)
		b.WriteString("database = \"openclaw\"\nusername = \"openclaw\"\npassword = \"\"\n")
	}

	b.WriteString("\n[server]\n")
	fmt.Fprintf(&b, "listen = %q\nmetrics = %v\n", ct.Listen, ct.Metrics)

	if ct.LogDir != "" {
		b.WriteString("\n[log]\n")
		fmt.Fprintf(&b, "dir = %q\n", ct.LogDir)
	}

	return b.String()
}
