package config

import (
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/pgcrud/pgcrud/pkg/apperrors"
)

// DefaultConfigFile is read when present; environment variables override it.
const DefaultConfigFile = "config.yaml"

// Config holds everything the gateway needs to run. Values come from
// config.yaml when the file exists, with environment variables overriding.
// Secrets only come from the environment (yaml:"-" fields).
type Config struct {
	// Server
	Host    string `yaml:"host" env:"HOST" env-default:"0.0.0.0"`
	Port    string `yaml:"port" env:"PORT" env-default:"8080"`
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // injected at build time

	// Target database. DATABASE_URL is the only required setting; an
	// optional read replica URL offloads list and read traffic.
	DatabaseURL     string `yaml:"-" env:"DATABASE_URL"`
	ReadDatabaseURL string `yaml:"-" env:"READ_DATABASE_URL"`

	// Catalog scoping. Comma-separated namespace and table lists.
	IncludeNamespacesStr string `yaml:"include_namespaces" env:"INCLUDE_NAMESPACES" env-default:""`
	ExcludeNamespacesStr string `yaml:"exclude_namespaces" env:"EXCLUDE_NAMESPACES" env-default:""`
	ExcludeTablesStr     string `yaml:"exclude_tables" env:"EXCLUDE_TABLES" env-default:""`

	IncludeNamespaces []string `yaml:"-"`
	ExcludeNamespaces []string `yaml:"-"`
	ExcludeTables     []string `yaml:"-"`

	// Pagination and payload limits.
	DefaultPageSize int   `yaml:"default_page_size" env:"DEFAULT_PAGE_SIZE" env-default:"50"`
	MaxPageSize     int   `yaml:"max_page_size" env:"MAX_PAGE_SIZE" env-default:"200"`
	MaxBulkRows     int   `yaml:"max_bulk_rows" env:"MAX_BULK_ROWS" env-default:"500"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes" env:"MAX_BODY_BYTES" env-default:"1048576"`

	// Authentication. When enabled, MasterSecret signs and verifies
	// gateway credentials and must be set.
	AuthEnabled  bool   `yaml:"auth_enabled" env:"AUTH_ENABLED" env-default:"false"`
	MasterSecret string `yaml:"-" env:"MASTER_SECRET"`

	// Surface toggles. CORS_ORIGINS accepts a boolean ("true" allows every
	// origin, "false" disables CORS handling) or a comma-separated origin
	// list.
	DocsEnabled    bool     `yaml:"docs_enabled" env:"DOCS_ENABLED" env-default:"true"`
	ExposeDBErrors bool     `yaml:"expose_db_errors" env:"EXPOSE_DB_ERRORS" env-default:"false"`
	CORSOriginsStr string   `yaml:"cors_origins" env:"CORS_ORIGINS" env-default:"*"`
	CORSOrigins    []string `yaml:"-"` // empty means CORS handling is disabled
}

// Load reads configuration and validates it. The version string is injected
// at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	var err error
	if _, statErr := os.Stat(DefaultConfigFile); statErr == nil {
		err = cleanenv.ReadConfig(DefaultConfigFile, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfigurationInvalid, err, "failed to read configuration")
	}

	cfg.parseLists()
	cfg.DatabaseURL = normalizeDatabaseURL(cfg.DatabaseURL)
	cfg.ReadDatabaseURL = normalizeDatabaseURL(cfg.ReadDatabaseURL)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) parseLists() {
	c.IncludeNamespaces = splitList(c.IncludeNamespacesStr)
	c.ExcludeNamespaces = splitList(c.ExcludeNamespacesStr)
	c.ExcludeTables = splitList(c.ExcludeTablesStr)
	c.CORSOrigins = parseCORSOrigins(c.CORSOriginsStr)
}

// parseCORSOrigins interprets the boolean-or-list CORS setting.
func parseCORSOrigins(raw string) []string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true":
		return []string{"*"}
	case "false":
		return nil
	}
	return splitList(raw)
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return apperrors.New(apperrors.KindConfigurationInvalid, "DATABASE_URL is required")
	}
	if c.AuthEnabled && c.MasterSecret == "" {
		return apperrors.New(apperrors.KindConfigurationInvalid, "MASTER_SECRET is required when AUTH_ENABLED is true")
	}
	if c.DefaultPageSize < 1 {
		return apperrors.New(apperrors.KindConfigurationInvalid, "DEFAULT_PAGE_SIZE must be at least 1")
	}
	if c.MaxPageSize < c.DefaultPageSize {
		return apperrors.New(apperrors.KindConfigurationInvalid, "MAX_PAGE_SIZE must not be smaller than DEFAULT_PAGE_SIZE")
	}
	if c.MaxBulkRows < 1 {
		return apperrors.New(apperrors.KindConfigurationInvalid, "MAX_BULK_ROWS must be at least 1")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// normalizeDatabaseURL accepts URLs pasted from JDBC tooling by stripping
// the jdbc: scheme prefix.
func normalizeDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(raw, "jdbc:"); ok {
		return rest
	}
	return raw
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
