package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	// DevSessionSecret is only accepted outside production.
	DevSessionSecret = "ventureflow-dev-only-not-for-production"

	minProductionSecretLen = 32
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Session     SessionConfig     `yaml:"session"`
	Security    SecurityConfig    `yaml:"security"`
	Audit       AuditConfig       `yaml:"audit"`
	Logging     LoggingConfig     `yaml:"logging"`
	DefaultUser DefaultUserConfig `yaml:"default_user"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Environment string `yaml:"environment"`
	APIPrefix   string `yaml:"api_prefix"`
	TrustProxy  bool   `yaml:"trust_proxy"`
	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Type   string       `yaml:"type"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	MySQL  MySQLConfig  `yaml:"mysql"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type SessionConfig struct {
	Secret        string        `yaml:"secret"`
	CookieName    string        `yaml:"cookie_name"`
	MaxAge        time.Duration `yaml:"max_age"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxSessions   int           `yaml:"max_sessions"`
	// Store is one of memory, database or badger.
	Store      string `yaml:"store"`
	BadgerPath string `yaml:"badger_path"`
}

type SecurityConfig struct {
	Scrypt    ScryptConfig    `yaml:"scrypt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CSRF      CSRFConfig      `yaml:"csrf"`
	Sanitize  SanitizeConfig  `yaml:"sanitize"`
}

type ScryptConfig struct {
	N          int `yaml:"n"`
	R          int `yaml:"r"`
	P          int `yaml:"p"`
	KeyLen     int `yaml:"key_len"`
	SaltLen    int `yaml:"salt_len"`
	MaxWorkers int `yaml:"max_workers"`
}

type RateLimitConfig struct {
	Disabled bool        `yaml:"disabled"`
	General  LimitConfig `yaml:"general"`
	Auth     LimitConfig `yaml:"auth"`
}

type LimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type CSRFConfig struct {
	HeaderName  string   `yaml:"header_name"`
	HeaderValue string   `yaml:"header_value"`
	ExemptPaths []string `yaml:"exempt_paths"`
}

type SanitizeConfig struct {
	MaxQueryLength int   `yaml:"max_query_length"`
	MaxBodyField   int   `yaml:"max_body_field"`
	MaxBodyBytes   int64 `yaml:"max_body_bytes"`
}

type AuditConfig struct {
	// Store is one of database or memory.
	Store     string `yaml:"store"`
	MemoryMax int    `yaml:"memory_max"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DefaultUserConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Role     string `yaml:"role"`
	// SeedInProduction allows creating the account when
	// server.environment is production. Off by default.
	SeedInProduction bool `yaml:"seed_in_production"`
}

// Load reads the configuration file (optional when path is empty), applies
// environment overrides and defaults, then validates the result.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure data directories exist for file-backed stores
	if cfg.Database.Type == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	if cfg.Session.Store == "badger" {
		if err := os.MkdirAll(cfg.Session.BadgerPath, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if env := os.Getenv("VENTUREFLOW_ENV"); env != "" {
		c.Server.Environment = env
	}
	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		c.Session.Secret = secret
	}
	if secret := os.Getenv("VENTUREFLOW_SESSION_SECRET"); secret != "" {
		c.Session.Secret = secret
	}
	if store := os.Getenv("VENTUREFLOW_SESSION_STORE"); store != "" {
		c.Session.Store = store
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if dbType := os.Getenv("VENTUREFLOW_DB_TYPE"); dbType != "" {
		c.Database.Type = dbType
	}
	if dbPath := os.Getenv("VENTUREFLOW_DB_PATH"); dbPath != "" {
		c.Database.SQLite.Path = dbPath
	}
	if mysqlHost := os.Getenv("VENTUREFLOW_MYSQL_HOST"); mysqlHost != "" {
		c.Database.MySQL.Host = mysqlHost
	}
	if mysqlUser := os.Getenv("VENTUREFLOW_MYSQL_USER"); mysqlUser != "" {
		c.Database.MySQL.Username = mysqlUser
	}
	if mysqlPass := os.Getenv("VENTUREFLOW_MYSQL_PASSWORD"); mysqlPass != "" {
		c.Database.MySQL.Password = mysqlPass
	}
	if mysqlDB := os.Getenv("VENTUREFLOW_MYSQL_DATABASE"); mysqlDB != "" {
		c.Database.MySQL.Database = mysqlDB
	}
	if level := os.Getenv("VENTUREFLOW_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// ApplyDefaults fills every zero value. Tests building a Config by hand call
// it directly.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.Environment == "" {
		c.Server.Environment = EnvDevelopment
	}
	if c.Server.APIPrefix == "" {
		c.Server.APIPrefix = "/api"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = "data/ventureflow.db"
	}
	if c.Database.MySQL.Port == 0 {
		c.Database.MySQL.Port = 3306
	}

	if c.Session.CookieName == "" {
		c.Session.CookieName = "ventureflow.sid"
	}
	if c.Session.MaxAge == 0 {
		c.Session.MaxAge = 4 * time.Hour
	}
	if c.Session.SweepInterval == 0 {
		c.Session.SweepInterval = time.Hour
	}
	if c.Session.MaxSessions == 0 {
		c.Session.MaxSessions = 100
	}
	if c.Session.Store == "" {
		c.Session.Store = "memory"
	}
	if c.Session.BadgerPath == "" {
		c.Session.BadgerPath = "data/sessions"
	}
	if c.Session.Secret == "" && !c.IsProduction() {
		c.Session.Secret = DevSessionSecret
	}

	s := &c.Security.Scrypt
	if s.N == 0 {
		s.N = 16384
	}
	if s.R == 0 {
		s.R = 8
	}
	if s.P == 0 {
		s.P = 1
	}
	if s.KeyLen == 0 {
		s.KeyLen = 64
	}
	if s.SaltLen == 0 {
		s.SaltLen = 16
	}

	rl := &c.Security.RateLimit
	if rl.General.Requests == 0 {
		rl.General.Requests = 100
	}
	if rl.General.Window == 0 {
		rl.General.Window = 15 * time.Minute
	}
	if rl.Auth.Requests == 0 {
		rl.Auth.Requests = 10
	}
	if rl.Auth.Window == 0 {
		rl.Auth.Window = 15 * time.Minute
	}

	if c.Security.CSRF.HeaderName == "" {
		c.Security.CSRF.HeaderName = "X-Requested-With"
	}
	if c.Security.CSRF.HeaderValue == "" {
		c.Security.CSRF.HeaderValue = "XMLHttpRequest"
	}
	if c.Security.CSRF.ExemptPaths == nil {
		c.Security.CSRF.ExemptPaths = []string{"/login", "/register", "/user"}
	}

	if c.Security.Sanitize.MaxQueryLength == 0 {
		c.Security.Sanitize.MaxQueryLength = 500
	}
	if c.Security.Sanitize.MaxBodyField == 0 {
		c.Security.Sanitize.MaxBodyField = 2000
	}
	if c.Security.Sanitize.MaxBodyBytes == 0 {
		c.Security.Sanitize.MaxBodyBytes = 1 << 20
	}

	if c.Audit.Store == "" {
		c.Audit.Store = "database"
	}
	if c.Audit.MemoryMax == 0 {
		c.Audit.MemoryMax = 10000
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		if c.IsProduction() {
			c.Logging.Format = "json"
		} else {
			c.Logging.Format = "console"
		}
	}
}

// Validate rejects configurations that are unsafe or cannot be served.
func (c *Config) Validate() error {
	switch c.Server.Environment {
	case EnvProduction, EnvDevelopment:
	default:
		return fmt.Errorf("unknown environment: %s", c.Server.Environment)
	}

	if c.IsProduction() {
		if c.Session.Secret == "" {
			return errors.New("session secret is required in production")
		}
		if c.Session.Secret == DevSessionSecret {
			return errors.New("development session secret must not be used in production")
		}
		if len(c.Session.Secret) < minProductionSecretLen {
			return fmt.Errorf("session secret must be at least %d bytes in production", minProductionSecretLen)
		}
	}

	switch c.Database.Type {
	case "sqlite":
	case "mysql":
		if c.Database.MySQL.Username == "" {
			return errors.New("MySQL username is required")
		}
		if c.Database.MySQL.Database == "" {
			return errors.New("MySQL database name is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	switch c.Session.Store {
	case "memory", "database", "badger":
	default:
		return fmt.Errorf("unsupported session store: %s", c.Session.Store)
	}

	switch c.Audit.Store {
	case "memory", "database":
	default:
		return fmt.Errorf("unsupported audit store: %s", c.Audit.Store)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// SeedsDefaultUser reports whether the bootstrap account should be created
// at startup. Production skips it unless explicitly enabled.
func (c *Config) SeedsDefaultUser() bool {
	if c.DefaultUser.Username == "" || c.DefaultUser.Password == "" {
		return false
	}
	return !c.IsProduction() || c.DefaultUser.SeedInProduction
}

// UsesDevSecret reports whether the fixed development secret is in effect.
func (c *Config) UsesDevSecret() bool {
	return c.Session.Secret == DevSessionSecret
}
