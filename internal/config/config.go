package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir = ".toolgate"
	DefaultYAMLFile  = "config.yaml"
	DefaultTOMLFile  = "config.toml"
	DefaultLogDir    = "logs"
	DefaultPacksDir  = "packs"

	// EnvPrefix prefixes every environment override, e.g. TOOLGATE_MODE.
	EnvPrefix = "TOOLGATE"

	DefaultMaxScriptBytes int64 = 1 << 20
	DefaultServeAddr            = "127.0.0.1:8787"
)

type Config struct {
	Mode           string            `yaml:"mode" toml:"mode" validate:"oneof=enforce monitor"`
	LogLevel       string            `yaml:"log_level" toml:"log_level" validate:"oneof=debug info warn error"`
	LogDir         string            `yaml:"log_dir" toml:"log_dir"`
	MaxScriptBytes int64             `yaml:"max_script_bytes" toml:"max_script_bytes" validate:"gt=0"`
	ProtectedPaths []string          `yaml:"protected_paths" toml:"protected_paths" validate:"dive,required"`
	Tools          map[string]string `yaml:"tools" toml:"tools" validate:"dive,keys,required,endkeys,oneof=bash file glob grep ls task"`
	Audit          AuditConfig       `yaml:"audit" toml:"audit"`
	Serve          ServeConfig       `yaml:"serve" toml:"serve"`

	// ConfigDir is the directory holding the config file, packs and logs.
	ConfigDir string `yaml:"-" toml:"-"`
	// Path is the config file that was loaded, empty when defaults were used.
	Path string `yaml:"-" toml:"-"`
	// Packs describes every pack file found, enabled or not.
	Packs []PackInfo `yaml:"-" toml:"-"`
}

type AuditConfig struct {
	// Files enables the allowed.json and blocked.json logs under LogDir.
	Files         bool   `yaml:"files" toml:"files"`
	ClickHouseDSN string `yaml:"clickhouse_dsn" toml:"clickhouse_dsn"`
	PostgresDSN   string `yaml:"postgres_dsn" toml:"postgres_dsn"`
}

type ServeConfig struct {
	Addr string `yaml:"addr" toml:"addr" validate:"required,hostname_port"`
	// APIKeyHash is a bcrypt hash; when set, requests need a matching bearer token.
	APIKeyHash string `yaml:"api_key_hash" toml:"api_key_hash"`
}

// envOverrides mirrors the settings that can come from TOOLGATE_* variables.
// Pointers stay nil when the variable is unset.
type envOverrides struct {
	Mode           *string  `envconfig:"MODE"`
	LogLevel       *string  `envconfig:"LOG_LEVEL"`
	LogDir         *string  `envconfig:"LOG_DIR"`
	MaxScriptBytes *int64   `envconfig:"MAX_SCRIPT_BYTES"`
	ProtectedPaths []string `envconfig:"PROTECTED_PATHS"`
	AuditFiles     *bool    `envconfig:"AUDIT_FILES"`
	ClickHouseDSN  *string  `envconfig:"CLICKHOUSE_DSN"`
	PostgresDSN    *string  `envconfig:"POSTGRES_DSN"`
	ServeAddr      *string  `envconfig:"SERVE_ADDR"`
	APIKeyHash     *string  `envconfig:"API_KEY_HASH"`
}

var validate = validator.New()

// Default returns the built-in configuration rooted at configDir.
func Default(configDir string) *Config {
	return &Config{
		Mode:           "enforce",
		LogLevel:       "warn",
		LogDir:         filepath.Join(configDir, DefaultLogDir),
		MaxScriptBytes: DefaultMaxScriptBytes,
		Tools:          map[string]string{},
		Audit:          AuditConfig{Files: true},
		Serve:          ServeConfig{Addr: DefaultServeAddr},
		ConfigDir:      configDir,
	}
}

// Options selects where Load looks.
type Options struct {
	// Path is an explicit config file; it must exist.
	Path string
	// ConfigDir overrides ~/.toolgate.
	ConfigDir string
	// SkipEnv disables TOOLGATE_* overrides.
	SkipEnv bool
}

// Load builds the configuration: defaults, then the YAML or TOML file, then
// enabled packs, then TOOLGATE_* environment variables. The result is
// validated. A missing default config file is not an error.
func Load(opts Options) (*Config, error) {
	configDir := opts.ConfigDir
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, DefaultConfigDir)
	}

	cfg := Default(configDir)

	path := opts.Path
	if path == "" {
		path = findConfigFile(configDir)
	}
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
		cfg.Path = path
		if cfg.Tools == nil {
			cfg.Tools = map[string]string{}
		}
	}

	packs, err := LoadPacks(filepath.Join(configDir, DefaultPacksDir), cfg)
	if err != nil {
		return nil, fmt.Errorf("load packs: %w", err)
	}
	cfg.Packs = packs

	if !opts.SkipEnv {
		if err := cfg.applyEnv(); err != nil {
			return nil, err
		}
	}

	cfg.LogDir = expandHome(cfg.LogDir)
	for i, p := range cfg.ProtectedPaths {
		cfg.ProtectedPaths[i] = strings.TrimSpace(p)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func findConfigFile(dir string) string {
	for _, name := range []string{DefaultYAMLFile, "config.yml", DefaultTOMLFile} {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}
	return ""
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("parse %s: unknown key %q", path, undecoded[0].String())
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config %s: unsupported format (want .yaml, .yml or .toml)", path)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}

	setString(&c.Mode, env.Mode)
	setString(&c.LogLevel, env.LogLevel)
	setString(&c.LogDir, env.LogDir)
	setString(&c.Audit.ClickHouseDSN, env.ClickHouseDSN)
	setString(&c.Audit.PostgresDSN, env.PostgresDSN)
	setString(&c.Serve.Addr, env.ServeAddr)
	setString(&c.Serve.APIKeyHash, env.APIKeyHash)
	if env.MaxScriptBytes != nil {
		c.MaxScriptBytes = *env.MaxScriptBytes
	}
	if env.AuditFiles != nil {
		c.Audit.Files = *env.AuditFiles
	}
	c.ProtectedPaths = union(c.ProtectedPaths, env.ProtectedPaths)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// union appends the entries of extra not already in base.
func union(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, p := range base {
		seen[p] = true
	}
	for _, p := range extra {
		if p != "" && !seen[p] {
			base = append(base, p)
			seen[p] = true
		}
	}
	return base
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// EnsureDir creates dir with owner-only permissions.
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o700)
	}
	return nil
}
