package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	defaultTargetURI      = "mongodb://localhost:27017"
	defaultConnectTimeout = 10 * time.Second
	defaultLogLevel       = "warn"
)

// MigrationConfig holds one run's settings: defaults, then the optional
// TOML file, then command-line flags.
type MigrationConfig struct {
	Source         SourceConfig `toml:"source"`
	Target         TargetConfig `toml:"target"`
	Mode           WriteMode    `toml:"mode"`
	ExcludeColumns []string     `toml:"exclude_columns" validate:"dive,required"`
	Report         string       `toml:"report"`
	DryRun         bool         `toml:"dry_run"`
	LogLevel       string       `toml:"log_level" validate:"oneof=debug info warn error"`

	// configDir is the directory containing the TOML file, used to resolve relative paths.
	configDir string
}

// SourceConfig identifies the source database engine and connection string.
type SourceConfig struct {
	Type string `toml:"type" validate:"oneof=sqlite mysql postgres"`
	DSN  string `toml:"dsn" validate:"required"` // file path for sqlite
}

// TargetConfig identifies the MongoDB deployment and the namespace to write into.
type TargetConfig struct {
	URI      string        `toml:"uri" validate:"required,startswith=mongodb"`
	Database string        `toml:"database"` // derived from the source when empty
	Timeout  time.Duration `toml:"timeout"`
}

func defaultConfig() MigrationConfig {
	return MigrationConfig{
		Source:         SourceConfig{Type: "sqlite"},
		Target:         TargetConfig{URI: defaultTargetURI, Timeout: defaultConnectTimeout},
		Mode:           ModeReplace,
		ExcludeColumns: append([]string(nil), defaultExcludeColumns...),
		LogLevel:       envLogLevel(os.Getenv("LOGLEVEL")),
	}
}

// envLogLevel maps a LOGLEVEL value to a supported level name.
func envLogLevel(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return "debug"
	case "info":
		return "info"
	case "warn", "warning":
		return "warn"
	case "error", "critical", "fatal":
		return "error"
	default:
		return defaultLogLevel
	}
}

// loadConfig reads a TOML config file on top of the defaults.
func loadConfig(path string) (*MigrationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultConfig()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	if cfg.Source.Type == "sqlite" && cfg.Source.DSN != "" && !strings.HasPrefix(cfg.Source.DSN, "file:") {
		cfg.Source.DSN = cfg.resolvePath(cfg.Source.DSN)
	}
	if cfg.Report != "" {
		cfg.Report = cfg.resolvePath(cfg.Report)
	}
	return &cfg, nil
}

// resolvePath resolves a path relative to the config file directory.
func (c *MigrationConfig) resolvePath(p string) string {
	if filepath.IsAbs(p) || c.configDir == "" {
		return p
	}
	return filepath.Join(c.configDir, p)
}

var configValidator = newConfigValidator()

// newConfigValidator reports fields by their TOML key.
func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("toml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the merged configuration once, before any I/O.
func (c *MigrationConfig) Validate() error {
	c.Source.Type = strings.ToLower(strings.TrimSpace(c.Source.Type))
	c.Target.Database = strings.TrimSpace(c.Target.Database)
	if c.Source.Type == "" {
		c.Source.Type = "sqlite"
	}
	if c.Target.Timeout < 0 {
		return newError(KindInvalidConfig, "target.timeout must not be negative")
	}

	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return wrapError(KindInvalidConfig, err, "validate config")
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", configKey(fe.Namespace()), fe.Tag()))
		}
		return newError(KindInvalidConfig, "%s", strings.Join(msgs, "; "))
	}
	return nil
}

// configKey strips the root struct name: "MigrationConfig.target.uri" -> "target.uri".
func configKey(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
