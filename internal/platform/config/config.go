package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Scope    ScopeConfig    `koanf:"scope"`
	Audit    AuditConfig    `koanf:"audit"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	MigrationsPath string `koanf:"migrations_path"`
	MaxConns       int    `koanf:"max_conns"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ScopeConfig tunes data-scope predicate derivation.
type ScopeConfig struct {
	// Concurrent resolves the tenant, share and department conditions in
	// parallel. Only safe when the Querier handed to the builder is a pool.
	Concurrent bool `koanf:"concurrent"`
	// DepartmentCacheTTL is the lifetime in seconds of the cached department
	// adjacency index. Zero disables caching.
	DepartmentCacheTTL int `koanf:"departmentcachettl"`
}

type AuditConfig struct {
	BufferSize      int `koanf:"buffersize"`
	BatchSize       int `koanf:"batchsize"`
	FlushIntervalMs int `koanf:"flushintervalms"`
}

func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	_ = k.Load(confmap.Provider(map[string]any{
		"database.max_conns":       25,
		"database.migrations_path": "migrations",
		"log.level":                "info",
		"log.format":               "json",
		"scope.concurrent":         false,
		"scope.departmentcachettl": 0,
		"audit.buffersize":         1024,
		"audit.batchsize":          100,
		"audit.flushintervalms":    500,
	}, "."), nil)

	// YAML file (optional)
	for _, path := range configPaths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			continue
		}
	}

	// TENANTSCOPE_SCOPE_CONCURRENT -> scope.concurrent
	_ = k.Load(env.Provider("TENANTSCOPE_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "TENANTSCOPE_")),
			"_", ".",
		)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
