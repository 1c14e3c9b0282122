// Package config loads Loom configuration from defaults, an optional
// YAML file and LOOM_-prefixed environment variables, in that order of
// precedence (later wins).
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides,
// e.g. LOOM_LLM_MODEL -> llm.model.
const EnvPrefix = "LOOM_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	Agent     AgentConfig     `koanf:"agent"`
	Memory    MemoryConfig    `koanf:"memory"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider string `koanf:"provider"` // ollama
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
}

// AgentConfig carries process-wide agent defaults.
type AgentConfig struct {
	MaxIterations int           `koanf:"max_iterations"`
	Timeout       time.Duration `koanf:"timeout"`
	Temperature   float64       `koanf:"temperature"`
}

type MemoryConfig struct {
	// DataDir holds the durable tier's files. Empty keeps the durable
	// tier in memory as well.
	DataDir                string        `koanf:"data_dir"`
	ConsolidationThreshold int           `koanf:"consolidation_threshold"`
	ConsolidationFloor     string        `koanf:"consolidation_floor"` // low, medium, high, critical
	PruneInterval          time.Duration `koanf:"prune_interval"`
	PruneMaxAge            time.Duration `koanf:"prune_max_age"`
}

type TelemetryConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Exporter string `koanf:"exporter"` // stdout, otlp
	Endpoint string `koanf:"endpoint"`
}

// Load reads configuration from the optional file at path plus the
// environment. Each call uses a fresh koanf instance; there is no
// package-level state.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("llm.provider", "ollama")
	k.Set("llm.model", "qwen2.5-coder:7b-instruct-q5_K_M")
	k.Set("llm.base_url", "http://localhost:11434")

	k.Set("agent.max_iterations", 10)
	k.Set("agent.timeout", "2m")
	k.Set("agent.temperature", 0.7)

	k.Set("memory.consolidation_threshold", 100)
	k.Set("memory.consolidation_floor", "high")
	k.Set("memory.prune_interval", "0s")
	k.Set("memory.prune_max_age", "24h")

	k.Set("telemetry.enabled", false)
	k.Set("telemetry.exporter", "stdout")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// LOOM_LLM_MODEL -> llm.model
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
