// Package config handles agent configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all agent configuration.
type Config struct {
	AWS     AWSConfig     `yaml:"aws"`
	Model   ModelConfig   `yaml:"model"`
	Memory  MemoryConfig  `yaml:"memory"`
	Gateway GatewayConfig `yaml:"gateway"`
	Lambda  LambdaConfig  `yaml:"lambda"`
	Runtime RuntimeConfig `yaml:"runtime"`
}

type AWSConfig struct {
	Region string `yaml:"region"`
}

type ModelConfig struct {
	ModelID     string  `yaml:"model_id"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type MemoryConfig struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	EventExpiryDays int    `yaml:"event_expiry_days"`
	// Defaults used when a request carries no identity or session.
	DefaultActorID   string `yaml:"default_actor_id"`
	DefaultSessionID string `yaml:"default_session_id"`
}

type GatewayConfig struct {
	Name string `yaml:"name"`
	// TargetName is the Lambda tool target registered on the gateway.
	TargetName     string `yaml:"target_name"`
	ToolSchemaPath string `yaml:"tool_schema_path"`
	// ParamPrefix is the SSM path under which setup records the gateway
	// endpoint for the runtime to resolve.
	ParamPrefix string `yaml:"param_prefix"`
}

type LambdaConfig struct {
	FunctionName string `yaml:"function_name"`
	RoleName     string `yaml:"role_name"`
}

type RuntimeConfig struct {
	Addr string `yaml:"addr"`
	// RequestTimeoutSec is the fixed outer timeout applied at the transport
	// boundary; the core layers do not cancel on their own.
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
}

// Default returns the built-in configuration, mirroring the values setup and
// runtime agree on when no file is present.
func Default() Config {
	return Config{
		AWS: AWSConfig{Region: "eu-central-1"},
		Model: ModelConfig{
			ModelID:     "anthropic.claude-3-haiku-20240307-v1:0",
			MaxTokens:   1000,
			Temperature: 0.7,
		},
		Memory: MemoryConfig{
			Name:             "AgentMemory",
			Description:      "Memory for agent conversations",
			EventExpiryDays:  30,
			DefaultActorID:   "default_user",
			DefaultSessionID: "session_001",
		},
		Gateway: GatewayConfig{
			Name:        "AgentGateway",
			TargetName:  "AgentTools",
			ParamPrefix: "/agentcore",
		},
		Lambda: LambdaConfig{
			FunctionName: "agentcore-gateway-tools",
			RoleName:     "AgentCoreGatewayLambdaRole",
		},
		Runtime: RuntimeConfig{
			Addr:              ":8080",
			RequestTimeoutSec: 60,
		},
	}
}

// DefaultSearchPaths returns the config file search order. An explicit path
// (from a -config flag) is checked first by Load.
func DefaultSearchPaths() []string {
	paths := []string{"agent.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "agentcore-agent", "agent.yaml"))
	}
	return paths
}

// Load reads configuration from the given path (or the first default search
// path that exists), then applies environment overrides. A missing file is
// not an error; defaults plus environment apply.
func Load(explicit string) (Config, error) {
	cfg := Default()

	path := explicit
	if path == "" {
		for _, p := range DefaultSearchPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.AWS.Region == "" {
		return fmt.Errorf("config: aws.region must not be empty")
	}
	if c.Gateway.Name == "" {
		return fmt.Errorf("config: gateway.name must not be empty")
	}
	if c.Model.ModelID == "" {
		return fmt.Errorf("config: model.model_id must not be empty")
	}
	return nil
}

// applyEnv overrides file values with AGENT_* environment variables.
func applyEnv(cfg *Config) {
	setStr(&cfg.AWS.Region, "AGENT_AWS_REGION")
	setStr(&cfg.Model.ModelID, "AGENT_MODEL_ID")
	setInt(&cfg.Model.MaxTokens, "AGENT_MODEL_MAX_TOKENS")
	setStr(&cfg.Memory.Name, "AGENT_MEMORY_NAME")
	setInt(&cfg.Memory.EventExpiryDays, "AGENT_MEMORY_EVENT_EXPIRY_DAYS")
	setStr(&cfg.Memory.DefaultActorID, "AGENT_MEMORY_DEFAULT_ACTOR_ID")
	setStr(&cfg.Memory.DefaultSessionID, "AGENT_MEMORY_DEFAULT_SESSION_ID")
	setStr(&cfg.Gateway.Name, "AGENT_GATEWAY_NAME")
	setStr(&cfg.Gateway.TargetName, "AGENT_GATEWAY_TARGET_NAME")
	setStr(&cfg.Gateway.ToolSchemaPath, "AGENT_GATEWAY_TOOL_SCHEMA_PATH")
	setStr(&cfg.Gateway.ParamPrefix, "AGENT_GATEWAY_PARAM_PREFIX")
	setStr(&cfg.Lambda.FunctionName, "AGENT_LAMBDA_FUNCTION_NAME")
	setStr(&cfg.Lambda.RoleName, "AGENT_LAMBDA_ROLE_NAME")
	setStr(&cfg.Runtime.Addr, "AGENT_RUNTIME_ADDR")
	setInt(&cfg.Runtime.RequestTimeoutSec, "AGENT_RUNTIME_REQUEST_TIMEOUT_SEC")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}
