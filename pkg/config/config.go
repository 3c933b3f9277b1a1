// Package config loads thawgate settings from the environment and,
// optionally, from a YAML file validated against an embedded JSON schema.
// Environment variables always win over the file.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Mindburn-Labs/thawgate/pkg/observability"
	"github.com/gagliardetto/solana-go"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultProgramID is the address the gating program is deployed at.
	DefaultProgramID = "ABL37q2e55mQ87KTRe6yF89TJoeysHKipwVwSRRPbTNY"
	// DefaultTokenACLProgramID is the token-ACL program that owns mint configs.
	DefaultTokenACLProgramID = "TACLkU6CiCdkQN2MjoyDkVg2yAH9zkxiHDsiztQ52TP"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

const schemaURL = "https://thawgate.schemas.local/config.schema.json"

//go:embed schema.json
var schemaJSON string

// Config holds the settings of a thawgate process.
type Config struct {
	ProgramID         string          `yaml:"program_id" json:"program_id"`
	TokenACLProgramID string          `yaml:"token_acl_program_id" json:"token_acl_program_id"`
	LogLevel          string          `yaml:"log_level" json:"log_level"`
	Store             StoreConfig     `yaml:"store" json:"store"`
	Telemetry         TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// StoreConfig selects the account store backing the local ledger.
type StoreConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// TelemetryConfig controls OTLP export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
	Environment  string  `yaml:"environment" json:"environment"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		ProgramID:         DefaultProgramID,
		TokenACLProgramID: DefaultTokenACLProgramID,
		LogLevel:          "INFO",
		Store: StoreConfig{
			Driver: DriverSQLite,
			DSN:    "thawgate.db",
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
			Environment:  "development",
		},
	}
}

// Load returns the defaults overridden by THAWGATE_* environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML file over the defaults, then applies the
// environment. Unknown keys are rejected and the merged file settings must
// satisfy the embedded schema.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	// Typed values go to the validator: an unquoted base58 key such as
	// 11111111111111111111111111111111 is a YAML integer but a string here.
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("schema load failed: %w", err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("schema compile failed: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("THAWGATE_PROGRAM_ID"); v != "" {
		c.ProgramID = v
	}
	if v := os.Getenv("THAWGATE_TOKEN_ACL_PROGRAM_ID"); v != "" {
		c.TokenACLProgramID = v
	}
	if v := os.Getenv("THAWGATE_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("THAWGATE_STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("THAWGATE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("THAWGATE_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("THAWGATE_TELEMETRY"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("THAWGATE_TELEMETRY: %w", err)
		}
		c.Telemetry.Enabled = enabled
	}
	return nil
}

// Validate checks the settings that the schema cannot: key encodings and
// the driver/DSN pairing.
func (c *Config) Validate() error {
	if _, err := c.Program(); err != nil {
		return err
	}
	if _, err := c.TokenACLProgram(); err != nil {
		return err
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres, DriverRedis:
		if c.Store.DSN == "" {
			return fmt.Errorf("store driver %s requires a dsn", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	return nil
}

// Program returns the gating program address.
func (c *Config) Program() (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("program_id %q: %w", c.ProgramID, err)
	}
	return key, nil
}

// TokenACLProgram returns the token-ACL program address.
func (c *Config) TokenACLProgram() (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(c.TokenACLProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("token_acl_program_id %q: %w", c.TokenACLProgramID, err)
	}
	return key, nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Observability returns the exporter settings for observability.New.
func (c *Config) Observability() *observability.Config {
	oc := observability.DefaultConfig()
	oc.Enabled = c.Telemetry.Enabled
	oc.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	oc.SampleRate = c.Telemetry.SampleRate
	if c.Telemetry.Environment != "" {
		oc.Environment = c.Telemetry.Environment
	}
	return oc
}
