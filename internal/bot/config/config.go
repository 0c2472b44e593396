// Package config handles configuration for the bot: defaults, .env overlay,
// environment variables, and validation of the security-sensitive knobs.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkurilov/counselbot/internal/cryptox"
)

// Config holds runtime settings for the consultation bot. The struct is
// built once at startup and treated as immutable afterwards; components
// receive it (or individual fields) through their constructors.
type Config struct {
	// Transport / collaborators.
	TelegramBotToken string
	OpenAIAPIKey     string
	LLMModel         string
	LLMTimeout       time.Duration
	SystemPrompt     string

	// Storage.
	DatabaseDSN string

	// Encryption and pseudonymization.
	MasterKey               string
	EncryptMessages         bool
	EnablePseudonymization  bool
	KeyDerivationIterations int
	HashAlgorithm           string

	// Dialogue context assembly.
	MaxContextMessages int
	MaxContextTokens   int
	MaxInputChars      int
	MaxOutputChars     int
	MaxOutputTokens    int

	// Data retention.
	MessageRetentionDays          int
	InactiveUserAnonymizationDays int
	LogRetentionDays              int
	RetentionCheckInterval        time.Duration

	// Data export (S3-compatible storage). Export commands are disabled
	// when S3Bucket is empty.
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string

	// Ops HTTP listener (health + metrics).
	OpsAddr string
}

// LoadDefaults populates Config with development defaults. Credentials and
// tokens have no defaults and must come from the environment.
func (c *Config) LoadDefaults() {
	c.LLMModel = "gpt-4o-mini"
	c.LLMTimeout = 120 * time.Second
	c.SystemPrompt = defaultSystemPrompt

	c.EncryptMessages = true
	c.EnablePseudonymization = true
	c.KeyDerivationIterations = 100000
	c.HashAlgorithm = "SHA256"

	c.MaxContextMessages = 30
	c.MaxContextTokens = 4000
	c.MaxInputChars = 2500
	c.MaxOutputChars = 3500
	c.MaxOutputTokens = 1000

	c.MessageRetentionDays = 90
	c.InactiveUserAnonymizationDays = 365
	c.LogRetentionDays = 365
	c.RetentionCheckInterval = 24 * time.Hour

	c.S3Region = "us-east-1"
	c.OpsAddr = ":8080"
}

// Validate checks invariants that must hold before any component runs.
// Weak KDF settings and an enabled cipher without a master key are startup
// errors, never silent downgrades.
func (c *Config) Validate() error {
	var errs []error

	if c.TelegramBotToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}

	if c.KeyDerivationIterations < cryptox.MinIterations {
		errs = append(errs, fmt.Errorf("key derivation iterations %d below minimum %d",
			c.KeyDerivationIterations, cryptox.MinIterations))
	}
	if _, err := cryptox.HashFunc(c.HashAlgorithm); err != nil {
		errs = append(errs, err)
	}
	if c.EncryptMessages && c.MasterKey == "" {
		errs = append(errs, errors.New("ENCRYPTION_MASTER_KEY is required while ENCRYPT_MESSAGES=true; "+
			"set ENCRYPT_MESSAGES=false to run in plaintext mode"))
	}

	if c.MessageRetentionDays <= 0 || c.InactiveUserAnonymizationDays <= 0 || c.LogRetentionDays <= 0 {
		errs = append(errs, errors.New("retention windows must be positive"))
	}
	if c.RetentionCheckInterval <= 0 {
		errs = append(errs, errors.New("retention check interval must be positive"))
	}
	if c.MaxContextMessages <= 0 || c.MaxInputChars <= 0 {
		errs = append(errs, errors.New("context and input limits must be positive"))
	}

	return errors.Join(errs...)
}

// ExportEnabled reports whether the data-export command can be served.
func (c *Config) ExportEnabled() bool {
	return c.S3Bucket != ""
}

// LoadConfig builds a Config by applying defaults and overlaying values from
// the environment (a .env file is honored when present). The result is
// validated; an invalid configuration is a startup error.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const defaultSystemPrompt = `You are an experienced consultant. Listen carefully,
ask at most one or two focused questions per reply, and help the person see
possibilities they have not noticed yet. Keep answers short and structured.`
