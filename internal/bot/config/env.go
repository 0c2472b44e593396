package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables. A .env file in
// the working directory is loaded first when present; real environment
// variables win over it, which is godotenv's default behavior.
func parseEnv(c *Config) error {
	_ = godotenv.Load()

	lookupString(&c.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	lookupString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	lookupString(&c.LLMModel, "LLM_MODEL")
	lookupString(&c.SystemPrompt, "SYSTEM_PROMPT")
	lookupString(&c.DatabaseDSN, "DATABASE_URL")
	lookupString(&c.MasterKey, "ENCRYPTION_MASTER_KEY")
	lookupString(&c.HashAlgorithm, "PBKDF2_HASH_ALGORITHM")
	lookupString(&c.S3Bucket, "S3_BUCKET")
	lookupString(&c.S3Region, "S3_REGION")
	lookupString(&c.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	lookupString(&c.S3AccessKey, "S3_ACCESS_KEY")
	lookupString(&c.S3SecretKey, "S3_SECRET_KEY")
	lookupString(&c.OpsAddr, "OPS_ADDR")

	var err error
	set := func(dst *int, name string) {
		if err != nil {
			return
		}
		err = lookupInt(dst, name)
	}
	set(&c.KeyDerivationIterations, "KEY_DERIVATION_ITERATIONS")
	set(&c.MaxContextMessages, "MAX_CONTEXT_MESSAGES")
	set(&c.MaxContextTokens, "MAX_TOKENS_PER_CONTEXT")
	set(&c.MaxInputChars, "MAX_INPUT_CHARS")
	set(&c.MaxOutputChars, "MAX_OUTPUT_CHARS")
	set(&c.MaxOutputTokens, "MAX_OUTPUT_TOKENS")
	set(&c.MessageRetentionDays, "MESSAGE_RETENTION_DAYS")
	set(&c.InactiveUserAnonymizationDays, "INACTIVE_USER_ANONYMIZATION_DAYS")
	set(&c.LogRetentionDays, "LOG_RETENTION_DAYS")
	if err != nil {
		return err
	}

	if err := lookupBool(&c.EncryptMessages, "ENCRYPT_MESSAGES"); err != nil {
		return err
	}
	if err := lookupBool(&c.EnablePseudonymization, "ENABLE_PSEUDONYMIZATION"); err != nil {
		return err
	}

	if v, ok := os.LookupEnv("RETENTION_CHECK_INTERVAL_HOURS"); ok {
		hours, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RETENTION_CHECK_INTERVAL_HOURS: %w", err)
		}
		c.RetentionCheckInterval = time.Duration(hours) * time.Hour
	}
	if v, ok := os.LookupEnv("LLM_TIMEOUT_SECONDS"); ok {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LLM_TIMEOUT_SECONDS: %w", err)
		}
		c.LLMTimeout = time.Duration(secs) * time.Second
	}

	return nil
}

func lookupString(dst *string, name string) {
	if v, ok := os.LookupEnv(name); ok {
		*dst = v
	}
}

func lookupInt(dst *int, name string) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func lookupBool(dst *bool, name string) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = b
	return nil
}
