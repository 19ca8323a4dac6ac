package config

import (
	"fmt"
	"time"
)

// WalletConfig is passed to the wallet services at construction; nothing in the
// services reads thresholds from the environment directly.
type WalletConfig struct {
	Currency         string        `yaml:"currency"`
	MinDeposit       float64       `yaml:"min_deposit"`
	MinWithdrawal    float64       `yaml:"min_withdrawal"`
	MaxUpdateRetries int           `yaml:"max_update_retries"`
	WebhookDedupeTTL time.Duration `yaml:"webhook_dedupe_ttl"`
}

func loadWalletConfig() *WalletConfig {
	return &WalletConfig{
		Currency:         getEnv("WALLET_CURRENCY", "INR"),
		MinDeposit:       getEnvAsFloat64("WALLET_MIN_DEPOSIT", 1),
		MinWithdrawal:    getEnvAsFloat64("WALLET_MIN_WITHDRAWAL", 100),
		MaxUpdateRetries: getEnvAsInt("WALLET_MAX_UPDATE_RETRIES", 8),
		WebhookDedupeTTL: getEnvAsDuration("WALLET_WEBHOOK_DEDUPE_TTL", 24*time.Hour),
	}
}

func (c *WalletConfig) Validate() error {
	if c.MinDeposit < 0 || c.MinWithdrawal < 0 {
		return fmt.Errorf("wallet thresholds must not be negative")
	}
	if c.MaxUpdateRetries < 1 {
		return fmt.Errorf("wallet max update retries must be at least 1")
	}
	return nil
}

// DefaultWalletConfig is used by tests and tools that do not read the environment.
func DefaultWalletConfig() *WalletConfig {
	return &WalletConfig{
		Currency:         "INR",
		MinDeposit:       1,
		MinWithdrawal:    100,
		MaxUpdateRetries: 8,
		WebhookDedupeTTL: 24 * time.Hour,
	}
}
