package config

type PaymentConfig struct {
	DefaultProvider string          `yaml:"default_provider"`
	Stripe          *StripeConfig   `yaml:"stripe"`
	Razorpay        *RazorpayConfig `yaml:"razorpay"`
	Currency        string          `yaml:"currency"`
}

type StripeConfig struct {
	Enabled       bool   `yaml:"enabled"`
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type RazorpayConfig struct {
	Enabled   bool   `yaml:"enabled"`
	KeyID     string `yaml:"key_id"`
	KeySecret string `yaml:"key_secret"`
	Webhook   string `yaml:"webhook_secret"`
}

func loadPaymentConfig() *PaymentConfig {
	return &PaymentConfig{
		DefaultProvider: getEnv("PAYMENT_DEFAULT_PROVIDER", "razorpay"),
		Stripe: &StripeConfig{
			Enabled:       getEnvAsBool("STRIPE_ENABLED", false),
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Razorpay: &RazorpayConfig{
			Enabled:   getEnvAsBool("RAZORPAY_ENABLED", true),
			KeyID:     getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),
			Webhook:   getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
		},
		Currency: getEnv("PAYMENT_CURRENCY", "INR"),
	}
}
