// README: Config loader with env defaults for HTTP, DB, Redis, AMQP, payment provider and commission settings.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type PaymentConfig struct {
	Mode            string // "gateway" or "sandbox"
	GatewayURL      string
	MerchantID      string
	Secret          string
	Salt            string
	TimeoutSeconds  int
	ExpiryMinutes   int
	BankInstruction string
}

type CommissionConfig struct {
	Rate float64
}

type Config struct {
	Env  string
	HTTP struct {
		Addr string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr string
	}
	AMQP struct {
		URL string
	}
	Maps struct {
		APIKey string
	}
	Pricing struct {
		Currency string
	}
	Payment    PaymentConfig
	Commission CommissionConfig
}

func Load() (Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	cfg.Env = envOrDefault("TRH_ENV", "dev")
	cfg.HTTP.Addr = envOrDefault("TRH_HTTP_ADDR", ":8080")
	cfg.DB.DSN = os.Getenv("TRH_DB_DSN")
	cfg.Redis.Addr = envOrDefault("TRH_REDIS_ADDR", "localhost:6379")
	cfg.AMQP.URL = os.Getenv("TRH_AMQP_URL")
	cfg.Maps.APIKey = os.Getenv("TRH_MAPS_API_KEY")
	cfg.Pricing.Currency = envOrDefault("TRH_CURRENCY", "EUR")

	cfg.Payment.Mode = envOrDefault("TRH_PAYMENT_MODE", "sandbox")
	cfg.Payment.GatewayURL = envOrDefault("TRH_PAYMENT_GATEWAY_URL", "https://gateway.example.com")
	cfg.Payment.MerchantID = envOrDefault("TRH_PAYMENT_MERCHANT_ID", "transferhub")
	cfg.Payment.Secret = envOrDefault("TRH_PAYMENT_SECRET", "dev-secret")
	cfg.Payment.Salt = envOrDefault("TRH_PAYMENT_SALT", "dev-salt")
	cfg.Payment.TimeoutSeconds = envOrDefaultInt("TRH_PAYMENT_TIMEOUT_SECONDS", 10)
	cfg.Payment.ExpiryMinutes = envOrDefaultInt("TRH_PAYMENT_EXPIRY_MINUTES", 30)
	cfg.Payment.BankInstruction = envOrDefault("TRH_PAYMENT_BANK_INSTRUCTION",
		"Transfer the total amount to IBAN DE00 0000 0000 0000 0000 00 quoting the reservation id.")

	cfg.Commission.Rate = envOrDefaultFloat("TRH_COMMISSION_RATE", 0.25)
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}
