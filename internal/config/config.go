package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
}

type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
	Locale     string
	CurrCode   string
}

type Config struct {
	App struct {
		Port string
	}
	Postgres PostgresConfig
	VNPay    VNPayConfig
}

// Load reads configuration from the environment, optionally seeding it from a
// .env file first. Missing required variables are reported as one error so the
// process fails fast at startup instead of midway through a request.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: failed to load %s: %w", envPath, err)
		}
	}

	cfg := &Config{}

	cfg.App.Port = getEnv("APP_PORT", "8080")

	cfg.Postgres.Host = os.Getenv("DB_HOST")
	cfg.Postgres.Port = getEnv("DB_PORT", "5432")
	cfg.Postgres.User = os.Getenv("DB_USER")
	cfg.Postgres.Password = os.Getenv("DB_PASSWORD")
	cfg.Postgres.DBName = os.Getenv("DB_NAME")
	cfg.Postgres.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Postgres.MaxConns = 10
	cfg.Postgres.MinConns = 2
	cfg.Postgres.MaxConnLifetime = 30 * time.Minute
	cfg.Postgres.MigrationsPath = getEnv("DB_MIGRATIONS_PATH", "migrations")

	cfg.VNPay.TmnCode = os.Getenv("VNPAY_TMN_CODE")
	cfg.VNPay.HashSecret = os.Getenv("VNPAY_HASH_SECRET")
	cfg.VNPay.PayURL = getEnv("VNPAY_PAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html")
	cfg.VNPay.ReturnURL = os.Getenv("VNPAY_RETURN_URL")
	cfg.VNPay.Locale = getEnv("VNPAY_LOCALE", "vn")
	cfg.VNPay.CurrCode = getEnv("VNPAY_CURR_CODE", "VND")

	var missing []string
	for _, req := range []struct{ name, value string }{
		{"DB_HOST", cfg.Postgres.Host},
		{"DB_USER", cfg.Postgres.User},
		{"DB_PASSWORD", cfg.Postgres.Password},
		{"DB_NAME", cfg.Postgres.DBName},
		{"VNPAY_TMN_CODE", cfg.VNPay.TmnCode},
		{"VNPAY_HASH_SECRET", cfg.VNPay.HashSecret},
		{"VNPAY_RETURN_URL", cfg.VNPay.ReturnURL},
	} {
		if req.value == "" {
			missing = append(missing, req.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("config: missing required environment variables: %v", missing)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
