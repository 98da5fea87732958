package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment (development, staging, production)
	AppEnv string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Server
	Port        string
	CORSOrigins string

	// Plan family policy table (optional YAML file)
	PlanPolicyPath string

	Cielo    CieloConfig
	Minio    MinioConfig
	Webhook  WebhookConfig
	Receipts ReceiptConfig

	LogRetention time.Duration
	SentryDSN    string
}

type CieloConfig struct {
	MerchantID  string
	MerchantKey string
	APIURL      string
	QueryURL    string
	Timeout     time.Duration
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type WebhookConfig struct {
	CieloSecret string
}

type ReceiptConfig struct {
	URLTTL      time.Duration
	Stream      bool
	CompanyName string
	CompanyCNPJ string
	SupportMail string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	return &Config{
		AppEnv: getEnv("APP_ENV", "development"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "unipet_billing"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		PlanPolicyPath: getEnv("PLAN_POLICY_PATH", ""),

		Cielo: CieloConfig{
			MerchantID:  getEnv("CIELO_MERCHANT_ID", ""),
			MerchantKey: getEnv("CIELO_MERCHANT_KEY", ""),
			APIURL:      getEnv("CIELO_API_URL", "https://apisandbox.cieloecommerce.cielo.com.br"),
			QueryURL:    getEnv("CIELO_QUERY_URL", "https://apiquerysandbox.cieloecommerce.cielo.com.br"),
			Timeout:     parseDuration(getEnv("GATEWAY_TIMEOUT", "30s"), 30*time.Second),
		},

		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "receipts"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},

		Webhook: WebhookConfig{
			CieloSecret: getEnv("CIELO_WEBHOOK_SECRET", ""),
		},

		Receipts: ReceiptConfig{
			URLTTL:      parseDuration(getEnv("RECEIPT_URL_TTL", "15m"), 15*time.Minute),
			Stream:      getEnvBool("RECEIPT_STREAM_DOWNLOADS", false),
			CompanyName: getEnv("RECEIPT_COMPANY_NAME", "UNIPET PLAN"),
			CompanyCNPJ: getEnv("RECEIPT_COMPANY_CNPJ", ""),
			SupportMail: getEnv("RECEIPT_SUPPORT_EMAIL", "contato@unipetplan.com.br"),
		},

		LogRetention: time.Duration(getEnvInt("LOG_RETENTION_DAYS", 30)) * 24 * time.Hour,
		SentryDSN:    getEnv("SENTRY_DSN", ""),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// IsProduction reports whether the service runs in an environment where
// unsigned webhooks must be rejected.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "staging"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
