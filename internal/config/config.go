package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogFormat   string
	VerifyToken string

	// Database
	DBDriver   string // postgres or sqlite
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis backs the credential cache when RedisAddr is set
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Graph API defaults, used when a tenant has no account row
	GraphBaseURL              string
	GraphVersion              string
	WhatsAppToken             string
	PhoneNumberID             string
	WhatsAppBusinessAccountID string
	AppID                     string

	HTTPTimeout        time.Duration
	UploadStubMode     bool
	CredentialCacheTTL time.Duration
	ResyncSchedule     string
}

// Credentials is the env-level fallback for tenants without a stored account.
type Credentials struct {
	AccessToken   string
	GraphBaseURL  string
	GraphVersion  string
	WabaID        string
	PhoneNumberID string
	AppID         string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		Port:        v.GetString("PORT"),
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		LogFormat:   v.GetString("LOG_FORMAT"),
		VerifyToken: v.GetString("VERIFY_TOKEN"),

		DBDriver:   strings.ToLower(v.GetString("DB_DRIVER")),
		DBPath:     v.GetString("DB_PATH"),
		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),
		DBSSLMode:  v.GetString("DB_SSLMODE"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		GraphBaseURL:              strings.TrimRight(v.GetString("GRAPH_BASE_URL"), "/"),
		GraphVersion:              v.GetString("GRAPH_VERSION"),
		WhatsAppToken:             v.GetString("WHATSAPP_TOKEN"),
		PhoneNumberID:             v.GetString("PHONE_NUMBER_ID"),
		WhatsAppBusinessAccountID: v.GetString("WABA_ID"),
		AppID:                     v.GetString("APP_ID"),

		HTTPTimeout:        v.GetDuration("HTTP_TIMEOUT"),
		UploadStubMode:     v.GetBool("UPLOAD_STUB_MODE"),
		CredentialCacheTTL: v.GetDuration("CREDENTIAL_CACHE_TTL"),
		ResyncSchedule:     v.GetString("RESYNC_SCHEDULE"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_PATH", "./templates.db")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "whatsapp_templates")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("GRAPH_BASE_URL", "https://graph.facebook.com")
	v.SetDefault("GRAPH_VERSION", "v19.0")
	v.SetDefault("HTTP_TIMEOUT", "30s")
	v.SetDefault("UPLOAD_STUB_MODE", false)
	v.SetDefault("CREDENTIAL_CACHE_TTL", "5m")
	v.SetDefault("RESYNC_SCHEDULE", "@every 15m")
}

// DefaultCredentials returns the Graph credentials configured through the environment.
func (c *Config) DefaultCredentials() Credentials {
	return Credentials{
		AccessToken:   c.WhatsAppToken,
		GraphBaseURL:  c.GraphBaseURL,
		GraphVersion:  c.GraphVersion,
		WabaID:        c.WhatsAppBusinessAccountID,
		PhoneNumberID: c.PhoneNumberID,
		AppID:         c.AppID,
	}
}
