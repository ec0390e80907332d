package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pstrings "wishguard/pkg/platform/strings"
)

// Server captures process-level configuration. Anti-bot weights and thresholds
// live in internal/antibot/config and are loaded from ANTIBOT_CONFIG_PATH.
type Server struct {
	Addr               string
	Debug              bool
	DatabaseURL        string
	RateLimitBackend   string
	BuntDBPath         string
	CORSAllowedOrigins []string
	AntiBotConfigPath  string
	GeoIPAnonDBPath    string
	FrontendURL        string
	Log                LogConfig
	Redis              RedisConfig
	Kafka              KafkaConfig
	JWT                JWTConfig
	SMS                SMSConfig
	SMTP               SMTPConfig
	Recaptcha          RecaptchaConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// RedisConfig is empty (URL == "") when Redis is not used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers             []string
	SecurityEventsTopic string
}

type JWTConfig struct {
	SigningKey string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type SMSConfig struct {
	Provider         string
	KavenegarAPIKey  string
	KavenegarSender  string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

type SMTPConfig struct {
	Addr     string
	Host     string
	User     string
	Password string
	From     string
}

type RecaptchaConfig struct {
	Secret string
}

const (
	RateLimitBackendBuntDB = "buntdb"
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// FromEnv loads .env (if present) and builds the server config from the environment.
func FromEnv() Server {
	_ = godotenv.Load()

	smtpAddr := getEnv("SMTP_ADDR", "")
	smtpHost := smtpAddr
	if idx := strings.LastIndex(smtpAddr, ":"); idx != -1 {
		smtpHost = smtpAddr[:idx]
	}

	return Server{
		Addr:               getEnv("WISHGUARD_ADDR", ":8080"),
		Debug:              getBool("DEBUG", false),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RateLimitBackend:   strings.ToLower(getEnv("RATE_LIMIT_BACKEND", RateLimitBackendBuntDB)),
		BuntDBPath:         getEnv("BUNTDB_PATH", ":memory:"),
		CORSAllowedOrigins: pstrings.SplitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		AntiBotConfigPath:  getEnv("ANTIBOT_CONFIG_PATH", ""),
		GeoIPAnonDBPath:    getEnv("GEOIP_ANON_DB_PATH", ""),
		FrontendURL:        strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
		},
		Kafka: KafkaConfig{
			Brokers:             pstrings.SplitList(getEnv("KAFKA_BROKERS", "")),
			SecurityEventsTopic: getEnv("SECURITY_EVENTS_TOPIC", "wishguard.security-events"),
		},
		JWT: JWTConfig{
			// Development default; production deployments must override it.
			SigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:     getEnv("JWT_ISSUER", "wishguard"),
			AccessTTL:  getDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTTL: getDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
		},
		SMS: SMSConfig{
			Provider:         strings.ToLower(getEnv("SMS_PROVIDER", "log")),
			KavenegarAPIKey:  getEnv("KAVENEGAR_API_KEY", ""),
			KavenegarSender:  getEnv("KAVENEGAR_SENDER", ""),
			TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			TwilioFromNumber: getEnv("TWILIO_FROM", ""),
		},
		SMTP: SMTPConfig{
			Addr:     smtpAddr,
			Host:     smtpHost,
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "no-reply@wishguard.local"),
		},
		Recaptcha: RecaptchaConfig{
			Secret: getEnv("RECAPTCHA_SECRET", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
