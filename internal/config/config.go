package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is built once at startup and handed to every component that needs it.
type Config struct {
	Env       string
	Port      string
	APIPrefix string

	MongoURI string
	DBName   string

	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	CookieSecret     string

	ClientURL string

	PaymentKeyID         string
	PaymentKeySecret     string
	PaymentWebhookSecret string
	PaymentBaseURL       string

	AWSRegion   string
	AWSS3Bucket string

	SendGridAPIKey string
	MailFrom       string
	MailFromName   string
}

var requiredKeys = []string{
	"MONGO_URI",
	"JWT_ACCESS_SECRET",
	"JWT_REFRESH_SECRET",
	"COOKIE_SECRET",
	"CLIENT_URL",
	"RAZORPAY_KEY_ID",
	"RAZORPAY_KEY_SECRET",
	"RAZORPAY_WEBHOOK_SECRET",
	"AWS_REGION",
	"AWS_S3_BUCKET",
	"SENDGRID_API_KEY",
	"MAIL_FROM",
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary lookup function.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, fallback string) string {
		if value, ok := lookup(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
		return fallback
	}

	var missing []string
	for _, key := range requiredKeys {
		if get(key, "") == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	accessTTL, err := durationValue(get("ACCESS_TOKEN_TTL", ""), 15, time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("ACCESS_TOKEN_TTL: %w", err)
	}
	refreshTTL, err := durationValue(get("REFRESH_TOKEN_TTL", ""), 7, 24*time.Hour)
	if err != nil {
		return Config{}, fmt.Errorf("REFRESH_TOKEN_TTL: %w", err)
	}

	prefix := "/" + strings.Trim(get("API_PREFIX", "/api/v1"), "/")

	return Config{
		Env:                  strings.ToLower(get("APP_ENV", "development")),
		Port:                 get("PORT", "5000"),
		APIPrefix:            prefix,
		MongoURI:             get("MONGO_URI", ""),
		DBName:               get("DB_NAME", "storefront"),
		JWTAccessSecret:      get("JWT_ACCESS_SECRET", ""),
		JWTRefreshSecret:     get("JWT_REFRESH_SECRET", ""),
		AccessTokenTTL:       accessTTL,
		RefreshTokenTTL:      refreshTTL,
		CookieSecret:         get("COOKIE_SECRET", ""),
		ClientURL:            strings.TrimRight(get("CLIENT_URL", ""), "/"),
		PaymentKeyID:         get("RAZORPAY_KEY_ID", ""),
		PaymentKeySecret:     get("RAZORPAY_KEY_SECRET", ""),
		PaymentWebhookSecret: get("RAZORPAY_WEBHOOK_SECRET", ""),
		PaymentBaseURL:       strings.TrimRight(get("PAYMENT_BASE_URL", "https://api.razorpay.com/v1"), "/"),
		AWSRegion:            get("AWS_REGION", ""),
		AWSS3Bucket:          get("AWS_S3_BUCKET", ""),
		SendGridAPIKey:       get("SENDGRID_API_KEY", ""),
		MailFrom:             get("MAIL_FROM", ""),
		MailFromName:         get("MAIL_FROM_NAME", "Storefront"),
	}, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func durationValue(raw string, defaultValue int, unit time.Duration) (time.Duration, error) {
	if raw == "" {
		return time.Duration(defaultValue) * unit, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return 0, errors.New("must be greater than zero")
	}
	return time.Duration(parsed) * unit, nil
}
