package config

import (
	"strings"
	"testing"
	"time"
)

func fullEnv() map[string]string {
	return map[string]string{
		"MONGO_URI":               "mongodb://localhost:27017",
		"JWT_ACCESS_SECRET":       "access",
		"JWT_REFRESH_SECRET":      "refresh",
		"COOKIE_SECRET":           "cookie",
		"CLIENT_URL":              "http://localhost:5173/",
		"RAZORPAY_KEY_ID":         "rzp_test",
		"RAZORPAY_KEY_SECRET":     "secret",
		"RAZORPAY_WEBHOOK_SECRET": "whsec",
		"AWS_REGION":              "ap-south-1",
		"AWS_S3_BUCKET":           "images",
		"SENDGRID_API_KEY":        "SG.key",
		"MAIL_FROM":               "shop@example.com",
	}
}

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromLookupDefaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(fullEnv()))
	if err != nil {
		t.Fatalf("FromLookup returned error: %v", err)
	}
	if cfg.Port != "5000" || cfg.DBName != "storefront" || cfg.APIPrefix != "/api/v1" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AccessTokenTTL != 15*time.Minute || cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Fatalf("unexpected ttl defaults: %v %v", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	}
	if cfg.ClientURL != "http://localhost:5173" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.ClientURL)
	}
	if cfg.IsProduction() {
		t.Fatal("expected development env by default")
	}
}

func TestFromLookupReportsAllMissingKeys(t *testing.T) {
	env := fullEnv()
	delete(env, "MONGO_URI")
	env["SENDGRID_API_KEY"] = "   "

	_, err := FromLookup(lookupFrom(env))
	if err == nil {
		t.Fatal("expected error for missing keys")
	}
	for _, key := range []string{"MONGO_URI", "SENDGRID_API_KEY"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in error, got %v", key, err)
		}
	}
}

func TestFromLookupRejectsInvalidTTL(t *testing.T) {
	env := fullEnv()
	env["ACCESS_TOKEN_TTL"] = "-3"
	if _, err := FromLookup(lookupFrom(env)); err == nil {
		t.Fatal("expected error for negative ttl")
	}

	env["ACCESS_TOKEN_TTL"] = "30"
	env["API_PREFIX"] = "api/v2/"
	env["APP_ENV"] = "Production"
	cfg, err := FromLookup(lookupFrom(env))
	if err != nil {
		t.Fatalf("FromLookup returned error: %v", err)
	}
	if cfg.AccessTokenTTL != 30*time.Minute {
		t.Fatalf("expected 30m, got %v", cfg.AccessTokenTTL)
	}
	if cfg.APIPrefix != "/api/v2" {
		t.Fatalf("expected normalized prefix, got %q", cfg.APIPrefix)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production env")
	}
}
