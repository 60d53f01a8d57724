package main

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type config struct {
	Port string
	Env  string

	// Demo business seeded into the in-memory store on boot.
	BusinessID      string
	BusinessName    string
	PointsPerDollar string
	ReferralsNeeded int64
	RewardCents     int64
}

// loadConfig reads .env file and returns a config struct.
func loadConfig() *config {
	// The .env file might not exist in production, which is fine.
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on system env variables")
	}

	return &config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		BusinessID:      getEnv("BUSINESS_ID", "demo"),
		BusinessName:    getEnv("BUSINESS_NAME", "Demo Business"),
		PointsPerDollar: getEnv("POINTS_PER_DOLLAR", "1"),
		ReferralsNeeded: getEnvInt64("REFERRALS_FOR_REWARD", 3),
		RewardCents:     getEnvInt64("REFERRAL_REWARD_CENTS", 500),
	}
}

// getEnv returns an env var with a default fallback.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		slog.Warn("Invalid integer env var, using fallback", "key", key, "value", value)
		return fallback
	}
	return n
}
