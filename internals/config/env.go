package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// GetEnv fetches a key or returns an empty string
// Critical env vars should use this function
func GetEnv(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	log.Printf("Critical: Environment variable %s not set\n", key)
	return ""
}

// GetEnvAsStr fetches a key or returns a fallback value
// Useful for non-critical env vars
func GetEnvAsStr(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvAsInt fetches a key as integer, compares it with a ensurePositive flag, or returns a fallback value
func GetEnvAsInt(key string, fallback int, ensurePositive bool) int {
	if valueStr, ok := os.LookupEnv(key); ok {
		if value, err := strconv.Atoi(valueStr); err == nil {
			if ensurePositive && value <= 0 {
				log.Printf("Warning: Environment variable %s is not positive, using fallback value\n", key)
				return fallback
			}
			return value
		}
	}
	return fallback
}

// GetEnvAsBool accepts "true"/"1" (case-insensitive) as true
func GetEnvAsBool(key string, fallback bool) bool {
	if valueStr, ok := os.LookupEnv(key); ok {
		v := strings.ToLower(strings.TrimSpace(valueStr))
		return v == "true" || v == "1"
	}
	return fallback
}

// FirstEnv returns the first of the given keys that is set and non-empty.
// Used for provider-supplied aliases (e.g. Railway's MYSQLHOST next to DB_HOST).
func FirstEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && value != "" {
			return value
		}
	}
	return ""
}
