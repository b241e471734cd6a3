package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ReportingConfig tunes the read-only views served to the client.
type ReportingConfig struct {
	RecentLimit   int
	SummaryDays   int
	DefaultWindow string
	SearchLimit   int
	// DegradeMissingTables makes report queries return empty results instead of
	// failing when an aggregate table is absent.
	DegradeMissingTables bool
	QueryTimeout         time.Duration
	// TimeZone is the IANA zone that calendar days are counted in.
	TimeZone string
}

func LoadReportingConfig() *ReportingConfig {
	return &ReportingConfig{
		RecentLimit:          getEnvAsInt("REPORT_RECENT_LIMIT", 5),
		SummaryDays:          getEnvAsInt("REPORT_SUMMARY_DAYS", 7),
		DefaultWindow:        getEnv("REPORT_DEFAULT_WINDOW", "15d"),
		SearchLimit:          getEnvAsInt("REPORT_SEARCH_LIMIT", 50),
		DegradeMissingTables: getEnvAsBool("REPORT_DEGRADE_MISSING_TABLES", false),
		QueryTimeout:         getEnvAsDuration("REPORT_QUERY_TIMEOUT", 10*time.Second),
		TimeZone:             getEnv("REPORT_TIME_ZONE", "UTC"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
