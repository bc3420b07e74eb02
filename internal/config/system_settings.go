package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const SERVER_WEB_PORT = "BFLOW_SERVER_WEB_PORT"
const ENGINE_ESCALATION_INTERVAL = "BFLOW_ENGINE_ESCALATION_INTERVAL" //how often the escalation sweep runs
const ENGINE_CLEANUP_INTERVAL = "BFLOW_ENGINE_CLEANUP_INTERVAL"       //how often completed workflows are reclaimed
const ENGINE_RETENTION = "BFLOW_ENGINE_RETENTION"                     //how long completed workflows are kept
const ENGINE_ACTION_TIMEOUT = "BFLOW_ENGINE_ACTION_TIMEOUT"           //context deadline for action handlers

// LoadEnv reads an optional .env file into the process environment before
// any setting is resolved. A missing file is not an error.
func LoadEnv() {
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded settings from .env file")
	}
}

func GetSystemSettingInteger(settingKey string) int {
	val := GetSystemSettingString(settingKey)
	if val != "" {
		intValue, _ := strconv.Atoi(val)
		return intValue
	}
	return 0
}

func GetSystemSettingDuration(settingKey string) time.Duration {
	val := GetSystemSettingString(settingKey)
	d, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("Invalid duration setting, using zero", "key", settingKey, "value", val)
		return 0
	}
	return d
}

func GetSystemSettingString(settingKey string) string {
	val := os.Getenv(settingKey)
	if val != "" {
		return val
	}
	if settingKey == SERVER_WEB_PORT {
		return "8080"
	}
	if settingKey == ENGINE_ESCALATION_INTERVAL {
		return "30s" // default to 30 seconds
	}
	if settingKey == ENGINE_CLEANUP_INTERVAL {
		return "1h" // default to hourly
	}
	if settingKey == ENGINE_RETENTION {
		return "720h" // default to 30 days
	}
	if settingKey == ENGINE_ACTION_TIMEOUT {
		return "30s"
	}
	return ""
}
