package util

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func GetEnvironmentVariables() map[string]string {
	environmentVariables := map[string]string{}

	for _, variable := range os.Environ() {
		pair := strings.SplitN(variable, "=", 2)

		environmentVariables[pair[0]] = pair[1]
	}

	return environmentVariables
}

// EnvString returns env[key] or the fallback when it is unset or empty
func EnvString(env map[string]string, key string, fallback string) string {
	if value := env[key]; value != "" {
		return value
	}

	return fallback
}

func EnvInt(env map[string]string, key string, fallback int) (int, error) {
	if value := env[key]; value != "" {
		return strconv.Atoi(value)
	}

	return fallback, nil
}

func EnvFloat(env map[string]string, key string, fallback float64) (float64, error) {
	if value := env[key]; value != "" {
		return strconv.ParseFloat(value, 64)
	}

	return fallback, nil
}

func EnvDuration(env map[string]string, key string, fallback time.Duration) (time.Duration, error) {
	if value := env[key]; value != "" {
		return time.ParseDuration(value)
	}

	return fallback, nil
}
