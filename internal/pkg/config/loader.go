// Package config loads configuration values from the environment with
// fail-open semantics: a missing value yields the default silently, an invalid
// one yields the default plus a warning. Loaders never return errors.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigLoadResult is the outcome of loading one value.
//
// Example:
//
//	result := LoadEnvDuration("EMBED_TIMEOUT", 10*time.Second, ValidatePositiveDuration)
//	if result.FallbackApplied {
//	    for _, warning := range result.Warnings {
//	        logger.Warn("configuration fallback", slog.String("warning", warning))
//	    }
//	}
//	timeout := result.Value.(time.Duration)
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// loadEnv implements the shared read, parse, validate, fall back sequence.
// Warnings read "Invalid {key}='{raw}': {reason}, falling back to default '{default}'".
func loadEnv[T any](envKey string, defaultValue T, parse func(string) (T, error), validator func(T) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	fallback := func(reason error) ConfigLoadResult {
		return ConfigLoadResult{
			Value: defaultValue,
			Warnings: []string{fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%v'",
				envKey, raw, reason, defaultValue)},
			FallbackApplied: true,
		}
	}

	v, err := parse(raw)
	if err != nil {
		return fallback(err)
	}
	if validator != nil {
		if err := validator(v); err != nil {
			return fallback(err)
		}
	}
	return ConfigLoadResult{Value: v}
}

// LoadEnvString returns the variable's value or defaultValue when unset. No validation.
func LoadEnvString(envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

// LoadEnvWithFallback loads a string validated by validator (nil skips validation).
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, func(s string) (string, error) { return s, nil }, validator)
}

// LoadEnvDuration loads a Go duration string such as "30s" or "1h30m".
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, time.ParseDuration, validator)
}

// LoadEnvInt loads a base-10 integer. Decimals and surrounding spaces are rejected.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, func(s string) (int, error) {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid integer format")
		}
		return v, nil
	}, validator)
}

// LoadEnvFloat loads a float64 such as similarity thresholds ("0.55").
func LoadEnvFloat(envKey string, defaultValue float64, validator func(float64) error) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, func(s string) (float64, error) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number format")
		}
		return v, nil
	}, validator)
}

// LoadEnvBool loads a boolean. Accepted: 1, t, T, true, TRUE, True and their false counterparts.
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, func(s string) (bool, error) {
		switch s {
		case "1", "t", "T", "true", "TRUE", "True":
			return true, nil
		case "0", "f", "F", "false", "FALSE", "False":
			return false, nil
		}
		return false, fmt.Errorf("invalid boolean format, expected 'true' or 'false'")
	}, nil)
}

// LoadEnvStringMap loads comma-separated key=value pairs, e.g.
// "v1=text-embedding-3-small,v2=text-embedding-3-large". Keys and values are trimmed.
func LoadEnvStringMap(envKey string, defaultValue map[string]string) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, parseStringMap, nil)
}

// LoadEnvIntMap loads comma-separated key=integer pairs, e.g. "v1=1536,v2=3072".
func LoadEnvIntMap(envKey string, defaultValue map[string]int, validator func(map[string]int) error) ConfigLoadResult {
	return loadEnv(envKey, defaultValue, func(s string) (map[string]int, error) {
		pairs, err := parseStringMap(s)
		if err != nil {
			return nil, err
		}
		out := make(map[string]int, len(pairs))
		for k, v := range pairs {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid integer for key %q", k)
			}
			out[k] = n
		}
		return out, nil
	}, validator)
}

func parseStringMap(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("invalid pair %q, expected key=value", pair)
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no key=value pairs")
	}
	return out, nil
}
