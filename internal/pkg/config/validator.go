package config

import (
	"cmp"
	"fmt"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidateCronSchedule checks a five-field cron expression ("minute hour dom month dow")
// with the same parser the worker scheduler uses.
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("invalid cron schedule: cannot be empty")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}
	return nil
}

// ValidateTimezone checks that timezone is a loadable IANA name such as "UTC"
// or "Asia/Tokyo". Fails when tzdata is missing from the image.
func ValidateTimezone(timezone string) error {
	if timezone == "" {
		return fmt.Errorf("invalid timezone: cannot be empty")
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", timezone, err)
	}
	return nil
}

// ValidateRange checks lo <= v <= hi.
func ValidateRange[T cmp.Ordered](v, lo, hi T) error {
	switch {
	case lo > hi:
		return fmt.Errorf("invalid range [%v, %v]", lo, hi)
	case v < lo:
		return fmt.Errorf("%v is below minimum %v", v, lo)
	case v > hi:
		return fmt.Errorf("%v exceeds maximum %v", v, hi)
	}
	return nil
}

func ValidateDuration(d, lo, hi time.Duration) error { return ValidateRange(d, lo, hi) }

func ValidateIntRange(v, lo, hi int) error { return ValidateRange(v, lo, hi) }

func ValidateFloatRange(v, lo, hi float64) error { return ValidateRange(v, lo, hi) }

// ValidatePositiveDuration rejects zero and negative durations.
func ValidatePositiveDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", duration)
	}
	return nil
}

// ValidateHTTPURL checks an absolute http or https URL.
func ValidateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL '%s': %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid URL '%s': expected an absolute http(s) URL", raw)
	}
	return nil
}

// ValidatePositiveIntMap rejects empty maps and non-positive values.
func ValidatePositiveIntMap(m map[string]int) error {
	if len(m) == 0 {
		return fmt.Errorf("at least one entry is required")
	}
	for k, v := range m {
		if v <= 0 {
			return fmt.Errorf("value for %q must be positive, got %d", k, v)
		}
	}
	return nil
}
