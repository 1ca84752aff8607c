package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateCronSchedule(t *testing.T) {
	tests := []struct {
		schedule string
		valid    bool
	}{
		{"30 5 * * *", true},
		{"0 */6 * * *", true},
		{"30 9 * * 1-5", true},
		{"", false},
		{"* * * *", false},
		{"61 * * * *", false},
		{"@every 1h", false},
	}

	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			err := ValidateCronSchedule(tt.schedule)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateTimezone(t *testing.T) {
	assert.NoError(t, ValidateTimezone("UTC"))
	assert.NoError(t, ValidateTimezone("Asia/Tokyo"))
	assert.Error(t, ValidateTimezone(""))
	assert.Error(t, ValidateTimezone("+09:00"))
}

func TestValidateRanges(t *testing.T) {
	assert.NoError(t, ValidateDuration(time.Minute, time.Second, time.Hour))
	assert.Error(t, ValidateDuration(time.Millisecond, time.Second, time.Hour))
	assert.Error(t, ValidateDuration(2*time.Hour, time.Second, time.Hour))
	assert.Error(t, ValidateDuration(time.Minute, time.Hour, time.Second))

	assert.NoError(t, ValidateIntRange(5, 1, 5))
	assert.Error(t, ValidateIntRange(0, 1, 5))
	assert.Error(t, ValidateIntRange(6, 1, 5))
	assert.Error(t, ValidateIntRange(3, 5, 1))

	assert.NoError(t, ValidateFloatRange(0.35, 0, 1))
	assert.NoError(t, ValidateFloatRange(-1, -1, 1))
	assert.Error(t, ValidateFloatRange(1.01, 0, 1))
	assert.Error(t, ValidateFloatRange(0.5, 1, 0))

	assert.EqualError(t, ValidateRange("a", "b", "c"), "a is below minimum b")

	assert.NoError(t, ValidatePositiveDuration(time.Nanosecond))
	assert.Error(t, ValidatePositiveDuration(0))
}

func TestValidateHTTPURL(t *testing.T) {
	assert.NoError(t, ValidateHTTPURL("https://api.openai.com/v1"))
	assert.NoError(t, ValidateHTTPURL("http://localhost:8080/v1"))
	assert.Error(t, ValidateHTTPURL("api.openai.com"))
	assert.Error(t, ValidateHTTPURL("ftp://example.com"))
	assert.Error(t, ValidateHTTPURL("://bad"))
}
