package logging

import (
	"log/slog"
	"regexp"
)

var (
	// bearer-style API keys of OpenAI-compatible providers
	apiKeyPattern = regexp.MustCompile(`sk-[a-zA-Z0-9_-]{10,}`)

	// password segment of a DSN
	dsnPasswordPattern = regexp.MustCompile(`://([^:/@]+):([^@]+)@`)
)

// SanitizeError returns err's message with API keys and DSN passwords masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := apiKeyPattern.ReplaceAllString(err.Error(), "sk-****")
	return dsnPasswordPattern.ReplaceAllString(msg, "://$1:****@")
}

// Error returns a sanitized "error" attribute.
func Error(err error) slog.Attr {
	return slog.String("error", SanitizeError(err))
}
