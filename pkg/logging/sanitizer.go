package logging

import (
	"regexp"
)

const (
	// MaxQueryLogLength caps how much of a generated statement gets logged.
	MaxQueryLogLength = 200
	// RedactedText replaces sensitive material in log output.
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx in DSN-style strings
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:pass@host credentials embedded in connection URLs
	credentialHostPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)

	// gateway credentials, with or without an embedded claims segment
	tokenPattern = regexp.MustCompile(`pgcrud_[A-Za-z0-9_-]+(:[A-Za-z0-9_-]+)?\.[0-9a-fA-F]+`)
)

// SanitizeDSN strips credentials from a connection string before logging.
func SanitizeDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	out := passwordPattern.ReplaceAllString(dsn, "${1}="+RedactedText)
	return credentialHostPattern.ReplaceAllString(out, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeError scrubs an error message of connection credentials and
// gateway tokens. Use it on any error that may echo user input or a DSN.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	out := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	out = tokenPattern.ReplaceAllString(out, RedactedText)
	return credentialHostPattern.ReplaceAllString(out, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeQuery truncates a generated SQL statement for logging. Statement
// text never embeds values, so only length needs limiting.
func SanitizeQuery(query string) string {
	if len(query) <= MaxQueryLogLength {
		return query
	}
	return query[:MaxQueryLogLength] + "..."
}
