// Package sqlguard runs an advisory injection scan over inbound values.
// Every value reaches the database as a bound parameter, so a hit is never
// a security failure; the scan exists to surface probing attempts in the
// logs.
package sqlguard

import (
	libinjection "github.com/corazawaf/libinjection-go"
	"go.uber.org/zap"
)

// Finding describes a value that matched an injection signature.
type Finding struct {
	Field       string
	Fingerprint string
}

// scanValue checks one value. Only strings are scanned; other types
// cannot carry injection payloads.
func scanValue(field string, value any) *Finding {
	s, ok := value.(string)
	if !ok {
		return nil
	}
	if isSQLi, fingerprint := libinjection.IsSQLi(s); isSQLi {
		return &Finding{Field: field, Fingerprint: string(fingerprint)}
	}
	return nil
}

// Scan checks every value and returns the findings. Callers log and
// proceed; nothing is rejected on a match.
func Scan(values map[string]any) []Finding {
	var findings []Finding
	for field, value := range values {
		if f := scanValue(field, value); f != nil {
			findings = append(findings, *f)
		}
	}
	return findings
}

// Report logs each finding at warn level. Field values are never logged,
// only the field name and the matched fingerprint.
func Report(logger *zap.Logger, source string, findings []Finding) {
	for _, f := range findings {
		logger.Warn("Injection signature in bound parameter",
			zap.String("source", source),
			zap.String("field", f.Field),
			zap.String("fingerprint", f.Fingerprint))
	}
}
