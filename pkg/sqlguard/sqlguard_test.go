package sqlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanFlagsInjectionPayloads(t *testing.T) {
	findings := Scan(map[string]any{
		"search": "' OR 1=1 --",
		"name":   "Alice",
		"limit":  100,
		"active": true,
	})
	require.Len(t, findings, 1)
	assert.Equal(t, "search", findings[0].Field)
	assert.NotEmpty(t, findings[0].Fingerprint)
}

func TestScanCleanValues(t *testing.T) {
	findings := Scan(map[string]any{
		"email": "alice@example.com",
		"note":  "ordinary text with numbers 123",
	})
	assert.Empty(t, findings)
}
