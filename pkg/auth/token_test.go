package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine("test-master-secret")
	require.NoError(t, err)
	return e
}

func TestNewEngineRequiresSecret(t *testing.T) {
	_, err := NewEngine("")
	assert.Error(t, err)
}

func TestMintAndVerifyLegacy(t *testing.T) {
	e := newTestEngine(t)
	token, err := e.Mint("ci-deploy")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "pgcrud_ci-deploy."))

	claims, err := e.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ci-deploy", claims.Label)
	assert.True(t, claims.Full)
}

func TestMintAndVerifyScoped(t *testing.T) {
	e := newTestEngine(t)
	token, err := e.MintScoped("analytics", map[string]Access{
		"public":    AccessRead,
		"reporting": AccessReadWrite,
	})
	require.NoError(t, err)

	claims, err := e.Verify(token)
	require.NoError(t, err)
	assert.False(t, claims.Full)
	assert.Equal(t, AccessRead, claims.Scopes["public"])
	assert.Equal(t, AccessReadWrite, claims.Scopes["reporting"])
}

func TestMintRejectsBadLabel(t *testing.T) {
	e := newTestEngine(t)
	for _, label := range []string{"", "with space", "semi;colon", "dot.dot"} {
		_, err := e.Mint(label)
		assert.Error(t, err, "label %q", label)
	}
}

func TestMintScopedRejectsEmptyOrInvalidScopes(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.MintScoped("x", nil)
	assert.Error(t, err)

	_, err = e.MintScoped("x", map[string]Access{"public": "rwx"})
	assert.Error(t, err)
}

func TestVerifyRejectsMutation(t *testing.T) {
	e := newTestEngine(t)
	token, err := e.MintScoped("ops", map[string]Access{"public": AccessRead})
	require.NoError(t, err)

	// Flip every byte after the prefix, one at a time.
	for i := len(TokenPrefix); i < len(token); i++ {
		mutated := []byte(token)
		if mutated[i] == 'a' {
			mutated[i] = 'b'
		} else {
			mutated[i] = 'a'
		}
		_, err := e.Verify(string(mutated))
		assert.ErrorIs(t, err, ErrInvalidToken, "byte %d", i)
	}
}

func TestVerifyRejectsClaimsStripping(t *testing.T) {
	e := newTestEngine(t)
	token, err := e.MintScoped("limited", map[string]Access{"public": AccessRead})
	require.NoError(t, err)

	// Cut the claims segment, keeping the original MAC: the would-be legacy
	// full-access token must not verify.
	dot := strings.LastIndexByte(token, '.')
	mac := token[dot:]
	forged := "pgcrud_limited" + mac
	_, err = e.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsClaimsAddition(t *testing.T) {
	e := newTestEngine(t)
	token, err := e.Mint("legacy")
	require.NoError(t, err)

	payload, _ := json.Marshal(map[string]Access{Wildcard: AccessReadWrite})
	claimsPart := base64.RawURLEncoding.EncodeToString(payload)
	dot := strings.LastIndexByte(token, '.')
	forged := "pgcrud_legacy:" + claimsPart + token[dot:]
	_, err = e.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsPrivilegeEscalationWithoutResigning(t *testing.T) {
	e := newTestEngine(t)
	token, err := e.MintScoped("limited", map[string]Access{"public": AccessRead})
	require.NoError(t, err)

	// Re-encode the claims with upgraded access but keep the original MAC.
	payload, _ := json.Marshal(map[string]Access{"public": AccessReadWrite})
	claimsPart := base64.RawURLEncoding.EncodeToString(payload)
	dot := strings.LastIndexByte(token, '.')
	forged := "pgcrud_limited:" + claimsPart + token[dot:]
	_, err = e.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Same for adding a namespace.
	payload, _ = json.Marshal(map[string]Access{"public": AccessRead, "reporting": AccessRead})
	claimsPart = base64.RawURLEncoding.EncodeToString(payload)
	forged = "pgcrud_limited:" + claimsPart + token[dot:]
	_, err = e.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	a := newTestEngine(t)
	b, err := NewEngine("a-different-secret")
	require.NoError(t, err)

	token, err := a.Mint("ops")
	require.NoError(t, err)
	_, err = b.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	e := newTestEngine(t)
	for _, token := range []string{
		"",
		"pgcrud_",
		"pgcrud_nodot",
		"not-a-token",
		"pgcrud_label.zzzz", // not hex, wrong length
	} {
		_, err := e.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestCanonicalClaimsOrderingIsDeterministic(t *testing.T) {
	e := newTestEngine(t)
	scopes := map[string]Access{"zeta": AccessRead, "alpha": AccessWrite, "mid": AccessReadWrite}

	first, err := e.MintScoped("x", scopes)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.MintScoped("x", scopes)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	// Embedded JSON keys are lexicographically ordered.
	payload := strings.TrimPrefix(first, TokenPrefix)
	payload = payload[strings.Index(payload, ":")+1 : strings.LastIndexByte(payload, '.')]
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	require.NoError(t, err)
	alpha := strings.Index(string(raw), "alpha")
	mid := strings.Index(string(raw), "mid")
	zeta := strings.Index(string(raw), "zeta")
	assert.True(t, alpha < mid && mid < zeta, "claims JSON not in lexicographic key order: %s", raw)
}
