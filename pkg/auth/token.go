package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// TokenPrefix identifies gateway tokens. The full shape is
//
//	pgcrud_{label}.{hex_mac}                          (legacy, full access)
//	pgcrud_{label}:{base64url(claims_json)}.{hex_mac} (scoped)
//
// The MAC is HMAC-SHA-256 over everything between the prefix and the final
// dot, so neither the label nor the claims segment can be altered, stripped,
// or added without re-signing. Claims JSON is canonical: encoding/json
// marshals map keys in lexicographic order, and the verifier MACs the
// embedded bytes as-is, so any generator ordering verifies.
const TokenPrefix = "pgcrud_"

// ErrInvalidToken is returned for every verification failure. No further
// detail is exposed; callers map it to Unauthenticated.
var ErrInvalidToken = errors.New("invalid token")

var labelPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Engine mints and verifies capability tokens with a master secret.
// A change of secret invalidates every outstanding token at once.
type Engine struct {
	secret []byte
}

// NewEngine creates a token engine. The secret must be non-empty.
func NewEngine(secret string) (*Engine, error) {
	if secret == "" {
		return nil, fmt.Errorf("master secret must not be empty")
	}
	return &Engine{secret: []byte(secret)}, nil
}

// mac computes the hex HMAC-SHA-256 of data.
func (e *Engine) mac(data string) string {
	h := hmac.New(sha256.New, e.secret)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// Mint derives a legacy full-access token for the label.
func (e *Engine) Mint(label string) (string, error) {
	if !labelPattern.MatchString(label) {
		return "", fmt.Errorf("label must match [A-Za-z0-9_-]+, got %q", label)
	}
	return TokenPrefix + label + "." + e.mac(label), nil
}

// MintScoped derives a token whose permissions are limited to the given
// namespace scopes. An empty scope map is rejected.
func (e *Engine) MintScoped(label string, scopes map[string]Access) (string, error) {
	if !labelPattern.MatchString(label) {
		return "", fmt.Errorf("label must match [A-Za-z0-9_-]+, got %q", label)
	}
	if err := validateScopes(scopes); err != nil {
		return "", err
	}
	payload, err := json.Marshal(scopes)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}
	data := label + ":" + base64.RawURLEncoding.EncodeToString(payload)
	return TokenPrefix + data + "." + e.mac(data), nil
}

// Verify checks a token and returns its claims. The MAC comparison is
// constant-time; any failure yields ErrInvalidToken with no detail.
func (e *Engine) Verify(token string) (*Claims, error) {
	data, ok := strings.CutPrefix(token, TokenPrefix)
	if !ok {
		return nil, ErrInvalidToken
	}

	dot := strings.LastIndexByte(data, '.')
	if dot < 0 {
		return nil, ErrInvalidToken
	}
	payload, givenMAC := data[:dot], data[dot+1:]

	wantMAC := e.mac(payload)
	if !hmac.Equal([]byte(wantMAC), []byte(givenMAC)) {
		return nil, ErrInvalidToken
	}

	label, claimsPart, scoped := strings.Cut(payload, ":")
	if !labelPattern.MatchString(label) {
		return nil, ErrInvalidToken
	}
	if !scoped {
		return FullAccess(label), nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(claimsPart)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var scopes map[string]Access
	if err := json.Unmarshal(raw, &scopes); err != nil {
		return nil, ErrInvalidToken
	}
	if err := validateScopes(scopes); err != nil {
		return nil, ErrInvalidToken
	}
	return &Claims{Label: label, Scopes: scopes}, nil
}
