// Package auth implements the stateless credential system: capability
// tokens derived from a master secret by keyed hashing, with per-namespace
// permissions bound into the signed payload.
package auth

import (
	"fmt"
	"strings"
)

// Access is the permission letter set granted on a namespace.
type Access string

const (
	AccessRead      Access = "r"
	AccessWrite     Access = "w"
	AccessReadWrite Access = "rw"
)

// Wildcard matches any namespace not explicitly listed in a scope map.
const Wildcard = "*"

// Mode is the access a request needs on an entity's namespace.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

// letter is the permission letter a mode requires.
func (m Mode) letter() string {
	if m == ModeWrite {
		return "w"
	}
	return "r"
}

// Claims is the verified capability of a request. A nil *Claims (auth
// disabled) and the legacy label-only token form both grant full access.
type Claims struct {
	Label  string
	Full   bool
	Scopes map[string]Access // namespace (or "*") → access letters
}

// FullAccess returns claims permitting every operation.
func FullAccess(label string) *Claims {
	return &Claims{Label: label, Full: true}
}

// Permits reports whether the claims allow the given access mode on the
// namespace. Scoped claims look up the namespace first and fall back to
// the wildcard entry; absence denies.
func (c *Claims) Permits(namespace string, mode Mode) bool {
	if c == nil || c.Full {
		return true
	}
	access, ok := c.Scopes[namespace]
	if !ok {
		access, ok = c.Scopes[Wildcard]
	}
	if !ok {
		return false
	}
	return strings.Contains(string(access), mode.letter())
}

// CanReadNamespace is shorthand used when filtering meta listings.
func (c *Claims) CanReadNamespace(namespace string) bool {
	return c.Permits(namespace, ModeRead)
}

// validateScopes checks that a scope map is non-empty and every entry is
// one of r, w, rw.
func validateScopes(scopes map[string]Access) error {
	if len(scopes) == 0 {
		return fmt.Errorf("scoped token requires at least one namespace entry")
	}
	for ns, access := range scopes {
		switch access {
		case AccessRead, AccessWrite, AccessReadWrite:
		default:
			return fmt.Errorf("namespace %q: access must be r, w, or rw, got %q", ns, access)
		}
	}
	return nil
}
