package schema

import "strings"

// TypeKind is the portable JSON-compatible kind of a column value.
type TypeKind string

const (
	KindInteger TypeKind = "integer"
	KindNumber  TypeKind = "number"
	KindBoolean TypeKind = "boolean"
	KindObject  TypeKind = "object" // native JSON family, unconstrained
	KindString  TypeKind = "string"
	KindArray   TypeKind = "array"
)

// PortableType is the documentation type derived from a vendor type tag.
type PortableType struct {
	Kind   TypeKind
	Format string // uuid, date, date-time, time, byte — empty when none
	Min    *int64 // bit-width-derived bound for 2- and 4-byte integers
	Max    *int64
	Elem   *PortableType // element type for arrays
}

// Unconstrained reports whether the type already admits any value, in which
// case no nullability marker is emitted in document schemas.
func (t PortableType) Unconstrained() bool { return t.Kind == KindObject }

func int64p(v int64) *int64 { return &v }

// TypeFor maps a vendor type tag to its portable type. Tags beginning with
// an underscore are arrays of the base tag. Unknown tags map to plain string.
func TypeFor(tag string) PortableType {
	if rest, ok := strings.CutPrefix(tag, "_"); ok {
		elem := TypeFor(rest)
		return PortableType{Kind: KindArray, Elem: &elem}
	}

	switch tag {
	case "int2", "smallint", "smallserial":
		return PortableType{Kind: KindInteger, Min: int64p(-32768), Max: int64p(32767)}
	case "int4", "integer", "serial":
		return PortableType{Kind: KindInteger, Min: int64p(-2147483648), Max: int64p(2147483647)}
	case "int8", "bigint", "bigserial":
		return PortableType{Kind: KindInteger}
	case "float4", "float8", "real", "double precision", "numeric", "decimal", "money":
		return PortableType{Kind: KindNumber}
	case "bool", "boolean":
		return PortableType{Kind: KindBoolean}
	case "json", "jsonb":
		return PortableType{Kind: KindObject}
	case "uuid":
		return PortableType{Kind: KindString, Format: "uuid"}
	case "date":
		return PortableType{Kind: KindString, Format: "date"}
	case "timestamp", "timestamptz":
		return PortableType{Kind: KindString, Format: "date-time"}
	case "time", "timetz":
		return PortableType{Kind: KindString, Format: "time"}
	case "bytea":
		return PortableType{Kind: KindString, Format: "byte"}
	default:
		return PortableType{Kind: KindString}
	}
}

// textualTags are the tags whose columns participate in default search.
var textualTags = map[string]bool{
	"text":    true,
	"varchar": true,
	"bpchar":  true,
	"char":    true,
	"name":    true,
	"citext":  true,
	"uuid":    true,
}

func isTextualTag(tag string) bool { return textualTags[tag] }
