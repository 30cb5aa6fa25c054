// Package assertion models validated identity assertions and extracts their
// attribute statements into a normalized form.
//
// An assertion arrives from an external authentication-protocol handler that
// has already performed signature and timestamp validation; this package
// never checks either. What it does own is the lossy-tolerant conversion of
// the assertion's semi-structured claim values into ordered string lists:
// typed string values are used verbatim, generic text values contribute
// their text content, and anything else is dropped without failing the
// extraction.
package assertion

import "sort"

// ValueKind identifies how an attribute value was typed in the source
// assertion. The set is closed: every value an identity provider can emit
// resolves to exactly one of these kinds before extraction runs, so the
// extraction switch is exhaustive rather than relying on runtime type
// inspection.
type ValueKind int

const (
	// KindString is a value explicitly typed as a string. Its data is
	// used verbatim.
	KindString ValueKind = iota

	// KindText is a generically-typed value (xs:anyType and friends).
	// Its text content is used.
	KindText

	// KindUnrecognized is any other value type (nested XML, binary,
	// unsupported types). Unrecognized values are silently dropped
	// during extraction.
	KindUnrecognized
)

// String returns a short name for the value kind, for logging.
func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindText:
		return "text"
	case KindUnrecognized:
		return "unrecognized"
	default:
		return "invalid"
	}
}

// Value is a single attribute value together with how it was typed in the
// source assertion.
type Value struct {
	// Kind determines whether Data participates in extraction.
	Kind ValueKind

	// Data is the string form of the value. Empty for KindUnrecognized.
	Data string
}

// String creates a Value carrying an explicitly string-typed datum.
func String(data string) Value {
	return Value{Kind: KindString, Data: data}
}

// Text creates a Value carrying the text content of a generically-typed
// datum.
func Text(data string) Value {
	return Value{Kind: KindText, Data: data}
}

// Unrecognized creates a Value for an unsupported source type. It carries
// no data and is dropped during extraction.
func Unrecognized() Value {
	return Value{Kind: KindUnrecognized}
}

// Statement is a named, possibly multi-valued claim within an assertion.
// An assertion may contain several statements with the same name; their
// values are merged in encounter order during extraction.
type Statement struct {
	// Name is the attribute name as emitted by the identity provider
	// (e.g., "roles", "firstName", "urn:oid:2.5.4.42").
	Name string

	// Values is the ordered list of values for this statement.
	Values []Value
}

// Assertion is a validated identity assertion: a stable subject identifier
// (typically an email address) plus zero or more attribute statements.
//
// Assertions are request-scoped value objects. The bridge never mutates
// them after construction.
type Assertion struct {
	// Subject is the stable external identifier of the authenticated
	// subject.
	Subject string

	// Statements are the assertion's attribute statements in the order
	// the identity provider emitted them.
	Statements []Statement
}

// Attributes is the normalized form of an assertion's claims: attribute
// name mapped to an ordered list of string values.
//
// Lookups on Attributes are total: a missing name yields an empty list,
// never an error or a nil-map panic.
type Attributes map[string][]string

// Get returns the ordered values for the named attribute. A missing name
// yields an empty (nil) slice. The returned slice must not be modified.
func (a Attributes) Get(name string) []string {
	if a == nil {
		return nil
	}
	return a[name]
}

// First returns the first value of the named attribute, or the empty
// string if the attribute is absent or has no values.
func (a Attributes) First(name string) string {
	values := a.Get(name)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Has reports whether the named attribute is present with at least one
// value.
func (a Attributes) Has(name string) bool {
	return len(a.Get(name)) > 0
}

// Names returns the attribute names in sorted order. Sorting gives callers
// a deterministic iteration order over the underlying map.
func (a Attributes) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
