// Package render maps column widget tags to cell rendering functions
// and classifies metadata payloads at the ingestion boundary.
//
// Dispatch is a registry keyed by the column's declared widget tag with
// an explicit default, so an unknown tag degrades to plain text instead
// of silently rendering nothing.
package render

import (
	"fmt"
	"strconv"
	"time"

	"github.com/consoleworks/gridcore/pkg/fetch"
)

// Func renders one cell value. row is the full row for renderers that
// combine fields.
type Func func(value any, row fetch.Row) string

// Registry dispatches cell rendering by widget tag.
type Registry struct {
	funcs    map[string]Func
	fallback Func
}

// NewRegistry builds a registry with the built-in widget set and a
// plain-text fallback.
func NewRegistry() *Registry {
	r := &Registry{
		funcs:    make(map[string]Func),
		fallback: Text,
	}
	r.Register("text", Text)
	r.Register("number", Number)
	r.Register("bool", Bool)
	r.Register("datetime", DateTime)
	return r
}

// Register installs fn for tag, replacing any previous registration.
func (r *Registry) Register(tag string, fn Func) {
	r.funcs[tag] = fn
}

// SetFallback replaces the renderer used for unregistered tags.
func (r *Registry) SetFallback(fn Func) {
	r.fallback = fn
}

// Render dispatches on tag. An empty or unknown tag uses the fallback.
func (r *Registry) Render(tag string, value any, row fetch.Row) string {
	if fn, ok := r.funcs[tag]; ok {
		return fn(value, row)
	}
	return r.fallback(value, row)
}

// Text renders any value as a plain string. nil renders empty.
func Text(value any, _ fetch.Row) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// Number renders numeric values without the exponent form that
// fmt.Sprint gives large JSON floats.
func Number(value any, row fetch.Row) string {
	switch v := value.(type) {
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return Text(value, row)
}

// Bool renders truthiness as a check mark column.
func Bool(value any, _ fetch.Row) string {
	if b, ok := value.(bool); ok && b {
		return "✓"
	}
	return "✗"
}

// DateTime reformats RFC 3339 timestamps into a compact local form and
// passes anything unparsable through untouched.
func DateTime(value any, row fetch.Row) string {
	s, ok := value.(string)
	if !ok {
		return Text(value, row)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02 15:04")
}

// Presence classifies a metadata payload. The server signals a redacted
// payload inconsistently (null, or an object whose every value is
// null), so the distinction is made once here instead of at each
// render site.
type Presence int

const (
	// Empty means the field is absent or an empty object: there is
	// nothing to show and nothing was withheld.
	Empty Presence = iota
	// Redacted means the server withheld the payload.
	Redacted
	// Present means data is available.
	Present
)

func (p Presence) String() string {
	switch p {
	case Redacted:
		return "redacted"
	case Present:
		return "present"
	default:
		return "empty"
	}
}

// Meta is a metadata payload classified at ingestion.
type Meta struct {
	Kind Presence
	Data map[string]any
}

// IngestMeta classifies one metadata value as decoded from JSON.
// Missing and {} are Empty, null and all-null objects are Redacted,
// anything else is Present.
func IngestMeta(value any, ok bool) Meta {
	if !ok {
		return Meta{Kind: Empty}
	}
	if value == nil {
		return Meta{Kind: Redacted}
	}
	obj, isObj := value.(map[string]any)
	if !isObj {
		// Scalar or array metadata is data.
		return Meta{Kind: Present, Data: map[string]any{"value": value}}
	}
	if len(obj) == 0 {
		return Meta{Kind: Empty}
	}
	for _, v := range obj {
		if v != nil {
			return Meta{Kind: Present, Data: obj}
		}
	}
	return Meta{Kind: Redacted}
}

// RowMeta classifies the named metadata field of a row.
func RowMeta(row fetch.Row, field string) Meta {
	value, ok := row[field]
	return IngestMeta(value, ok)
}
