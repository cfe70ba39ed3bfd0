package cronograma

import (
	"regexp"
	"strings"
)

var numeric = regexp.MustCompile(`^[0-9]+$`)

// Query is the filter tuple submitted to the portal form. Every field is a
// string of decimal digits.
type Query struct {
	Programa string `json:"programa"`
	Sede     string `json:"sede"`
	Recurso  string `json:"recurso"`
}

// Key returns the cache key for q. Field order is significant.
func (q Query) Key() string {
	return strings.Join([]string{q.Programa, q.Sede, q.Recurso}, "-")
}

// Valid reports whether every field is numeric.
func (q Query) Valid() bool {
	return IsNumeric(q.Programa) && IsNumeric(q.Sede) && IsNumeric(q.Recurso)
}

// IsNumeric reports whether v is a string made only of ASCII digits.
// Numbers, booleans and other JSON types do not qualify.
func IsNumeric(v any) bool {
	s, ok := v.(string)
	return ok && numeric.MatchString(s)
}

// ResolveQuery builds a Query from a decoded request body. A field that is
// absent or not a digit string takes its default; jornada, when numeric,
// takes precedence over recurso.
func ResolveQuery(fields map[string]any, defaults Query) Query {
	q := defaults

	if v := fields["programa"]; IsNumeric(v) {
		q.Programa = v.(string)
	}
	if v := fields["sede"]; IsNumeric(v) {
		q.Sede = v.(string)
	}
	switch {
	case IsNumeric(fields["jornada"]):
		q.Recurso = fields["jornada"].(string)
	case IsNumeric(fields["recurso"]):
		q.Recurso = fields["recurso"].(string)
	}

	return q
}
