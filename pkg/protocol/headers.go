package protocol

import (
	"strings"

	"github.com/samber/lo"
)

// Field is a single header line.
type Field struct {
	Name  string
	Value string
}

// Headers is an ordered header list with case-insensitive lookup. Names keep
// the casing they were added with. The zero value is empty and ready to use.
type Headers struct {
	fields []Field
}

// NewHeaders builds Headers from name/value pairs. A trailing name without a
// value is ignored.
func NewHeaders(pairs ...string) Headers {
	var h Headers
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Add(pairs[i], pairs[i+1])
	}
	return h
}

// Add appends a field, keeping any existing fields with the same name.
func (h *Headers) Add(name, value string) {
	h.fields = append(h.fields, Field{Name: name, Value: value})
}

// Set replaces the value of the first field matching name and drops any later
// duplicates. If no field matches, the field is appended.
func (h *Headers) Set(name, value string) {
	idx := h.index(name)
	if idx < 0 {
		h.Add(name, value)
		return
	}

	fields := make([]Field, 0, len(h.fields))
	for i, f := range h.fields {
		switch {
		case i == idx:
			fields = append(fields, Field{Name: f.Name, Value: value})
		case i > idx && strings.EqualFold(f.Name, name):
		default:
			fields = append(fields, f)
		}
	}
	h.fields = fields
}

// Get returns the value of the first field matching name.
func (h Headers) Get(name string) (string, bool) {
	idx := h.index(name)
	if idx < 0 {
		return "", false
	}
	return h.fields[idx].Value, true
}

// Value is Get without the presence flag.
func (h Headers) Value(name string) string {
	v, _ := h.Get(name)
	return v
}

// Has reports whether a field matching name exists.
func (h Headers) Has(name string) bool {
	return h.index(name) >= 0
}

// Del removes every field matching name.
func (h *Headers) Del(name string) {
	h.fields = lo.Reject(h.fields, func(f Field, _ int) bool {
		return strings.EqualFold(f.Name, name)
	})
}

// Len returns the number of fields.
func (h Headers) Len() int {
	return len(h.fields)
}

// Each calls fn for every field in insertion order.
func (h Headers) Each(fn func(name, value string)) {
	for _, f := range h.fields {
		fn(f.Name, f.Value)
	}
}

// Fields returns a copy of the fields in insertion order.
func (h Headers) Fields() []Field {
	return append([]Field(nil), h.fields...)
}

// Clone returns an independent copy.
func (h Headers) Clone() Headers {
	return Headers{fields: h.Fields()}
}

func (h Headers) index(name string) int {
	_, idx, ok := lo.FindIndexOf(h.fields, func(f Field) bool {
		return strings.EqualFold(f.Name, name)
	})
	if !ok {
		return -1
	}
	return idx
}
