package source

import "strings"

// Record is one source row in header order.
type Record []any

// Header holds canonical column names and their positions.
type Header struct {
	names []string
	index map[string]int
}

// CanonicalName is the comparison form of a column name.
func CanonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "\ufeff", "")))
}

// NewHeader canonicalizes column names. When two columns collapse to the same
// name the first one wins.
func NewHeader(columns []string) Header {
	h := Header{names: make([]string, len(columns)), index: make(map[string]int, len(columns))}
	for i, column := range columns {
		name := CanonicalName(column)
		h.names[i] = name
		if _, exists := h.index[name]; !exists && name != "" {
			h.index[name] = i
		}
	}
	return h
}

// Columns returns the canonical names in file order.
func (h Header) Columns() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Lookup finds a column by exact canonical name.
func (h Header) Lookup(name string) (int, bool) {
	i, ok := h.index[CanonicalName(name)]
	return i, ok
}

// Field declares a logical field and the column names that may carry it, in
// priority order. Prefix fields match any column starting with an alias.
type Field struct {
	Name    string
	Aliases []string
	Prefix  bool
}

// Aliases declares an exact-name field.
func Aliases(name string, aliases ...string) Field {
	if len(aliases) == 0 {
		aliases = []string{name}
	}
	return Field{Name: name, Aliases: aliases}
}

// Prefixes declares a field matched by column-name prefix.
func Prefixes(name string, prefixes ...string) Field {
	return Field{Name: name, Aliases: prefixes, Prefix: true}
}

// Schema is the ordered set of fields a loader expects from one source.
type Schema []Field

// Binding is a Schema resolved against one Header.
type Binding struct {
	columns map[string]int
	names   map[string]string
}

// Bind resolves every field of the schema to a column index.
func (h Header) Bind(schema Schema) Binding {
	b := Binding{columns: make(map[string]int, len(schema)), names: make(map[string]string, len(schema))}
	for _, field := range schema {
		if i, ok := h.resolve(field); ok {
			b.columns[field.Name] = i
			b.names[field.Name] = h.names[i]
		}
	}
	return b
}

func (h Header) resolve(field Field) (int, bool) {
	for _, alias := range field.Aliases {
		alias = CanonicalName(alias)
		if !field.Prefix {
			if i, ok := h.index[alias]; ok {
				return i, true
			}
			continue
		}
		for i, name := range h.names {
			if name != "" && strings.HasPrefix(name, alias) {
				return i, true
			}
		}
	}
	return -1, false
}

// Has reports whether the field resolved to a column.
func (b Binding) Has(field string) bool {
	_, ok := b.columns[field]
	return ok
}

// Column returns the source column a field resolved to.
func (b Binding) Column(field string) string {
	return b.names[field]
}

// Missing lists the given fields that did not resolve.
func (b Binding) Missing(fields ...string) []string {
	var missing []string
	for _, field := range fields {
		if !b.Has(field) {
			missing = append(missing, field)
		}
	}
	return missing
}

// Value returns the field's cell, or nil when the field is unbound or the row
// is short.
func (b Binding) Value(r Record, field string) any {
	i, ok := b.columns[field]
	if !ok || i >= len(r) {
		return nil
	}
	return r[i]
}
