package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Well-known structured field names.
const (
	FieldName            = "name"
	FieldEmail           = "email"
	FieldLocation        = "location"
	FieldSkills          = "skills"
	FieldYearsExperience = "years_experience"

	// FieldDocumentID is a reserved filter field resolved without the
	// metadata store. It cannot be set as a structured field.
	FieldDocumentID = "document_id"
)

// FieldKind is the value type of a structured field.
type FieldKind string

// Supported field kinds.
const (
	KindString    FieldKind = "string"
	KindNumber    FieldKind = "number"
	KindStringSet FieldKind = "string_set"
)

// IsValid returns true if the kind is recognised.
func (k FieldKind) IsValid() bool {
	switch k {
	case KindString, KindNumber, KindStringSet:
		return true
	default:
		return false
	}
}

// Schema maps filterable field names to their kinds.
type Schema map[string]FieldKind

// DefaultSchema returns the résumé schema.
func DefaultSchema() Schema {
	return Schema{
		FieldName:            KindString,
		FieldEmail:           KindString,
		FieldLocation:        KindString,
		FieldSkills:          KindStringSet,
		FieldYearsExperience: KindNumber,
	}
}

// Kind returns the kind of a field and whether the field is known.
func (s Schema) Kind(field string) (FieldKind, bool) {
	k, ok := s[field]
	return k, ok
}

// ParseSchemaEntries extends base with "name:kind" entries.
func ParseSchemaEntries(base Schema, entries []string) (Schema, error) {
	out := make(Schema, len(base)+len(entries))
	for k, v := range base {
		out[k] = v
	}
	for _, e := range entries {
		name, kind, ok := strings.Cut(e, ":")
		name = strings.TrimSpace(name)
		fk := FieldKind(strings.TrimSpace(kind))
		if !ok || name == "" || !fk.IsValid() {
			return nil, fmt.Errorf("%w: schema entry %q", ErrConfiguration, e)
		}
		if name == FieldDocumentID {
			return nil, fmt.Errorf("%w: %q is reserved", ErrConfiguration, name)
		}
		out[name] = fk
	}
	return out, nil
}

// Fields holds structured attributes. Values are string, float64 or []string
// once normalised. A missing key means the attribute is unknown.
type Fields map[string]any

// Clone returns a deep copy.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		if ss, ok := v.([]string); ok {
			v = append([]string(nil), ss...)
		}
		out[k] = v
	}
	return out
}

// String returns a string field.
func (f Fields) String(name string) (string, bool) {
	v, ok := f[name].(string)
	return v, ok
}

// Number returns a numeric field.
func (f Fields) Number(name string) (float64, bool) {
	v, ok := f[name].(float64)
	return v, ok
}

// StringSet returns a string set field.
func (f Fields) StringSet(name string) ([]string, bool) {
	v, ok := f[name].([]string)
	return v, ok
}

// Normalise coerces raw values into the canonical form for their schema
// kind. Fields outside the schema are kept when they already have a
// supported type. Nil values are dropped.
func (f Fields) Normalise(schema Schema) (Fields, error) {
	out := make(Fields, len(f))
	for name, raw := range f {
		if raw == nil {
			continue
		}
		if name == FieldDocumentID {
			return nil, fmt.Errorf("%w: field %q is reserved", ErrInvalidInput, name)
		}
		kind, known := schema.Kind(name)
		if !known {
			kind = inferKind(raw)
			if kind == "" {
				return nil, fmt.Errorf("%w: field %q has unsupported type %T", ErrInvalidInput, name, raw)
			}
		}
		v, err := coerce(kind, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidInput, name, err)
		}
		if v != nil {
			out[name] = v
		}
	}
	return out, nil
}

// Merge returns a copy of f with values from other filled in where f has none.
func (f Fields) Merge(other Fields) Fields {
	out := f.Clone()
	if out == nil {
		out = make(Fields, len(other))
	}
	for k, v := range other {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}

func inferKind(v any) FieldKind {
	switch v.(type) {
	case string:
		return KindString
	case float64, float32, int, int32, int64:
		return KindNumber
	case []string, []any:
		return KindStringSet
	default:
		return ""
	}
}

func coerce(kind FieldKind, raw any) (any, error) {
	switch kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		return s, nil
	case KindNumber:
		return toNumber(raw)
	case KindStringSet:
		return toStringSet(raw)
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}

func toNumber(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
}

func toStringSet(raw any) ([]string, error) {
	var items []string
	switch v := raw.(type) {
	case []string:
		items = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", item)
			}
			items = append(items, s)
		}
	case string:
		items = strings.Split(v, ",")
	default:
		return nil, fmt.Errorf("expected string set, got %T", raw)
	}
	return NormaliseSet(items), nil
}

// NormaliseSet lower-cases, trims, de-duplicates and sorts set members.
func NormaliseSet(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
