package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Op is a predicate operator.
type Op string

// Supported operators. Which operators apply depends on the field kind:
//
//	string      eq, in, contains (substring)
//	number      eq, gte, lte, between
//	string_set  contains, any, all
//	document_id eq, in
const (
	OpEq       Op = "eq"
	OpIn       Op = "in"
	OpContains Op = "contains"
	OpAny      Op = "any"
	OpAll      Op = "all"
	OpGte      Op = "gte"
	OpLte      Op = "lte"
	OpBetween  Op = "between"
)

var opsByKind = map[FieldKind][]Op{
	KindString:    {OpEq, OpIn, OpContains},
	KindNumber:    {OpEq, OpGte, OpLte, OpBetween},
	KindStringSet: {OpContains, OpAny, OpAll},
}

// Predicate is a single condition over a structured field.
//
// After Filter.Normalise, Value holds:
//
//	string   for eq/contains on strings, contains on sets
//	[]string for in, any, all
//	float64  for eq/gte/lte on numbers
//	[2]float64 for between
type Predicate struct {
	Field string
	Op    Op
	Value any
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s=%s:%v", p.Field, p.Op, p.Value)
}

// Filter is a conjunction of predicates.
type Filter []Predicate

// IsEmpty returns true if the filter has no predicates.
func (f Filter) IsEmpty() bool {
	return len(f) == 0
}

// Normalise validates every predicate against the schema and returns a copy
// with values in canonical form. Unknown fields fail with
// ErrUnknownFilterField; malformed predicates fail with ErrBadQuery.
func (f Filter) Normalise(schema Schema) (Filter, error) {
	out := make(Filter, 0, len(f))
	for _, p := range f {
		n, err := normalisePredicate(schema, p)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// SplitDocumentIDs separates document_id predicates from field predicates.
// The returned id set is the intersection of all document_id predicates, or
// nil when there are none. The filter must be normalised.
func (f Filter) SplitDocumentIDs() (ids []string, rest Filter) {
	var set map[string]bool
	for _, p := range f {
		if p.Field != FieldDocumentID {
			rest = append(rest, p)
			continue
		}
		var vals []string
		switch v := p.Value.(type) {
		case string:
			vals = []string{v}
		case []string:
			vals = v
		}
		next := make(map[string]bool, len(vals))
		for _, id := range vals {
			if set == nil || set[id] {
				next[id] = true
			}
		}
		set = next
	}
	if set == nil {
		return nil, rest
	}
	ids = make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, rest
}

// Matches reports whether a document satisfies every predicate. A predicate
// on a missing field never matches. The filter must be normalised.
func (f Filter) Matches(id string, fields Fields) bool {
	for _, p := range f {
		if !p.matches(id, fields) {
			return false
		}
	}
	return true
}

func (p Predicate) matches(id string, fields Fields) bool {
	if p.Field == FieldDocumentID {
		return matchString(p.Op, id, p.Value, false)
	}
	raw, ok := fields[p.Field]
	if !ok || raw == nil {
		return false
	}
	switch v := raw.(type) {
	case string:
		return matchString(p.Op, v, p.Value, true)
	case float64:
		return matchNumber(p.Op, v, p.Value)
	case []string:
		return matchSet(p.Op, v, p.Value)
	default:
		return false
	}
}

func matchString(op Op, have string, want any, fold bool) bool {
	eq := func(a, b string) bool {
		if fold {
			return strings.EqualFold(a, b)
		}
		return a == b
	}
	switch op {
	case OpEq:
		w, _ := want.(string)
		return eq(have, w)
	case OpIn:
		ws, _ := want.([]string)
		for _, w := range ws {
			if eq(have, w) {
				return true
			}
		}
		return false
	case OpContains:
		w, _ := want.(string)
		return strings.Contains(strings.ToLower(have), strings.ToLower(w))
	default:
		return false
	}
}

func matchNumber(op Op, have float64, want any) bool {
	switch op {
	case OpEq:
		w, _ := want.(float64)
		return have == w
	case OpGte:
		w, _ := want.(float64)
		return have >= w
	case OpLte:
		w, _ := want.(float64)
		return have <= w
	case OpBetween:
		w, _ := want.([2]float64)
		return have >= w[0] && have <= w[1]
	default:
		return false
	}
}

func matchSet(op Op, have []string, want any) bool {
	contains := func(s string) bool {
		for _, h := range have {
			if h == s {
				return true
			}
		}
		return false
	}
	switch op {
	case OpContains:
		w, _ := want.(string)
		return contains(w)
	case OpAny:
		ws, _ := want.([]string)
		for _, w := range ws {
			if contains(w) {
				return true
			}
		}
		return false
	case OpAll:
		ws, _ := want.([]string)
		for _, w := range ws {
			if !contains(w) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func normalisePredicate(schema Schema, p Predicate) (Predicate, error) {
	if p.Field == FieldDocumentID {
		return normaliseDocumentID(p)
	}
	kind, ok := schema.Kind(p.Field)
	if !ok {
		return Predicate{}, fmt.Errorf("%w: %q", ErrUnknownFilterField, p.Field)
	}
	if !opAllowed(kind, p.Op) {
		return Predicate{}, fmt.Errorf("%w: operator %q not valid for %s field %q", ErrBadQuery, p.Op, kind, p.Field)
	}
	out := Predicate{Field: p.Field, Op: p.Op}
	switch {
	case kind == KindNumber && p.Op == OpBetween:
		nums, err := toNumberList(p.Value)
		if err != nil || len(nums) != 2 || nums[0] > nums[1] {
			return Predicate{}, fmt.Errorf("%w: %s needs two ascending numbers", ErrBadQuery, p)
		}
		out.Value = [2]float64{nums[0], nums[1]}
	case kind == KindNumber:
		n, err := toNumber(p.Value)
		if err != nil {
			return Predicate{}, fmt.Errorf("%w: %s: %v", ErrBadQuery, p, err)
		}
		out.Value = n
	case p.Op == OpIn || p.Op == OpAny || p.Op == OpAll:
		list, err := toStringList(p.Value)
		if err != nil || len(list) == 0 {
			return Predicate{}, fmt.Errorf("%w: %s needs at least one value", ErrBadQuery, p)
		}
		if kind == KindStringSet {
			list = NormaliseSet(list)
		}
		out.Value = list
	default:
		s, ok := p.Value.(string)
		s = strings.TrimSpace(s)
		if !ok || s == "" {
			return Predicate{}, fmt.Errorf("%w: %s needs a non-empty string", ErrBadQuery, p)
		}
		if kind == KindStringSet {
			s = strings.ToLower(s)
		}
		out.Value = s
	}
	return out, nil
}

func normaliseDocumentID(p Predicate) (Predicate, error) {
	switch p.Op {
	case OpEq:
		s, ok := p.Value.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return Predicate{}, fmt.Errorf("%w: %s needs a document id", ErrBadQuery, p)
		}
		return Predicate{Field: p.Field, Op: OpEq, Value: strings.TrimSpace(s)}, nil
	case OpIn:
		list, err := toStringList(p.Value)
		if err != nil || len(list) == 0 {
			return Predicate{}, fmt.Errorf("%w: %s needs document ids", ErrBadQuery, p)
		}
		return Predicate{Field: p.Field, Op: OpIn, Value: list}, nil
	default:
		return Predicate{}, fmt.Errorf("%w: operator %q not valid for %s", ErrBadQuery, p.Op, FieldDocumentID)
	}
}

func opAllowed(kind FieldKind, op Op) bool {
	for _, o := range opsByKind[kind] {
		if o == op {
			return true
		}
	}
	return false
}

func toStringList(v any) ([]string, error) {
	var raw []string
	switch t := v.(type) {
	case []string:
		raw = t
	case []any:
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			raw = append(raw, s)
		}
	case string:
		raw = strings.Split(t, ",")
	default:
		return nil, fmt.Errorf("expected list, got %T", v)
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func toNumberList(v any) ([]float64, error) {
	switch t := v.(type) {
	case [2]float64:
		return t[:], nil
	case []float64:
		return t, nil
	}
	list, err := toStringList(v)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(list))
	for _, s := range list {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// ParsePredicate parses "field=op:value". When the operator is omitted the
// default for the field kind is used: eq for strings and numbers, contains
// for string sets. List values are comma-separated.
func ParsePredicate(schema Schema, s string) (Predicate, error) {
	field, rest, ok := strings.Cut(s, "=")
	field = strings.TrimSpace(field)
	if !ok || field == "" || strings.TrimSpace(rest) == "" {
		return Predicate{}, fmt.Errorf("%w: filter %q must be field=op:value", ErrBadQuery, s)
	}
	op, value, hasOp := strings.Cut(rest, ":")
	if !hasOp || !knownOp(Op(op)) {
		value = rest
		op = string(defaultOp(schema, field))
	}
	return Predicate{Field: field, Op: Op(op), Value: strings.TrimSpace(value)}, nil
}

func knownOp(op Op) bool {
	switch op {
	case OpEq, OpIn, OpContains, OpAny, OpAll, OpGte, OpLte, OpBetween:
		return true
	}
	return false
}

func defaultOp(schema Schema, field string) Op {
	if kind, ok := schema.Kind(field); ok && kind == KindStringSet {
		return OpContains
	}
	return OpEq
}
