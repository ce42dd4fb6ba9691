// Package queryparser turns natural-language hiring queries into structured
// filters, for example "python and aws engineers with more than 5 years in
// Berlin".
package queryparser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/extract"
)

// SkillsMode says whether all or any of the detected skills must match.
type SkillsMode string

// Skills modes.
const (
	SkillsAny SkillsMode = "any"
	SkillsAll SkillsMode = "all"
)

var (
	minYearsPattern   = regexp.MustCompile(`(?i)(?:more than|over|>\s*|at least|minimum|above)\s*(\d+)\s+years?`)
	maxYearsPattern   = regexp.MustCompile(`(?i)(?:less than|under|below|<\s*|maximum|upto|up to)\s*(\d+)\s+years?`)
	exactYearsPattern = regexp.MustCompile(`(?i)(?:exactly|with)\s*(\d+)\s+years?`)

	orPattern  = regexp.MustCompile(`(?i)\b(?:or|either|any\s+of)\b`)
	andPattern = regexp.MustCompile(`(?i)\band\b`)

	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bbased\s+in\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
		regexp.MustCompile(`\bin\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
		regexp.MustCompile(`\bfrom\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
	}
)

// Result is the structure found in a query.
type Result struct {
	Skills     []string
	SkillsMode SkillsMode

	// MinYears and MaxYears are nil when the query gives no bound.
	MinYears *int
	MaxYears *int

	Locations []string
}

// IsEmpty returns true when nothing was recognised.
func (r Result) IsEmpty() bool {
	return len(r.Skills) == 0 && r.MinYears == nil && r.MaxYears == nil && len(r.Locations) == 0
}

// Parse extracts skills, experience bounds and locations from query.
func Parse(query string) Result {
	var r Result

	if m := minYearsPattern.FindStringSubmatch(query); m != nil {
		r.MinYears = atoi(m[1])
	}
	if m := maxYearsPattern.FindStringSubmatch(query); m != nil {
		r.MaxYears = atoi(m[1])
	}
	if m := exactYearsPattern.FindStringSubmatch(query); m != nil {
		r.MinYears = atoi(m[1])
		r.MaxYears = atoi(m[1])
	}

	r.Skills = extract.Skills(query)
	if len(r.Skills) > 0 {
		switch {
		case orPattern.MatchString(query):
			r.SkillsMode = SkillsAny
		case andPattern.MatchString(query) || len(r.Skills) > 1:
			r.SkillsMode = SkillsAll
		default:
			r.SkillsMode = SkillsAny
		}
	}

	r.Locations = locations(query)
	return r
}

// locations returns capitalised place names following "in", "from" or
// "based in". Names that are skills ("in Python") are skipped.
func locations(query string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range locationPatterns {
		for _, m := range p.FindAllStringSubmatch(query, -1) {
			loc := m[1]
			if seen[loc] || len(extract.Skills(loc)) > 0 {
				continue
			}
			seen[loc] = true
			out = append(out, loc)
		}
	}
	return out
}

func atoi(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// Filter converts the result into filter predicates. Location predicates are
// only added when withLocation is set, since location is rarely present in
// extracted fields and a predicate on a missing field never matches.
func (r Result) Filter(withLocation bool) domain.Filter {
	var f domain.Filter
	if len(r.Skills) > 0 {
		op := domain.OpAny
		if r.SkillsMode == SkillsAll {
			op = domain.OpAll
		}
		f = append(f, domain.Predicate{Field: domain.FieldSkills, Op: op, Value: append([]string(nil), r.Skills...)})
	}

	both := r.MinYears != nil && r.MaxYears != nil
	switch {
	case both && *r.MinYears == *r.MaxYears:
		f = append(f, domain.Predicate{Field: domain.FieldYearsExperience, Op: domain.OpEq, Value: float64(*r.MinYears)})
	case both && *r.MinYears < *r.MaxYears:
		f = append(f, domain.Predicate{
			Field: domain.FieldYearsExperience,
			Op:    domain.OpBetween,
			Value: [2]float64{float64(*r.MinYears), float64(*r.MaxYears)},
		})
	default:
		if r.MinYears != nil {
			f = append(f, domain.Predicate{Field: domain.FieldYearsExperience, Op: domain.OpGte, Value: float64(*r.MinYears)})
		}
		if r.MaxYears != nil {
			f = append(f, domain.Predicate{Field: domain.FieldYearsExperience, Op: domain.OpLte, Value: float64(*r.MaxYears)})
		}
	}

	if withLocation && len(r.Locations) > 0 {
		if len(r.Locations) == 1 {
			f = append(f, domain.Predicate{Field: domain.FieldLocation, Op: domain.OpContains, Value: r.Locations[0]})
		} else {
			f = append(f, domain.Predicate{Field: domain.FieldLocation, Op: domain.OpIn, Value: append([]string(nil), r.Locations...)})
		}
	}
	return f
}

// String renders the result for logs.
func (r Result) String() string {
	var parts []string
	if len(r.Skills) > 0 {
		parts = append(parts, "skills("+string(r.SkillsMode)+")="+strings.Join(r.Skills, ","))
	}
	if r.MinYears != nil {
		parts = append(parts, "min_years="+strconv.Itoa(*r.MinYears))
	}
	if r.MaxYears != nil {
		parts = append(parts, "max_years="+strconv.Itoa(*r.MaxYears))
	}
	if len(r.Locations) > 0 {
		parts = append(parts, "locations="+strings.Join(r.Locations, ","))
	}
	return strings.Join(parts, " ")
}
