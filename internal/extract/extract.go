// Package extract derives structured résumé fields from free text.
//
// The heuristics are deliberately simple: an email address, canonical skills
// found through an alias table, years of experience from explicit phrases or
// employment date spans, and a display name guessed from the email prefix or
// the source file name.
package extract

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

// earliestCareerYear bounds date-span estimation.
const earliestCareerYear = 1990

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9.-]+`)

var explicitYearPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d{1,2})\s*\+?\s*(?:yrs?|years?)\s+of\s+(?:experience|exp)`),
	regexp.MustCompile(`(?i)(\d{1,2})\s*\+?\s*(?:yrs?|years?)\s+(?:experience|exp)`),
	regexp.MustCompile(`(?i)experience\s*:?\s*(\d{1,2})\s*\+?\s*(?:yrs?|years?)`),
	regexp.MustCompile(`(?i)(\d{1,2})\s*\+\s*(?:yrs?|years?)`),
}

var (
	calendarYearPattern = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	sincePattern        = regexp.MustCompile(`(?i)\bsince\s+((?:19|20)\d{2})\b`)
	resumeWordPattern   = regexp.MustCompile(`(?i)\b(?:resume|cv|curriculum|vitae)\b`)
)

// Extractor fills résumé fields from text. The zero value uses time.Now.
type Extractor struct {
	// Now returns the current time, used for open-ended date spans.
	Now func() time.Time
}

// Fields returns the fields found in text. Source is an optional file path
// used for the name guess when no email is present. Fields that could not be
// determined are omitted.
func (e Extractor) Fields(text, source string) domain.Fields {
	out := domain.Fields{}
	email := Email(text)
	if email != "" {
		out[domain.FieldEmail] = email
	}
	if skills := Skills(text); len(skills) > 0 {
		out[domain.FieldSkills] = skills
	}
	if years := YearsExperience(text, e.now()); years > 0 {
		out[domain.FieldYearsExperience] = float64(years)
	}
	if name := GuessName(source, email); name != "" {
		out[domain.FieldName] = name
	}
	return out
}

func (e Extractor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Email returns the first email address in text, or "".
func Email(text string) string {
	return strings.TrimRight(emailPattern.FindString(text), ".")
}

// Skills returns the sorted canonical skills mentioned in text.
func Skills(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, s := range skillTable {
		for _, alias := range s.aliases {
			if containsTerm(lower, alias) {
				found = append(found, s.canonical)
				break
			}
		}
	}
	sort.Strings(found)
	return found
}

// containsTerm reports whether term occurs in text with no letter or digit
// directly before or after it.
func containsTerm(text, term string) bool {
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], term)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(term)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r := rune(text[i-1])
	return r >= 0x80 || !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r := rune(text[i])
	return r >= 0x80 || !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// YearsExperience estimates years of professional experience.
//
// Explicit phrases ("5+ years", "7 years of experience") win and the largest
// one is returned. Otherwise the span between the earliest and latest
// plausible calendar year is used, then "since YYYY". Returns 0 when nothing
// applies.
func YearsExperience(text string, now time.Time) int {
	for _, p := range explicitYearPatterns {
		best := -1
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if n, err := strconv.Atoi(m[1]); err == nil && n > best {
				best = n
			}
		}
		if best >= 0 {
			return best
		}
	}

	current := now.Year()
	lowest, highest := 0, 0
	count := 0
	for _, m := range calendarYearPattern.FindAllStringSubmatch(text, -1) {
		y, err := strconv.Atoi(m[1])
		if err != nil || y < earliestCareerYear || y > current {
			continue
		}
		if count == 0 || y < lowest {
			lowest = y
		}
		if count == 0 || y > highest {
			highest = y
		}
		count++
	}
	if count >= 2 {
		return max(1, highest-lowest)
	}

	if m := sincePattern.FindStringSubmatch(text); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil && y <= current {
			return max(1, current-y)
		}
	}
	return 0
}

// GuessName derives a display name from an email prefix, falling back to a
// file name with résumé words removed. Returns "" when neither yields letters.
func GuessName(filename, email string) string {
	if email != "" {
		local, _, _ := strings.Cut(email, "@")
		return titleWords(local)
	}
	if filename == "" {
		return ""
	}
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	return titleWords(resumeWordPattern.ReplaceAllString(stem, " "))
}

// titleWords splits s on separators, drops non-letters and title-cases the
// remaining words.
func titleWords(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || unicode.IsSpace(r)
	})
	out := make([]string, 0, len(words))
	for _, w := range words {
		letters := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, w)
		if letters == "" {
			continue
		}
		runes := []rune(letters)
		runes[0] = unicode.ToUpper(runes[0])
		out = append(out, string(runes))
	}
	return strings.Join(out, " ")
}
