package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func TestEmail(t *testing.T) {
	assert.Equal(t, "Jane.Doe@example.co.uk", Email("Contact: Jane.Doe@example.co.uk."))
	assert.Equal(t, "a@b.io", Email("a@b.io and c@d.io"))
	assert.Empty(t, Email("no address here"))
}

func TestSkills(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "aliases map to canonical names",
			text: "Senior Golang engineer. Worked with Kubernetes (k8s), PostgreSQL and C++ at scale.",
			want: []string{"c++", "go", "kubernetes", "sql"},
		},
		{
			name: "prefix of a longer word does not count",
			text: "JavaScript developer",
			want: []string{"javascript"},
		},
		{
			name: "no skills",
			text: "we scale systems",
			want: nil,
		},
		{
			name: "multi word alias",
			text: "Deployed on Amazon Web Services with Ruby on Rails",
			want: []string{"aws", "ruby"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Skills(tt.text))
		})
	}
}

func TestYearsExperience(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"explicit phrase", "Backend engineer with 7 years of experience and 3 years experience in Go", 7},
		{"plus suffix", "10+ years building systems", 10},
		{"experience label", "Experience: 4 years", 4},
		{"date span", "Acme 2015 - 2019, Globex 2019 - 2023", 8},
		{"since year", "Working since 2020", 6},
		{"future years ignored", "2010 and 2030", 0},
		{"years before career window ignored", "1985 2000", 0},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, YearsExperience(tt.text, fixedNow))
		})
	}
}

func TestGuessName(t *testing.T) {
	assert.Equal(t, "John Doe", GuessName("", "john.doe42@example.com"))
	assert.Equal(t, "John Doe", GuessName("/tmp/other.txt", "john_doe@example.com"))
	assert.Equal(t, "Jane Smith", GuessName("/tmp/jane_smith_resume.pdf", ""))
	assert.Empty(t, GuessName("cv.txt", ""))
	assert.Empty(t, GuessName("", ""))
}

func TestExtractor_Fields(t *testing.T) {
	e := Extractor{Now: func() time.Time { return fixedNow }}

	got := e.Fields("Jane Roe\njane.roe@example.com\n5+ years Python and Docker", "")
	assert.Equal(t, domain.Fields{
		domain.FieldEmail:           "jane.roe@example.com",
		domain.FieldSkills:          []string{"docker", "python"},
		domain.FieldYearsExperience: 5.0,
		domain.FieldName:            "Jane Roe",
	}, got)

	assert.Empty(t, e.Fields("hello", ""))
	assert.Equal(t, domain.Fields{domain.FieldName: "Max Mustermann"},
		e.Fields("hello", "resumes/max-mustermann-cv.txt"))
}
