// Package list provides the result list of the TUI.
package list

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/cvsearch/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

// linesPerResult is the height of one rendered result.
const linesPerResult = 3

// ResultList displays ranked résumés in a navigable list.
type ResultList struct {
	results  []domain.SearchResult
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewResultList creates an empty list.
func NewResultList(s *styles.Styles) *ResultList {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &ResultList{styles: s, width: 80, height: 12}
}

// Update moves the selection on arrow and j/k keys.
func (r *ResultList) Update(msg tea.Msg) (*ResultList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			r.MoveUp()
		case "down", "j":
			r.MoveDown()
		}
	}
	return r, nil
}

// View renders the visible window of results around the selection.
func (r *ResultList) View() string {
	if len(r.results) == 0 {
		return r.styles.Muted.Render("No results")
	}

	visible := max((r.height-2)/linesPerResult, 1)
	start := 0
	if r.selected >= visible {
		start = r.selected - visible + 1
	}
	end := min(start+visible, len(r.results))

	lines := make([]string, 0, (end-start)*linesPerResult+2)
	lines = append(lines, r.styles.Subtitle.Render(fmt.Sprintf("Results (%d)", len(r.results))), "")
	for i := start; i < end; i++ {
		lines = append(lines, r.renderResult(i, &r.results[i]))
	}
	return strings.Join(lines, "\n")
}

func (r *ResultList) renderResult(index int, result *domain.SearchResult) string {
	indicator := "  "
	if index == r.selected {
		indicator = "> "
	}

	title := truncate(Title(&result.Document), max(r.width-20, 10))
	score := strconv.FormatFloat(result.Score, 'f', 3, 64)

	var titleLine string
	if index == r.selected {
		titleLine = r.styles.Selected.Render(fmt.Sprintf("%s%s  %s", indicator, title, score))
	} else {
		titleLine = r.styles.Normal.Render(indicator+title+"  ") + r.styles.Muted.Render(score)
	}

	fieldsLine := r.styles.Field.Render("    " + truncate(Summary(result.Document.Fields), max(r.width-6, 20)))
	preview := strings.Join(strings.Fields(result.Highlight), " ")
	previewLine := r.styles.Muted.Render("    " + truncate(preview, max(r.width-6, 20)))

	return titleLine + "\n" + fieldsLine + "\n" + previewLine
}

// Title is the candidate name followed by the document ID, or the ID
// alone when no name is known.
func Title(doc *domain.Document) string {
	if name, ok := doc.Fields.String(domain.FieldName); ok && name != "" {
		return fmt.Sprintf("%s (%s)", name, doc.ID)
	}
	return doc.ID
}

// Summary renders the structured fields used for filtering.
func Summary(fields domain.Fields) string {
	var parts []string
	if years, ok := fields.Number(domain.FieldYearsExperience); ok {
		parts = append(parts, strconv.FormatFloat(years, 'f', -1, 64)+" yrs")
	}
	if loc, ok := fields.String(domain.FieldLocation); ok && loc != "" {
		parts = append(parts, loc)
	}
	if skills, ok := fields.StringSet(domain.FieldSkills); ok && len(skills) > 0 {
		parts = append(parts, strings.Join(skills, ", "))
	}
	return strings.Join(parts, " · ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// SetResults replaces the results and selects the first.
func (r *ResultList) SetResults(results []domain.SearchResult) {
	r.results = results
	r.selected = 0
}

// Results returns the current results.
func (r *ResultList) Results() []domain.SearchResult {
	return r.results
}

// Selected returns the index of the selected result.
func (r *ResultList) Selected() int {
	return r.selected
}

// SelectedResult returns the selected result, or nil when empty.
func (r *ResultList) SelectedResult() *domain.SearchResult {
	if r.selected < 0 || r.selected >= len(r.results) {
		return nil
	}
	return &r.results[r.selected]
}

// MoveUp moves the selection up.
func (r *ResultList) MoveUp() {
	if r.selected > 0 {
		r.selected--
	}
}

// MoveDown moves the selection down.
func (r *ResultList) MoveDown() {
	if r.selected < len(r.results)-1 {
		r.selected++
	}
}

// SetDimensions sets the space the list may use.
func (r *ResultList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}
