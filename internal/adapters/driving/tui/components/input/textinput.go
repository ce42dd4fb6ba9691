// Package input provides the query input of the TUI.
package input

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/cvsearch/internal/adapters/driving/tui/styles"
)

const (
	keywordPlaceholder = "backend engineer golang kubernetes"
	naturalPlaceholder = "java developer with more than 5 years in Berlin"
)

// SearchInput wraps a bubbles textinput with a label showing the query
// mode.
type SearchInput struct {
	textinput textinput.Model
	styles    *styles.Styles
	natural   bool
	width     int
}

// NewSearchInput creates a focused input in keyword mode.
func NewSearchInput(s *styles.Styles) *SearchInput {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.Placeholder = keywordPlaceholder
	ti.CharLimit = 512
	ti.Width = 50
	ti.Focus()

	return &SearchInput{textinput: ti, styles: s, width: 60}
}

// Init starts the cursor blinking.
func (s *SearchInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update forwards msg to the text input.
func (s *SearchInput) Update(msg tea.Msg) (*SearchInput, tea.Cmd) {
	var cmd tea.Cmd
	s.textinput, cmd = s.textinput.Update(msg)
	return s, cmd
}

// View renders the label and the input.
func (s *SearchInput) View() string {
	label := "Search: "
	if s.natural {
		label = "Ask:    "
	}
	//nolint:misspell // lipgloss.Center is the library's spelling
	return lipgloss.JoinHorizontal(lipgloss.Center,
		s.styles.Title.Render(label),
		s.styles.Input.Render(s.textinput.View()))
}

// Natural reports whether the query is parsed for filters.
func (s *SearchInput) Natural() bool {
	return s.natural
}

// ToggleMode switches between keyword and natural-language queries.
func (s *SearchInput) ToggleMode() {
	s.natural = !s.natural
	if s.natural {
		s.textinput.Placeholder = naturalPlaceholder
	} else {
		s.textinput.Placeholder = keywordPlaceholder
	}
}

// Value returns the query typed so far.
func (s *SearchInput) Value() string {
	return s.textinput.Value()
}

// SetValue replaces the query.
func (s *SearchInput) SetValue(value string) {
	s.textinput.SetValue(value)
}

// Focus gives the input the cursor.
func (s *SearchInput) Focus() tea.Cmd {
	return s.textinput.Focus()
}

// Blur removes the cursor.
func (s *SearchInput) Blur() {
	s.textinput.Blur()
}

// Focused reports whether the input has the cursor.
func (s *SearchInput) Focused() bool {
	return s.textinput.Focused()
}

// Reset clears the query.
func (s *SearchInput) Reset() {
	s.textinput.Reset()
}

// SetWidth sizes the input to width, leaving room for the label.
func (s *SearchInput) SetWidth(width int) {
	s.width = width
	s.textinput.Width = max(width-14, 20)
}

// Width returns the current width.
func (s *SearchInput) Width() int {
	return s.width
}
