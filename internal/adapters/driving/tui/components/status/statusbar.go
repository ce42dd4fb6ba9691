// Package status provides the status bar of the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/cvsearch/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/cvsearch/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

// State is what the status bar reports on its left side.
type State string

const (
	StateReady     State = "ready"
	StateSearching State = "searching"
	StateResults   State = "results"
	StateError     State = "error"
)

// Bar shows the search state on the left and key hints on the right.
type Bar struct {
	styles *styles.Styles
	keymap *keymap.KeyMap

	state      State
	message    string
	plan       domain.Plan
	results    int
	candidates int
	browsing   bool
	width      int
}

// NewBar creates a status bar in the ready state.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &Bar{styles: s, keymap: km, state: StateReady, width: 80}
}

// View renders the bar across the full width.
func (b *Bar) View() string {
	left := b.renderLeft()
	right := b.renderRight()
	padding := max(b.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return b.styles.StatusBar.Render(left + strings.Repeat(" ", padding) + right)
}

func (b *Bar) renderLeft() string {
	switch b.state {
	case StateSearching:
		return b.styles.Muted.Render("Searching...")
	case StateError:
		return b.styles.Error.Render("Error: " + b.message)
	case StateResults:
		text := fmt.Sprintf("%d results", b.results)
		if b.plan != "" {
			text += fmt.Sprintf(" · %s · %d candidates", b.plan, b.candidates)
		}
		if b.message != "" {
			text += " · " + b.message
		}
		return b.styles.Normal.Render(text)
	default:
		if b.message != "" {
			return b.styles.Muted.Render(b.message)
		}
		return b.styles.Muted.Render("Ready")
	}
}

func (b *Bar) renderRight() string {
	bindings := b.keymap.InputHelp()
	if b.browsing {
		bindings = b.keymap.ResultsHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		h := binding.Help()
		hints = append(hints, h.Key+": "+h.Desc)
	}
	return b.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetResponse records a completed search.
func (b *Bar) SetResponse(resp *domain.SearchResponse) {
	b.state = StateResults
	b.message = ""
	b.plan = resp.Plan
	b.results = len(resp.Results)
	b.candidates = resp.Candidates
}

// SetState sets the state.
func (b *Bar) SetState(state State) {
	b.state = state
}

// State returns the state.
func (b *Bar) State() State {
	return b.state
}

// SetMessage sets the message shown with the state.
func (b *Bar) SetMessage(message string) {
	b.message = message
}

// Message returns the message.
func (b *Bar) Message() string {
	return b.message
}

// SetBrowsing switches the key hints between the input and the results.
func (b *Bar) SetBrowsing(browsing bool) {
	b.browsing = browsing
}

// SetWidth sets the bar width.
func (b *Bar) SetWidth(width int) {
	b.width = width
}

// Clear returns to the ready state.
func (b *Bar) Clear() {
	*b = Bar{styles: b.styles, keymap: b.keymap, state: StateReady, width: b.width}
}

