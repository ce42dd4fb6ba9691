// Package docdetails provides the view listing a résumé's stored
// attributes.
package docdetails

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/cvsearch/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/cvsearch/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

const maxValueWidth = 60

// View is the document details view.
type View struct {
	styles *styles.Styles

	document     *domain.Document
	scrollOffset int
	width        int
	height       int
}

// NewView creates a document details view.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{styles: s, width: 80, height: 24}
}

// SetDocument sets the document to display.
func (v *View) SetDocument(doc domain.Document) {
	v.document = &doc
	v.scrollOffset = 0
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the details view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
	case tea.KeyMsg:
		return v.handleKeyMsg(msg)
	}
	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.scrollOffset > 0 {
			v.scrollOffset--
		}
	case "down", "j":
		if v.scrollOffset < v.maxScrollOffset() {
			v.scrollOffset++
		}
	case "enter":
		if v.document != nil {
			doc := *v.document
			return v, func() tea.Msg { return messages.DocumentSelected{Document: doc} }
		}
	case "esc", "q":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewSearch}
		}
	}
	return v, nil
}

func (v *View) visibleLines() int {
	return max(v.height-6, 1)
}

func (v *View) maxScrollOffset() int {
	return max(len(v.buildContent())-v.visibleLines(), 0)
}

// buildContent lists the document header followed by its fields in name
// order.
func (v *View) buildContent() []string {
	if v.document == nil {
		return nil
	}
	d := v.document

	lines := []string{
		formatField("ID", d.ID),
		formatField("Version", strconv.Itoa(d.Version)),
		formatField("Chunks", strconv.Itoa(d.ChunkCount)),
	}
	if d.Source != "" {
		lines = append(lines, formatField("Source", d.Source))
	}
	if !d.CreatedAt.IsZero() {
		lines = append(lines, formatField("Created", d.CreatedAt.Format("2006-01-02 15:04:05")))
	}
	if !d.UpdatedAt.IsZero() {
		lines = append(lines, formatField("Updated", d.UpdatedAt.Format("2006-01-02 15:04:05")))
	}

	if len(d.Fields) > 0 {
		lines = append(lines, "", "Fields:")
		names := make([]string, 0, len(d.Fields))
		for name := range d.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("  %s: %s", name, FormatValue(d.Fields[name])))
		}
	}
	return lines
}

func formatField(label, value string) string {
	return fmt.Sprintf("%-10s %s", label+":", value)
}

// FormatValue renders a field value on one line, truncated.
func FormatValue(value any) string {
	var s string
	switch val := value.(type) {
	case []string:
		s = strings.Join(val, ", ")
	case []any:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = fmt.Sprint(p)
		}
		s = strings.Join(parts, ", ")
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	default:
		s = fmt.Sprint(val)
	}

	if r := []rune(s); len(r) > maxValueWidth {
		s = string(r[:maxValueWidth-3]) + "..."
	}
	return s
}

// View renders the details view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Résumé Details"))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", min(max(v.width-4, 0), 60)))
	b.WriteString("\n\n")

	lines := v.buildContent()
	if len(lines) == 0 {
		b.WriteString(v.styles.Muted.Render("No document selected"))
	} else {
		end := min(v.scrollOffset+v.visibleLines(), len(lines))
		for _, line := range lines[v.scrollOffset:end] {
			b.WriteString(v.styles.Normal.Render(line))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render("[↑/↓] scroll  [enter] read  [esc] back"))
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.scrollOffset = min(v.scrollOffset, v.maxScrollOffset())
}

// Document returns the shown document, or nil.
func (v *View) Document() *domain.Document {
	return v.document
}
