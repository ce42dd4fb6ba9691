// Package search provides the search view of the TUI: a query input, the
// ranked results and a status bar.
package search

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/cvsearch/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/cvsearch/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/cvsearch/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/cvsearch/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/cvsearch/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/cvsearch/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driving"
	"github.com/custodia-labs/cvsearch/internal/queryparser"
)

// ErrNoSearchService is reported when the view has no search service.
var ErrNoSearchService = errors.New("search service is required")

// View is the search view. It starts with the input focused; a
// completed search moves focus to the results.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.SearchInput
	list      *list.ResultList
	statusbar *status.Bar

	searchService   driving.SearchService
	documentService driving.DocumentService
	ctx             context.Context
	limit           int
	matchLocation   bool

	width      int
	height     int
	ready      bool
	err        error
	parsed     string
	focusInput bool
}

// NewView creates a search view. documentService may be nil, which
// disables opening sources.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	searchService driving.SearchService,
	documentService driving.DocumentService,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:          s,
		keymap:          km,
		input:           input.NewSearchInput(s),
		list:            list.NewResultList(s),
		statusbar:       status.NewBar(s, km),
		searchService:   searchService,
		documentService: documentService,
		ctx:             context.Background(),
		width:           80,
		height:          24,
		focusInput:      true,
	}
}

// WithContext sets the context searches run under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// WithLimit sets the number of results requested. Zero uses the
// configured default.
func (v *View) WithLimit(limit int) *View {
	v.limit = limit
	return v
}

// WithMatchLocation makes natural-language queries filter on the
// locations they name.
func (v *View) WithMatchLocation(match bool) *View {
	v.matchLocation = match
	return v
}

// Init starts the input cursor.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the search view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.SearchCompleted:
		v.handleSearchCompleted(msg)
		return v, nil

	case messages.DocumentOpened:
		if msg.Err != nil {
			v.statusbar.SetMessage("Open: " + msg.Err.Error())
		} else {
			v.statusbar.SetMessage("Opened " + msg.DocumentID)
		}
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	if v.focusInput {
		v.input, cmd = v.input.Update(msg)
	}
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if v.focusInput {
		return v.handleInputKey(msg)
	}

	key := msg.String()
	switch {
	case keymap.Matches(key, v.keymap.Quit):
		return v, func() tea.Msg { return messages.Quit{} }
	case keymap.Matches(key, v.keymap.Back), keymap.Matches(key, v.keymap.NewSearch):
		v.focusSearch(key != "esc")
		return v, v.input.Focus()
	case keymap.Matches(key, v.keymap.Content):
		if r := v.list.SelectedResult(); r != nil {
			doc := r.Document
			return v, func() tea.Msg { return messages.DocumentSelected{Document: doc} }
		}
	case keymap.Matches(key, v.keymap.Details):
		if r := v.list.SelectedResult(); r != nil {
			doc := r.Document
			return v, func() tea.Msg { return messages.DetailsSelected{Document: doc} }
		}
	case keymap.Matches(key, v.keymap.Open):
		if r := v.list.SelectedResult(); r != nil {
			return v, v.openDocument(r.Document.ID)
		}
	default:
		v.list, _ = v.list.Update(msg)
	}
	return v, nil
}

func (v *View) handleInputKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	//nolint:exhaustive // only keys with a meaning in the input
	switch msg.Type {
	case tea.KeyEsc:
		if len(v.list.Results()) > 0 {
			v.focusResults()
			return v, nil
		}
		return v, func() tea.Msg { return messages.Quit{} }
	case tea.KeyTab:
		v.input.ToggleMode()
		return v, nil
	case tea.KeyEnter:
		query := v.input.Value()
		if query == "" {
			return v, nil
		}
		v.statusbar.SetState(status.StateSearching)
		return v, v.performSearch(query, v.input.Natural())
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// performSearch runs the query, deriving filters from it in natural mode.
func (v *View) performSearch(query string, natural bool) tea.Cmd {
	svc, ctx := v.searchService, v.ctx
	req := domain.SearchRequest{Query: query, Limit: v.limit}
	var parsed string
	if natural {
		p := queryparser.Parse(query)
		req.Filter = p.Filter(v.matchLocation)
		if !p.IsEmpty() {
			parsed = p.String()
		}
	}

	return func() tea.Msg {
		if svc == nil {
			return messages.ErrorOccurred{Err: ErrNoSearchService}
		}
		resp, err := svc.Search(ctx, req)
		return messages.SearchCompleted{Query: query, Parsed: parsed, Response: resp, Err: err}
	}
}

func (v *View) openDocument(id string) tea.Cmd {
	svc, ctx := v.documentService, v.ctx
	return func() tea.Msg {
		if svc == nil {
			return messages.DocumentOpened{DocumentID: id, Err: errors.New("document service not available")}
		}
		return messages.DocumentOpened{DocumentID: id, Err: svc.Open(ctx, id)}
	}
}

func (v *View) handleSearchCompleted(msg messages.SearchCompleted) {
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}

	v.err = nil
	v.parsed = msg.Parsed
	v.list.SetResults(msg.Response.Results)
	v.statusbar.SetResponse(msg.Response)
	if len(msg.Response.Results) > 0 {
		v.focusResults()
	}
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

func (v *View) focusResults() {
	v.focusInput = false
	v.input.Blur()
	v.statusbar.SetBrowsing(true)
}

func (v *View) focusSearch(clear bool) {
	v.focusInput = true
	if clear {
		v.input.SetValue("")
	}
	v.statusbar.SetBrowsing(false)
}

// View renders the search view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 10)
	sections = append(sections, v.styles.Title.Render("cvsearch"), "", v.input.View())
	if v.parsed != "" {
		sections = append(sections, v.styles.Muted.Render("Parsed: "+v.parsed))
	}
	sections = append(sections, "")

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}
	sections = append(sections, v.list.View(), "", v.statusbar.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sizes the view and its components.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	v.list.SetDimensions(width, height-9)
	v.statusbar.SetWidth(width)
}

// Query returns the current query text.
func (v *View) Query() string {
	return v.input.Value()
}

// SetQuery replaces the query text.
func (v *View) SetQuery(query string) {
	v.input.SetValue(query)
}

// Results returns the current results.
func (v *View) Results() []domain.SearchResult {
	return v.list.Results()
}

// SelectedResult returns the selected result, or nil.
func (v *View) SelectedResult() *domain.SearchResult {
	return v.list.SelectedResult()
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}

// InputFocused reports whether keys go to the query input.
func (v *View) InputFocused() bool {
	return v.focusInput
}

// Natural reports whether queries are parsed for filters.
func (v *View) Natural() bool {
	return v.input.Natural()
}
