package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cvsearch/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

type stubSearch struct {
	resp *domain.SearchResponse
}

func (s *stubSearch) Search(context.Context, domain.SearchRequest) (*domain.SearchResponse, error) {
	return s.resp, nil
}

type stubDocuments struct{}

func (stubDocuments) Get(context.Context, string) (*domain.Document, error) {
	return nil, domain.ErrNotFound
}

func (stubDocuments) List(context.Context, domain.Filter) ([]domain.Document, error) {
	return nil, nil
}

func (stubDocuments) Chunks(context.Context, string) ([]domain.Chunk, error) {
	return nil, nil
}

func (stubDocuments) GetContent(_ context.Context, id string) (string, error) {
	return "text of " + id, nil
}

func (stubDocuments) Stats(context.Context) (*domain.Stats, error) {
	return &domain.Stats{}, nil
}

func (stubDocuments) Open(context.Context, string) error {
	return nil
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	resp := &domain.SearchResponse{
		Plan:       domain.PlanSearchOnly,
		Candidates: 1,
		Results: []domain.SearchResult{
			{Document: domain.Document{ID: "alice", Version: 2}, Score: 0.8},
		},
	}
	app, err := NewApp(&Ports{Search: &stubSearch{resp: resp}, Documents: stubDocuments{}})
	require.NoError(t, err)
	app.WithContext(t.Context()).WithLimit(5).WithMatchLocation(true)
	app.SetDimensions(100, 30)
	return app
}

// step applies msg and feeds back the messages of the next two commands,
// enough for a key press to reach the service and return.
func step(t *testing.T, app *App, msg tea.Msg) {
	t.Helper()
	_, cmd := app.Update(msg)
	for range 2 {
		if cmd == nil {
			return
		}
		_, cmd = app.Update(cmd())
	}
}

func TestPorts_Validate(t *testing.T) {
	assert.ErrorIs(t, (*Ports)(nil).Validate(), ErrMissingSearchService)
	assert.ErrorIs(t, (&Ports{}).Validate(), ErrMissingSearchService)
	assert.NoError(t, (&Ports{Search: &stubSearch{}}).Validate())
}

func TestNewApp_RequiresSearch(t *testing.T) {
	_, err := NewApp(&Ports{Documents: stubDocuments{}})
	assert.ErrorIs(t, err, ErrMissingSearchService)
}

func TestApp_InitialState(t *testing.T) {
	app, err := NewApp(&Ports{Search: &stubSearch{}})
	require.NoError(t, err)

	assert.False(t, app.Ready())
	assert.Equal(t, "Initialising...", app.View())
	assert.Equal(t, messages.ViewSearch, app.CurrentView())
	assert.NotNil(t, app.Init())

	app.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.True(t, app.Ready())
}

func TestApp_SearchToContentAndBack(t *testing.T) {
	app := newTestApp(t)

	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("golang")})
	assert.Equal(t, "golang", app.Query())

	step(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, app.Results(), 1)
	require.NoError(t, app.Err())

	step(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, messages.ViewDocContent, app.CurrentView())
	assert.Contains(t, app.View(), "text of alice")

	step(t, app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, messages.ViewSearch, app.CurrentView())
	assert.Contains(t, app.View(), "alice")
}

func TestApp_Details(t *testing.T) {
	app := newTestApp(t)
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("golang")})
	step(t, app, tea.KeyMsg{Type: tea.KeyEnter})

	step(t, app, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	assert.Equal(t, messages.ViewDocDetails, app.CurrentView())
	assert.Contains(t, app.View(), "Version:   2")

	// enter in details reads the document.
	step(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, messages.ViewDocContent, app.CurrentView())
}

func TestApp_Quit(t *testing.T) {
	app := newTestApp(t)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	_, cmd = app.Update(messages.Quit{})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestApp_ErrorOccurred(t *testing.T) {
	app := newTestApp(t)
	app.Update(messages.ErrorOccurred{Err: domain.ErrStoreUnavailable})
	assert.ErrorIs(t, app.Err(), domain.ErrStoreUnavailable)
	assert.Contains(t, app.View(), "Error: ")
}
