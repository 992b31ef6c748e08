package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotui/internal/formatter"
	"github.com/desertthunder/spotui/internal/models"
	"github.com/desertthunder/spotui/internal/playback"
)

const (
	seekStep    = 10000
	volumeStep  = 0.1
	searchLimit = 20
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	NowPlayingView ViewState = iota
	SearchView
)

// Player is the coordinator surface the TUI drives.
type Player interface {
	State() playback.State
	Notifications() <-chan playback.Notification
	Activate(ctx context.Context) error
	Toggle(ctx context.Context) error
	Seek(ctx context.Context, positionMs int) error
	SetVolume(ctx context.Context, volume float64) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	SetCurrentTrack(uri string)
}

// Searcher finds tracks for the search view.
type Searcher interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error)
}

var _ Player = (*playback.Coordinator)(nil)

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	player   Player
	library  Searcher
	width    int
	height   int
	state    playback.State
	status   string
	failed   bool
	query    string
	pending  bool
	input    textinput.Model
	results  list.Model
	focused  bool // results list has focus instead of the input
	progress progress.Model
	help     help.Model
	keys     keyMap
}

// NewModel creates a new TUI model. library may be nil, which disables search.
func NewModel(ctx context.Context, player Player, library Searcher) *Model {
	input := textinput.New()
	input.Placeholder = "Search tracks"
	input.Prompt = "/ "
	input.CharLimit = 120

	results := list.New(nil, list.NewDefaultDelegate(), 76, 20)
	results.Title = "Results"
	results.SetShowHelp(false)
	results.SetFilteringEnabled(false)

	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 60

	return &Model{
		ctx:      ctx,
		view:     NowPlayingView,
		player:   player,
		library:  library,
		state:    player.State(),
		input:    input,
		results:  results,
		progress: bar,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Run starts a full-screen program over [NewModel] and blocks until it exits.
func Run(ctx context.Context, player Player, library Searcher) error {
	p := tea.NewProgram(NewModel(ctx, player, library), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// Init starts listening for coordinator notifications.
func (m *Model) Init() tea.Cmd {
	return m.waitForNotification()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(10, min(msg.Width-8, 80))
		m.results.SetSize(max(20, msg.Width-4), max(5, msg.Height-10))
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.view {
		case NowPlayingView:
			return m.handleNowPlayingKeys(msg)
		case SearchView:
			return m.handleSearchKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateFocused(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgNotification:
		n := msg.data.(playback.Notification)
		m.state = m.player.State()
		switch n.Kind {
		case playback.ErrorReported:
			if n.Err != nil {
				m.setError(n.Err.Error())
			}
		case playback.Connected:
			m.setStatus("Connected")
		case playback.TrackChanged:
			if !m.failed {
				m.status = ""
			}
		}
		return m, m.waitForNotification()

	case MsgNotificationsClosed:
		m.state = m.player.State()
		m.setError("player closed")
		return m, nil

	case MsgSearchResults:
		res := msg.data.(searchResults)
		if res.query != m.query {
			return m, nil
		}
		m.pending = false
		if res.err != nil {
			m.setError(fmt.Sprintf("search: %v", res.err))
			return m, nil
		}
		m.status = fmt.Sprintf("%d results for %q", len(res.tracks), res.query)
		m.failed = false
		cmd := m.results.SetItems(trackItems(res.tracks))
		m.results.Select(0)
		if len(res.tracks) > 0 {
			m.focusResults()
		}
		return m, cmd

	case MsgCommandDone:
		res := msg.data.(commandResult)
		m.state = m.player.State()
		if res.err != nil {
			m.setError(fmt.Sprintf("%s: %v", res.name, res.err))
		} else if m.failed {
			m.status = ""
			m.failed = false
		}
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("spotui"))
	b.WriteString("\n")
	b.WriteString(styles.panel.Render(m.renderNowPlaying()))
	b.WriteString("\n")

	if m.view == SearchView {
		b.WriteString("\n")
		b.WriteString(m.renderSearch())
		b.WriteString("\n")
	}

	if m.status != "" {
		style := styles.ok
		if m.failed {
			style = styles.err
		}
		b.WriteString("\n")
		b.WriteString(style.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.helpKeys()))
	return b.String()
}

func (m *Model) handleNowPlayingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	obs := m.state.Observed

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		return m, m.command("toggle", m.player.Toggle)
	case key.Matches(msg, m.keys.next):
		return m, m.command("next", m.player.Next)
	case key.Matches(msg, m.keys.previous):
		return m, m.command("previous", m.player.Previous)
	case key.Matches(msg, m.keys.activate):
		return m, m.command("activate", m.player.Activate)
	case key.Matches(msg, m.keys.forward):
		pos := obs.PositionMs + seekStep
		if obs.DurationMs > 0 {
			pos = min(pos, obs.DurationMs)
		}
		return m, m.command("seek", func(ctx context.Context) error { return m.player.Seek(ctx, pos) })
	case key.Matches(msg, m.keys.rewind):
		pos := max(obs.PositionMs-seekStep, 0)
		return m, m.command("seek", func(ctx context.Context) error { return m.player.Seek(ctx, pos) })
	case key.Matches(msg, m.keys.louder):
		v := min(obs.Volume+volumeStep, 1)
		return m, m.command("volume", func(ctx context.Context) error { return m.player.SetVolume(ctx, v) })
	case key.Matches(msg, m.keys.quieter):
		v := max(obs.Volume-volumeStep, 0)
		return m, m.command("volume", func(ctx context.Context) error { return m.player.SetVolume(ctx, v) })
	case key.Matches(msg, m.keys.search):
		if m.library == nil {
			m.setError("search is unavailable")
			return m, nil
		}
		m.view = SearchView
		return m, m.focusInput()
	}
	return m, nil
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.focused {
		switch {
		case key.Matches(msg, m.keys.back):
			m.input.Blur()
			m.view = NowPlayingView
			return m, nil
		case key.Matches(msg, m.keys.enter):
			return m, m.search(m.input.Value())
		case key.Matches(msg, m.keys.focus):
			if len(m.results.Items()) > 0 {
				m.focusResults()
			}
			return m, nil
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.focus), key.Matches(msg, m.keys.search):
		return m, m.focusInput()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.results.SelectedItem().(trackItem); ok {
			m.player.SetCurrentTrack(item.track.URI)
			m.setStatus(fmt.Sprintf("Up next: %s", item.track))
		}
		return m, nil
	case key.Matches(msg, m.keys.toggle):
		return m, m.command("toggle", m.player.Toggle)
	}

	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, cmd
}

func (m *Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != SearchView {
		return m, nil
	}

	var cmd tea.Cmd
	if m.focused {
		m.results, cmd = m.results.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m *Model) focusInput() tea.Cmd {
	m.focused = false
	return m.input.Focus()
}

func (m *Model) focusResults() {
	m.focused = true
	m.input.Blur()
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.failed = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.failed = true
}

// search issues a query. A blank query clears the results without calling the API.
func (m *Model) search(raw string) tea.Cmd {
	q := strings.TrimSpace(raw)
	m.query = q
	if q == "" {
		m.pending = false
		return m.results.SetItems(nil)
	}

	m.pending = true
	return func() tea.Msg {
		tracks, err := m.library.SearchTracks(m.ctx, q, searchLimit)
		return searchResultsMsg(q, tracks, err)
	}
}

func (m *Model) command(name string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return commandDoneMsg(name, fn(m.ctx))
	}
}

func (m *Model) waitForNotification() tea.Cmd {
	ch := m.player.Notifications()
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return notificationsClosedMsg()
		}
		return notificationMsg(n)
	}
}

func (m *Model) renderNowPlaying() string {
	obs := m.state.Observed

	var lines []string
	if obs.Track.Name == "" {
		lines = append(lines, styles.help.Render("Nothing playing"))
	} else {
		icon := "⏸"
		if obs.IsPlaying {
			icon = "▶"
		}
		lines = append(lines, fmt.Sprintf("%s %s", icon, styles.track.Render(obs.Track.Name)))

		sub := obs.Track.Artist
		if obs.Track.Album != "" {
			sub = fmt.Sprintf("%s • %s", sub, obs.Track.Album)
		}
		lines = append(lines, sub)
	}

	lines = append(lines, "")
	lines = append(lines, m.progress.ViewAs(obs.Progress()))
	lines = append(lines, fmt.Sprintf("%s / %s", formatter.Duration(obs.PositionMs), formatter.Duration(obs.DurationMs)))

	device := m.state.Node.String()
	if !obs.IsReady {
		device = "offline"
	}
	lines = append(lines, styles.help.Render(fmt.Sprintf("device %s • volume %d%%", device, int(obs.Volume*100+0.5))))

	if m.state.Degraded {
		lines = append(lines, styles.warn.Render("Spotify Premium is required to control playback"))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderSearch() string {
	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	switch {
	case m.pending:
		b.WriteString(styles.help.Render("Searching..."))
	case len(m.results.Items()) == 0 && m.query != "":
		b.WriteString(styles.help.Render("No results"))
	case len(m.results.Items()) > 0:
		b.WriteString(m.results.View())
	}
	return b.String()
}

func (m *Model) helpKeys() []key.Binding {
	if m.view == NowPlayingView {
		return []key.Binding{
			m.keys.toggle, m.keys.next, m.keys.previous, m.keys.rewind, m.keys.forward,
			m.keys.quieter, m.keys.louder, m.keys.activate, m.keys.search, m.keys.quit,
		}
	}
	if m.focused {
		return []key.Binding{m.keys.enter, m.keys.toggle, m.keys.back, m.keys.quit}
	}

	enter := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "search"))
	return []key.Binding{enter, m.keys.focus, m.keys.back}
}
