package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tessro/encore/internal/app"
	"github.com/tessro/encore/internal/cache"
	"github.com/tessro/encore/internal/core"
	apperrors "github.com/tessro/encore/internal/errors"
	"github.com/tessro/encore/internal/notify"
	"github.com/tessro/encore/internal/playback"
	"github.com/tessro/encore/internal/tui/components"
	"github.com/tessro/encore/internal/tui/styles"
)

// Panel represents which panel is focused
type Panel int

const (
	PanelNowPlaying Panel = iota
	PanelQueue
	PanelCache
	PanelHistory

	panelCount
)

const (
	searchDebounce = 300 * time.Millisecond
	searchLimit    = 10
	historyLimit   = 20
	toastDuration  = 5 * time.Second
	volumeStep     = 0.05
	actionTimeout  = 30 * time.Second
)

// Model is the main TUI model
type Model struct {
	app         *app.App
	refreshRate time.Duration
	states      <-chan core.PlaybackState
	notes       <-chan notify.Notification
	now         func() time.Time

	width        int
	height       int
	focusedPanel Panel

	// State
	state   core.PlaybackState
	queue   core.Queue
	cached  []cache.CachedSong
	history []core.HistoryEntry

	// Components
	nowPlaying  *components.NowPlaying
	queueView   *components.Queue
	cacheView   *components.Cache
	historyView *components.History

	// Overlays
	showHelp bool

	// Search state
	showSearch    bool
	searchInput   textinput.Model
	searchResults []core.Song
	searchCursor  int
	searching     bool
	lastQuery     string
	searchErr     error

	// Toasts: errors and notifications
	toast       *notify.Notification
	toastExpiry time.Time

	quitting bool
}

// NewModel creates a new TUI model. states is usually the channel returned by
// Engine.Subscribe and notes a notify.Channel wired into the App.
func NewModel(a *app.App, states <-chan core.PlaybackState, notes <-chan notify.Notification) Model {
	ti := textinput.New()
	ti.Placeholder = "Search songs..."
	ti.CharLimit = 100
	ti.Width = 50

	refresh := time.Duration(a.Config().TUI.RefreshInterval) * time.Millisecond
	if refresh <= 0 {
		refresh = 500 * time.Millisecond
	}

	return Model{
		app:          a,
		refreshRate:  refresh,
		states:       states,
		notes:        notes,
		now:          time.Now,
		focusedPanel: PanelNowPlaying,
		nowPlaying:   components.NewNowPlaying(),
		queueView:    components.NewQueue(),
		cacheView:    components.NewCache(),
		historyView:  components.NewHistory(),
		searchInput:  ti,
	}
}

// Messages
type tickMsg time.Time
type stateMsg core.PlaybackState
type queueMsg core.Queue
type cacheMsg []cache.CachedSong
type historyMsg []core.HistoryEntry
type noteMsg notify.Notification
type errMsg struct{ err error }
type refreshAfterActionMsg struct{}

type searchDebounceMsg struct{ query string }
type searchResultsMsg struct {
	query   string
	results []core.Song
	err     error
}

// Commands
func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForState(ch <-chan core.PlaybackState) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return stateMsg(st)
	}
}

func waitForNote(ch <-chan notify.Notification) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noteMsg(n)
	}
}

func (m Model) fetchState() tea.Cmd {
	return func() tea.Msg {
		st, err := m.app.Engine.GetState(context.Background())
		if err != nil {
			return errMsg{err}
		}
		return stateMsg(*st)
	}
}

func (m Model) fetchQueue() tea.Cmd {
	return func() tea.Msg {
		return queueMsg(m.app.Queue.Snapshot())
	}
}

func (m Model) fetchCache() tea.Cmd {
	return func() tea.Msg {
		return cacheMsg(m.app.Cache.Snapshot())
	}
}

func (m Model) fetchHistory() tea.Cmd {
	return func() tea.Msg {
		history, err := m.app.Engine.GetRecentlyPlayed(context.Background(), historyLimit)
		if err != nil {
			return errMsg{err}
		}
		return historyMsg(history)
	}
}

func (m Model) refreshAll() tea.Cmd {
	return tea.Batch(m.fetchState(), m.fetchQueue(), m.fetchCache(), m.fetchHistory())
}

// action runs fn off the update loop and refreshes the panels afterwards.
func (m Model) action(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			return errMsg{err}
		}
		return refreshAfterActionMsg{}
	}
}

func (m Model) doSearch(query string) tea.Cmd {
	return func() tea.Msg {
		if query == "" {
			return searchResultsMsg{query: query}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		results, err := m.app.Search(ctx, query, searchLimit)
		return searchResultsMsg{query: query, results: results, err: err}
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.tick(),
		m.refreshAll(),
		waitForState(m.states),
		waitForNote(m.notes),
	)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.expireToast()
		return m, tea.Batch(m.tick(), m.fetchQueue())

	case stateMsg:
		var cmds []tea.Cmd
		changed := songID(m.state.CurrentSong) != songID(msg.CurrentSong)
		if changed {
			cmds = append(cmds, m.fetchQueue())
		}
		if changed || (msg.IsPlaying && !m.state.IsPlaying) {
			cmds = append(cmds, m.fetchHistory())
		}
		m.state = core.PlaybackState(msg)
		cmds = append(cmds, waitForState(m.states))
		return m, tea.Batch(cmds...)

	case queueMsg:
		m.queue = core.Queue(msg)
		m.queueView.Clamp(m.queue.Len())
		return m, nil

	case cacheMsg:
		m.cached = msg
		return m, nil

	case historyMsg:
		m.history = msg
		return m, nil

	case noteMsg:
		n := notify.Notification(msg)
		m.showToast(n)
		// Finished downloads change the cache panel.
		return m, tea.Batch(waitForNote(m.notes), m.fetchCache())

	case errMsg:
		m.showToast(notify.Notification{
			Level:   notify.LevelError,
			Title:   "Error",
			Message: errorText(msg.err),
		})
		return m, nil

	case refreshAfterActionMsg:
		return m, m.refreshAll()

	case searchDebounceMsg:
		if msg.query == m.searchInput.Value() && msg.query != m.lastQuery {
			m.lastQuery = msg.query
			m.searching = true
			return m, m.doSearch(msg.query)
		}

	case searchResultsMsg:
		if msg.query != m.lastQuery {
			return m, nil
		}
		m.searching = false
		m.searchResults = msg.results
		m.searchErr = msg.err
		m.searchCursor = 0
		return m, nil
	}

	// Forward other messages to textinput when search is active
	if m.showSearch {
		var inputCmd tea.Cmd
		m.searchInput, inputCmd = m.searchInput.Update(msg)
		return m, inputCmd
	}

	return m, nil
}

func (m *Model) showToast(n notify.Notification) {
	m.toast = &n
	m.toastExpiry = m.now().Add(toastDuration)
}

func (m *Model) expireToast() {
	if m.toast != nil && m.now().After(m.toastExpiry) {
		m.toast = nil
	}
}

func errorText(err error) string {
	if s := apperrors.GetSuggestion(err); s != "" {
		return err.Error() + ". " + s
	}
	return err.Error()
}

func songID(s *core.Song) string {
	if s == nil {
		return ""
	}
	return s.ID
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.showHelp {
		switch msg.String() {
		case "?", "esc":
			m.showHelp = false
		}
		return m, nil
	}

	if m.showSearch {
		return m.handleSearchKeyPress(msg)
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "?":
		m.showHelp = true
		return m, nil

	case "/":
		m.showSearch = true
		m.searchInput.SetValue("")
		m.searchInput.Focus()
		m.searchResults = nil
		m.searchCursor = 0
		m.lastQuery = ""
		m.searchErr = nil
		return m, textinput.Blink

	case "tab":
		m.focusedPanel = (m.focusedPanel + 1) % panelCount
		return m, nil

	case "shift+tab":
		m.focusedPanel = (m.focusedPanel + panelCount - 1) % panelCount
		return m, nil

	case "esc":
		m.toast = nil
		return m, nil
	}

	engine := m.app.Engine

	// Playback controls
	switch msg.String() {
	case " ":
		return m, m.action(engine.TogglePlayPause)
	case "n":
		return m, m.action(engine.Next)
	case "p":
		return m, m.action(engine.Previous)
	case "right", "l":
		return m, m.action(func(ctx context.Context) error {
			return engine.SeekBy(ctx, playback.DefaultSeekStep)
		})
	case "left", "h":
		return m, m.action(func(ctx context.Context) error {
			return engine.SeekBy(ctx, -playback.DefaultSeekStep)
		})
	case "+", "=":
		return m, m.action(m.volumeBy(volumeStep))
	case "-":
		return m, m.action(m.volumeBy(-volumeStep))
	case "s":
		return m, m.action(func(context.Context) error {
			m.app.Queue.SetShuffle(!m.app.Queue.ShuffleEnabled())
			return nil
		})
	case "o":
		return m, m.action(m.app.PlayCached)
	case "D":
		return m, m.downloadCurrent()
	case "y":
		return m, m.copyLink()
	case "r":
		return m, m.refreshAll()
	}

	// Panel-specific keys
	switch m.focusedPanel {
	case PanelQueue:
		return m.handleQueueKey(msg)
	case PanelCache:
		return m.handleCacheKey(msg)
	}

	return m, nil
}

func (m Model) handleQueueKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	q := m.app.Queue
	selected := m.queueView.Selected()

	switch msg.String() {
	case "j", "down":
		m.queueView.SelectNext(m.queue.Len())
	case "k", "up":
		m.queueView.SelectPrev()
	case "enter":
		return m, m.action(func(ctx context.Context) error {
			if err := q.Jump(selected); err != nil {
				return err
			}
			return m.app.Engine.Play(ctx)
		})
	case "x", "delete":
		return m, m.action(func(context.Context) error {
			return q.RemoveAt(selected)
		})
	case "J":
		if selected < m.queue.Len()-1 {
			m.queueView.Select(selected + 1)
			return m, m.action(func(context.Context) error {
				return q.Reorder(selected, selected+1)
			})
		}
	case "K":
		if selected > 0 {
			m.queueView.Select(selected - 1)
			return m, m.action(func(context.Context) error {
				return q.Reorder(selected, selected-1)
			})
		}
	case "c":
		return m, m.action(func(context.Context) error {
			q.Clear()
			return nil
		})
	}
	return m, nil
}

func (m Model) handleCacheKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	selected := m.cacheView.Selected()

	switch msg.String() {
	case "j", "down":
		m.cacheView.SelectNext(len(m.cached))
	case "k", "up":
		m.cacheView.SelectPrev()
	case "enter":
		if selected < len(m.cached) {
			song := m.cached[selected].Metadata
			return m, m.action(func(ctx context.Context) error {
				return m.app.PlaySong(ctx, song, false)
			})
		}
	case "x", "delete":
		if selected < len(m.cached) {
			id := m.cached[selected].ID
			return m, m.action(func(ctx context.Context) error {
				return m.app.Downloads.Remove(ctx, id)
			})
		}
	}
	return m, nil
}

func (m Model) volumeBy(delta float64) func(context.Context) error {
	return func(ctx context.Context) error {
		return m.app.Engine.SetVolume(ctx, m.state.Volume+delta)
	}
}

func (m Model) downloadCurrent() tea.Cmd {
	song := m.state.CurrentSong
	if song == nil {
		return nil
	}
	s := *song
	return m.action(func(ctx context.Context) error {
		results, err := m.app.Download(ctx, []core.Song{s})
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Err != nil {
				return r.Err
			}
		}
		notify.Info(m.app.Notifier, "Downloaded", s.Name)
		return nil
	})
}

// SongLink returns the link copied for a song: its best audio URL, falling
// back to the album page.
func SongLink(s *core.Song) string {
	if s == nil {
		return ""
	}
	if u := s.BestDownloadURL(); u != "" {
		return u
	}
	return s.Album.URL
}

func (m Model) copyLink() tea.Cmd {
	link := SongLink(m.state.CurrentSong)
	if link == "" {
		return nil
	}
	return func() tea.Msg {
		if err := clipboard.WriteAll(link); err != nil {
			return errMsg{fmt.Errorf("copy link: %w", err)}
		}
		return noteMsg(notify.Notification{Level: notify.LevelInfo, Title: "Copied", Message: link})
	}
}

func (m Model) handleSearchKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg.String() {
	case "esc":
		m.showSearch = false
		m.searchInput.Blur()
		return m, nil

	case "enter":
		if m.searchCursor < len(m.searchResults) {
			results, start := m.searchResults, m.searchCursor
			m.showSearch = false
			m.searchInput.Blur()
			return m, m.action(func(ctx context.Context) error {
				return m.app.PlaySongs(ctx, results, start)
			})
		}
		return m, nil

	case "up", "ctrl+p":
		if m.searchCursor > 0 {
			m.searchCursor--
		}
		return m, nil

	case "down", "ctrl+n":
		if m.searchCursor < len(m.searchResults)-1 {
			m.searchCursor++
		}
		return m, nil

	case "ctrl+q", "ctrl+e":
		if m.searchCursor < len(m.searchResults) {
			song := m.searchResults[m.searchCursor]
			next := msg.String() == "ctrl+e"
			m.showSearch = false
			m.searchInput.Blur()
			return m, m.action(func(ctx context.Context) error {
				_, err := m.app.Enqueue(ctx, []core.Song{song}, next)
				return err
			})
		}
		return m, nil
	}

	var inputCmd tea.Cmd
	m.searchInput, inputCmd = m.searchInput.Update(msg)
	cmds = append(cmds, inputCmd)

	if query := m.searchInput.Value(); query != m.lastQuery {
		cmds = append(cmds, tea.Tick(searchDebounce, func(time.Time) tea.Msg {
			return searchDebounceMsg{query: query}
		}))
	}

	return m, tea.Batch(cmds...)
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.width == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	if m.showSearch {
		return m.renderSearch()
	}

	// Left: Now Playing over Queue. Right: Offline cache over History.
	leftWidth := m.width * 60 / 100
	rightWidth := m.width - leftWidth - 2
	topHeight := m.height * 40 / 100
	bottomHeight := m.height - topHeight - 2

	nowPlaying := m.nowPlaying.Render(&m.state, m.queue.ShuffleEnabled, leftWidth-2, topHeight-2, m.focusedPanel == PanelNowPlaying)
	queueView := m.queueView.Render(&m.queue, leftWidth-2, bottomHeight-2, m.focusedPanel == PanelQueue)
	cacheView := m.cacheView.Render(m.cached, m.app.Downloads.IsDownloading(), rightWidth-2, topHeight-2, m.focusedPanel == PanelCache)
	historyView := m.historyView.Render(m.history, rightWidth-2, bottomHeight-2, m.focusedPanel == PanelHistory)

	leftCol := lipgloss.JoinVertical(lipgloss.Left, nowPlaying, queueView)
	rightCol := lipgloss.JoinVertical(lipgloss.Left, cacheView, historyView)
	main := lipgloss.JoinHorizontal(lipgloss.Top, leftCol, rightCol)

	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) renderStatusBar() string {
	status := styles.Dim.Render("q:quit  ?:help  /:search  space:play/pause  n/p:next/prev  ←/→:seek  +/-:volume  tab:panel")

	if m.toast != nil {
		text := m.toast.Title
		if m.toast.Message != "" {
			text += ": " + m.toast.Message
		}
		switch m.toast.Level {
		case notify.LevelError:
			status = styles.ErrorText.Render(text)
		case notify.LevelWarning:
			status = styles.Paused.Render(text)
		default:
			status = styles.Playing.Render(text)
		}
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(status)
}

func (m Model) renderHelp() string {
	title := "encore - Keyboard Shortcuts"
	divider := strings.Repeat("═", len(title))

	help := `
  ` + title + `
  ` + divider + `

  Global
  ──────
  q, Ctrl+C    Quit
  ?            Toggle help
  /            Search
  Tab          Next panel
  Shift+Tab    Previous panel
  r            Refresh
  y            Copy song link

  Playback
  ────────
  Space        Play/Pause
  n            Next song
  p            Previous song
  ←/→          Seek 10s
  +/=          Volume up
  -            Volume down
  s            Toggle shuffle
  o            Play downloaded songs
  D            Download current song

  Queue Panel
  ───────────
  j/↓ k/↑      Select
  Enter        Play selected
  x            Remove
  J/K          Move down/up
  c            Clear queue

  Offline Panel
  ─────────────
  j/↓ k/↑      Select
  Enter        Play
  x            Delete download

  Press ? or Esc to close
`

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.BorderStyle.Render(help))
}

func (m Model) renderSearch() string {
	var b strings.Builder

	b.WriteString(styles.Highlight.Render("Search"))
	if m.state.Offline {
		b.WriteString("  " + styles.SourceBadge(false, true) + styles.Dim.Render(" downloaded songs only"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.searchInput.View())
	b.WriteString("\n\n")

	switch {
	case m.searchErr != nil:
		b.WriteString(styles.ErrorText.Render("Error: " + errorText(m.searchErr)))
	case m.searching:
		b.WriteString(styles.Muted.Render("Searching..."))
	case len(m.searchResults) == 0 && m.searchInput.Value() != "" && m.lastQuery != "":
		b.WriteString(styles.Muted.Render("No results found"))
	default:
		for i, song := range m.searchResults {
			line := song.Name
			if artists := song.ArtistNames(); artists != "" {
				line += " " + styles.Muted.Render(artists)
			}
			if m.app.Cache.IsCached(song.ID) {
				line += " " + styles.Badge.Render("✓")
			}

			if i == m.searchCursor {
				b.WriteString(styles.Selected.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(styles.Muted.Render("↑/↓:nav  Enter:play  Ctrl+q:queue  Ctrl+e:play next  Esc:close"))

	content := lipgloss.NewStyle().
		Width(64).
		Padding(1, 2).
		Render(b.String())

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.FocusedBorder.Render(content))
}

// Run starts the TUI on an opened, started App. notes receives the App's
// notifications for display as toasts and may be nil.
func Run(a *app.App, notes <-chan notify.Notification) error {
	styles.Use(a.Config().TUI.Theme)

	states, unsubscribe := a.Engine.Subscribe()
	defer unsubscribe()

	p := tea.NewProgram(NewModel(a, states, notes), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
