package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"traceview/internal/client"
	"traceview/internal/config"
	"traceview/internal/logging"
	"traceview/internal/store"
	"traceview/internal/types"
)

const (
	tickInterval     = 100 * time.Millisecond
	initialTraceLoad = 50
	minListWidth     = 24
	maxListWidth     = 40
	minViewportWidth = 20
	minContentHeight = 6
	wheelLines       = 3
)

type tickMsg time.Time

type initialTracesMsg struct {
	traces []types.TraceSummary
	err    error
}

type Model struct {
	session    *LiveSession
	stateStore store.UIStateStore
	log        logging.Logger

	viewport viewport.Model
	loader   spinner.Model
	follow   *FollowTracker

	groups          []types.TraceGroup
	cursor          int
	selectedTraceID string

	status          string
	bottomThreshold int

	width       int
	height      int
	ready       bool
	loading     bool
	lastVersion int
	scrollAgain bool
	streamDead  bool
}

func NewModel(cfg config.Settings, session *LiveSession, stateStore store.UIStateStore, log logging.Logger) Model {
	vp := viewport.New(minViewportWidth, minContentHeight-1)
	vp.SetContent("Waiting for trace activity.")

	loader := spinner.New()
	loader.Spinner = spinner.Dot

	m := Model{
		session:    session,
		stateStore: stateStore,
		log:        log,
		viewport:   vp,
		loader:     loader,
		follow:     NewFollowTracker(cfg.UI.WheelNoise()),
		status:     "connecting",
		loading:    true,

		bottomThreshold: cfg.UI.BottomThreshold(),
	}
	if stateStore != nil {
		if state, err := stateStore.Load(context.Background()); err == nil {
			m.follow.SetFollowing(state.FollowOrDefault())
			m.selectedTraceID = state.SelectedTraceID
		}
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loader.Tick, tickCmd(), loadTracesCmd(m.session.Client))
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func loadTracesCmd(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		traces, err := api.ListTracesWithRetry(ctx, time.Time{}, initialTraceLoad)
		return initialTracesMsg{traces: traces, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.rebuildContent()
		return m, nil
	case tea.KeyMsg:
		return m.updateKey(msg)
	case tea.MouseMsg:
		return m.updateMouse(msg)
	case initialTracesMsg:
		m.loading = false
		if msg.err != nil {
			m.status = "initial load failed: " + msg.err.Error()
			return m, nil
		}
		for _, trace := range msg.traces {
			m.session.Reconciler.Notify(trace.TraceID)
		}
		m.status = "live"
		return m, nil
	case tickMsg:
		m.consumeTick()
		return m, tickCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.loader, cmd = m.loader.Update(msg)
		return m, cmd
	}
	return m, nil
}

// consumeTick drains the live session's signals and refreshes the
// transcript when the buffer version moved. Polling on a tick keeps all
// state mutation on the UI goroutine.
func (m *Model) consumeTick() {
	if err := m.session.DrainError(); err != nil {
		m.status = "stream error: " + err.Error()
		m.streamDead = true
	}

	if added := m.session.DrainGrowth(); added > 0 {
		if m.follow.ItemsAdded(added) {
			// First of the two scrolls; heights settle after the next
			// content rebuild, so a second one follows.
			m.viewport.GotoBottom()
			m.scrollAgain = true
		}
	}

	if version := m.session.Reconciler.Version(); version != m.lastVersion {
		m.lastVersion = version
		m.groups = m.session.Reconciler.Groups()
		m.clampCursor()
		m.rebuildContent()
		if m.follow.Following() {
			m.viewport.GotoBottom()
		}
	} else if m.scrollAgain {
		m.viewport.GotoBottom()
		m.scrollAgain = false
	}
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.persistState()
		m.session.Close()
		return m, tea.Quit
	case "j", "down":
		if m.cursor < len(m.groups)-1 {
			m.cursor++
		}
		return m, nil
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "enter":
		if m.cursor >= 0 && m.cursor < len(m.groups) {
			m.selectedTraceID = m.groups[m.cursor].ID
			m.rebuildContent()
			m.viewport.GotoBottom()
			m.status = "viewing " + shortID(m.selectedTraceID)
		}
		return m, nil
	case "a", "esc":
		if m.selectedTraceID != "" {
			m.selectedTraceID = ""
			m.rebuildContent()
			m.status = "viewing all traces"
		}
		return m, nil
	case "G":
		m.viewport.GotoBottom()
		m.follow.JumpToLatest()
		m.status = "follow: on"
		return m, nil
	case "g":
		m.viewport.GotoTop()
		if m.follow.Following() {
			m.follow.Pause()
			m.status = "follow: paused"
		}
		return m, nil
	case "p":
		if m.follow.Following() {
			m.follow.Pause()
			m.status = "follow: paused"
		} else {
			m.follow.JumpToLatest()
			m.viewport.GotoBottom()
			m.status = "follow: on"
		}
		return m, nil
	case "c":
		m.session.Reconciler.Clear()
		m.follow.Reset()
		m.groups = nil
		m.cursor = 0
		m.rebuildContent()
		m.status = "cleared"
		return m, nil
	case "y":
		if m.cursor >= 0 && m.cursor < len(m.groups) {
			id := m.groups[m.cursor].ID
			if err := copyTextToClipboard(id); err != nil {
				m.status = "copy failed: " + err.Error()
			} else {
				m.status = "copied trace id"
			}
		}
		return m, nil
	case "r":
		if m.cursor >= 0 && m.cursor < len(m.groups) {
			m.session.Reconciler.Notify(m.groups[m.cursor].ID)
			m.status = "refreshing " + shortID(m.groups[m.cursor].ID)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.LineUp(wheelLines)
		if m.follow.HandleScroll(-wheelLines, m.nearBottom()) {
			m.status = "follow: paused"
		}
	case tea.MouseButtonWheelDown:
		m.viewport.LineDown(wheelLines)
		if m.follow.HandleScroll(wheelLines, m.nearBottom()) {
			m.status = "follow: on"
		}
	}
	return m, nil
}

func (m *Model) resize() {
	listWidth := m.sidebarWidth()
	contentWidth := m.width - listWidth - 1
	if contentWidth < minViewportWidth {
		contentWidth = minViewportWidth
	}
	contentHeight := m.height - 2
	if contentHeight < minContentHeight-1 {
		contentHeight = minContentHeight - 1
	}
	m.viewport.Width = contentWidth
	m.viewport.Height = contentHeight
}

func (m *Model) sidebarWidth() int {
	listWidth := m.width / 4
	if listWidth < minListWidth {
		listWidth = minListWidth
	}
	if listWidth > maxListWidth {
		listWidth = maxListWidth
	}
	return listWidth
}

// nearBottom treats positions within the configured threshold of the last
// line as "at the bottom", so follow resumes without a pixel-perfect stop.
func (m *Model) nearBottom() bool {
	maxOffset := m.viewport.TotalLineCount() - m.viewport.Height
	if maxOffset <= 0 {
		return true
	}
	return m.viewport.YOffset >= maxOffset-m.bottomThreshold
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.groups) {
		m.cursor = len(m.groups) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) visibleBlocks() []types.Block {
	if m.selectedTraceID == "" {
		return m.session.Reconciler.Blocks()
	}
	if group, ok := m.session.Reconciler.Group(m.selectedTraceID); ok {
		return group.Blocks
	}
	return nil
}

func (m *Model) rebuildContent() {
	m.viewport.SetContent(renderTranscript(m.visibleBlocks(), m.viewport.Width))
}

func (m *Model) persistState() {
	if m.stateStore == nil {
		return
	}
	following := m.follow.Following()
	state := types.UIState{
		SelectedTraceID: m.selectedTraceID,
		Follow:          &following,
	}
	if err := m.stateStore.Save(context.Background(), state); err != nil {
		m.log.Warn("persisting ui state failed", logging.F("err", err))
	}
}
