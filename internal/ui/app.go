// Package ui is the terminal client: a grid of slots streaming side by side.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	chatcontext "threex/internal/context"
	"threex/internal/db"
	"threex/internal/models"
	"threex/internal/orchestrator"
	"threex/internal/slots"
)

// ViewMode represents the current view state
type ViewMode int

const (
	ViewNormal ViewMode = iota
	ViewHelp
	ViewHistory
)

// Options wires the TUI to its backends.
type Options struct {
	Orchestrator *orchestrator.Orchestrator
	Board        *slots.Board
	Store        *db.Store // nil disables history
	Catalog      []models.CatalogEntry
	RemixModel   string
	ExportDir    string
	Temperature  *float64
	MaxTokens    *int
}

type Model struct {
	opts  Options
	board *slots.Board
	state slots.State

	updates     <-chan slots.State
	unsubscribe func()

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	markdown *markdownCache

	attachments *chatcontext.Set
	prompt      string
	chatID      string
	startedAt   time.Time

	// seq changes with every chat so late run results can be told apart.
	seq     int
	running map[slots.Lane]int
	ctx     context.Context
	cancel  context.CancelFunc

	view    ViewMode
	history *HistoryState

	status    string
	statusErr bool

	width, height int
	ready         bool
}

type stateMsg slots.State

// runDoneMsg reports that every slot of one orchestrator run has settled.
type runDoneMsg struct {
	seq    int
	lane   slots.Lane
	slot   int // set for a single-slot retry
	total  int
	failed int
}

func New(opts Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask every slot... (/help for commands)"
	ta.ShowLineNumbers = false
	ta.Prompt = "┃ "
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StatusWarn

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	updates, unsubscribe := opts.Board.Subscribe(64)
	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		opts:        opts,
		board:       opts.Board,
		state:       opts.Board.Snapshot(),
		updates:     updates,
		unsubscribe: unsubscribe,
		input:       ta,
		viewport:    vp,
		spinner:     sp,
		markdown:    newMarkdownCache(),
		attachments: &chatcontext.Set{},
		running:     make(map[slots.Lane]int),
		ctx:         ctx,
		cancel:      cancel,
		history:     NewHistoryState(),
		status:      "Type a prompt and press Enter. F1 for help.",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, waitForState(m.updates))
}

func waitForState(updates <-chan slots.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-updates
		if !ok {
			return nil
		}
		return stateMsg(st)
	}
}

// drain consumes one orchestrator run and reports how it ended.
func drain(seq int, lane slots.Lane, slot int, responses <-chan orchestrator.Response) tea.Cmd {
	return func() tea.Msg {
		done := runDoneMsg{seq: seq, lane: lane, slot: slot}
		for r := range responses {
			if !r.Done || r.Stale {
				continue
			}
			done.total++
			if r.Error != nil {
				done.failed++
			}
		}
		return done
	}
}

func (m *Model) setStatus(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = false
}

func (m *Model) setError(err error) {
	m.status = err.Error()
	m.statusErr = true
}

func (m Model) busy() bool {
	for _, n := range m.running {
		if n > 0 {
			return true
		}
	}
	return false
}

// layout sizes the viewport to the space left by header, input and status.
func (m *Model) layout() {
	inputHeight := m.input.Height() + 1
	m.input.SetWidth(m.width - 2)
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-inputHeight-3, 3)
}

// refresh re-renders the board into the viewport, following the bottom
// while something streams.
func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderBoard(m.viewport.Width))
	if atBottom && m.state.Aggregate(m.prompt).AnyGenerating {
		m.viewport.GotoBottom()
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	switch m.view {
	case ViewHelp:
		return m.renderHelp()
	case ViewHistory:
		return m.history.Render(m.width, m.height)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderStatus(),
		m.input.View(),
	)
}

func (m Model) renderHeader() string {
	title := TitleStyle.Render("threex") + "  " + selectionSummary(m.state.Selections)
	switch {
	case m.prompt != "":
		prompt := []rune(m.prompt)
		if limit := max(m.width-12, 10); len(prompt) > limit {
			prompt = append(prompt[:limit-1], '…')
		}
		return title + "\n" + PromptStyle.Render("> ") + string(prompt)
	case m.state.Aggregate(m.prompt).HeaderVisible:
		return title + "\n" + DimStyle.Render(fmt.Sprintf("%d slots ready. Ask anything.", len(m.state.Slots)))
	default:
		return title + "\n"
	}
}

func (m Model) renderStatus() string {
	text := m.status
	if m.statusErr {
		text = ErrorStyle.Render(text)
	}

	var hints []string
	if n := len(m.attachments.Items()); n > 0 {
		hints = append(hints, fmt.Sprintf("%d attached", n))
	}
	if m.attachments.SystemPrompt != "" {
		hints = append(hints, "system prompt")
	}
	if m.state.Aggregate(m.prompt).RemixEnabled {
		hints = append(hints, "/remix ready")
	}
	right := DimStyle.Render(joinHints(hints))

	gap := max(m.width-lipgloss.Width(text)-lipgloss.Width(right)-2, 1)
	return StatusBar.Width(m.width).Render(text + spaces(gap) + right)
}
