package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Digital-Shane/show-score/internal/core"
	"github.com/Digital-Shane/show-score/internal/tui/components"
	"github.com/Digital-Shane/show-score/internal/tui/theme"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Runner scores one series. *core.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, req core.Request) (*core.Result, error)
}

type loadEventMsg struct {
	event core.LoadEvent
}

type loadDoneMsg struct {
	result *core.Result
	err    error
}

type elapsedTickMsg time.Time

const tickInterval = 250 * time.Millisecond

// LoadProgressModel runs a pipeline request and shows season loading progress
// until the scored result is available.
type LoadProgressModel struct {
	runner  Runner
	request core.Request
	msgs    chan tea.Msg

	summary   core.LoadSummary
	lastErr   error
	result    *core.Result
	err       error
	canceled  bool
	done      bool
	startedAt time.Time
	elapsed   time.Duration

	width  int
	height int

	progress progress.Model
	theme    theme.Theme

	ctx    context.Context
	cancel context.CancelFunc
}

// NewLoadProgressModel creates a model that scores req with runner once
// started.
func NewLoadProgressModel(runner Runner, req core.Request, th theme.Theme) *LoadProgressModel {
	gradient := th.ProgressGradient()
	if len(gradient) < 2 {
		colors := th.Colors()
		gradient = []string{string(colors.Primary), string(colors.Accent)}
	}
	prog := progress.New(progress.WithGradient(gradient[0], gradient[1]))
	prog.Width = 50

	return &LoadProgressModel{
		runner:   runner,
		request:  req,
		summary:  core.LoadSummary{ShowID: req.ID},
		width:    80,
		height:   12,
		progress: prog,
		theme:    th,
	}
}

// Init starts the pipeline in the background.
func (m *LoadProgressModel) Init() tea.Cmd {
	if m.runner == nil {
		m.err = errors.New("no pipeline configured")
		m.done = true
		return tea.Quit
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.msgs = make(chan tea.Msg, 64)
	m.startedAt = time.Now()

	req := m.request
	ctx := m.ctx
	req.Progress = func(ev core.LoadEvent) {
		select {
		case m.msgs <- loadEventMsg{event: ev}:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(m.msgs)
		result, err := m.runner.Run(ctx, req)
		select {
		case m.msgs <- loadDoneMsg{result: result, err: err}:
		case <-ctx.Done():
		}
	}()

	return tea.Batch(m.waitForMsg(), m.tick())
}

func (m *LoadProgressModel) waitForMsg() tea.Cmd {
	if m.msgs == nil {
		return nil
	}
	msgs := m.msgs
	return func() tea.Msg {
		msg, ok := <-msgs
		if !ok {
			return loadDoneMsg{err: context.Canceled}
		}
		return msg
	}
}

func (m *LoadProgressModel) tick() tea.Cmd {
	return components.Tick(tickInterval, func(t time.Time) tea.Msg { return elapsedTickMsg(t) })
}

// Update processes Bubble Tea messages.
func (m *LoadProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.progress.Width = max(msg.Width-4, 10)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.canceled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case loadEventMsg:
		return m.handleLoadEvent(msg)
	case loadDoneMsg:
		return m.handleDone(msg)
	case elapsedTickMsg:
		if m.done {
			return m, nil
		}
		m.elapsed = time.Time(msg).Sub(m.startedAt).Round(time.Second)
		return m, m.tick()
	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *LoadProgressModel) handleLoadEvent(msg loadEventMsg) (tea.Model, tea.Cmd) {
	m.summary = msg.event.Summary
	if msg.event.Err != nil && !errors.Is(msg.event.Err, context.Canceled) {
		m.lastErr = msg.event.Err
	}
	cmd := m.progress.SetPercent(m.Ratio())
	return m, tea.Batch(cmd, m.waitForMsg())
}

func (m *LoadProgressModel) handleDone(msg loadDoneMsg) (tea.Model, tea.Cmd) {
	m.done = true
	m.result, m.err = msg.result, msg.err
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	return m, tea.Quit
}

// Ratio is the share of seasons processed so far.
func (m *LoadProgressModel) Ratio() float64 {
	if m.summary.TotalSeasons <= 0 {
		return 0
	}
	return min(float64(m.summary.ProcessedSeasons)/float64(m.summary.TotalSeasons), 1)
}

// Result returns the scored series once loading has finished.
func (m *LoadProgressModel) Result() (*core.Result, error) {
	return m.result, m.err
}

// Canceled reports whether the user aborted loading.
func (m *LoadProgressModel) Canceled() bool {
	return m.canceled
}

// View renders the progress screen.
func (m *LoadProgressModel) View() string {
	colors := m.theme.Colors()
	var b strings.Builder

	title := m.summary.Title
	if title == "" {
		title = m.summary.ShowID
	}
	header := m.theme.HeaderStyle().Width(m.width).Render(fmt.Sprintf("%s Scoring %s", m.theme.Icon("chart"), title))
	b.WriteString(header)
	b.WriteString("\n\n")

	b.WriteString(m.progress.View())
	b.WriteString("\n\n")

	label := lipgloss.NewStyle().Foreground(colors.Muted)
	phase := m.summary.Phase
	if phase == "" {
		phase = "Starting"
	}
	fmt.Fprintf(&b, "%s %s\n", label.Render("Phase:  "), phase)
	fmt.Fprintf(&b, "%s %d/%d\n", label.Render("Seasons:"), m.summary.ProcessedSeasons, m.summary.TotalSeasons)
	fmt.Fprintf(&b, "%s %d/%d\n", label.Render("Workers:"), m.summary.ActiveWorkers, m.summary.WorkerLimit)
	if m.summary.LastItem != "" {
		fmt.Fprintf(&b, "%s %s\n", label.Render("Last:   "), m.summary.LastItem)
	}
	fmt.Fprintf(&b, "%s %s\n", label.Render("Elapsed:"), m.elapsed)

	if m.summary.ErrorCount > 0 || m.lastErr != nil {
		errStyle := lipgloss.NewStyle().Foreground(colors.Error)
		line := fmt.Sprintf("%s %d season(s) failed", m.theme.Icon("error"), m.summary.ErrorCount)
		if m.lastErr != nil {
			line += ": " + truncate(m.lastErr.Error(), max(m.width-30, 20))
		}
		b.WriteString(errStyle.Render(line))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	status := m.theme.StatusBarStyle().Width(m.width).Render("Esc/Ctrl+C: Cancel")
	b.WriteString(status)
	return b.String()
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
