// Package ui renders analysis progress and results for the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"ptrperm/internal/pipeline"
)

type progressModel struct {
	title   string
	events  <-chan pipeline.Event
	spinner spinner.Model
	prog    progress.Model
	items   []funcItem
	index   map[string]int
	budget  int
	width   int
	done    bool
}

type funcItem struct {
	name      string
	status    pipeline.Status
	stage     pipeline.Stage
	iteration int
	// conflicts per iteration, most recent last
	history []int
}

// trendLen bounds the conflict history shown per function.
const trendLen = 6

type eventMsg pipeline.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that shows one line per
// function. budget is the iteration cap used to estimate progress of running
// functions. The model quits when events is closed.
func NewProgressModel(title string, funcs []string, budget int, events <-chan pipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]funcItem, 0, len(funcs))
	index := make(map[string]int, len(funcs))
	for i, name := range funcs {
		items = append(items, funcItem{name: name, status: pipeline.StatusQueued})
		index[name] = i
	}
	if budget <= 0 {
		budget = 1
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		budget:  budget,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(pipeline.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.done {
		header = "done: " + header
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}
	header += "  " + m.tally()

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	const statusWidth = 12
	const iterWidth = 32
	nameWidth := max(m.width-statusWidth-iterWidth-6, 20)

	for _, item := range m.items {
		status := statusLabel(item)
		fmt.Fprintf(&b, "  %s %s %s\n",
			styleStatus(item.status).Render(fmt.Sprintf("%12s", status)),
			pad(truncate(item.name, nameWidth), nameWidth),
			m.iterationLabel(item))
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev pipeline.Event) tea.Cmd {
	idx, ok := m.index[ev.Func]
	if !ok {
		return nil
	}
	item := &m.items[idx]
	item.status = ev.Status
	item.stage = ev.Stage
	if ev.Iteration > item.iteration {
		item.iteration = ev.Iteration
		item.history = append(item.history, ev.Conflicts)
		if len(item.history) > trendLen {
			item.history = item.history[len(item.history)-trendLen:]
		}
	}
	return m.prog.SetPercent(m.percent())
}

func (m *progressModel) percent() float64 {
	if len(m.items) == 0 {
		return 0
	}
	total := 0.0
	for _, item := range m.items {
		switch {
		case item.status.Final():
			total += 1.0
		case item.status == pipeline.StatusWorking:
			total += min(float64(item.iteration)/float64(m.budget), 0.95)
		}
	}
	return total / float64(len(m.items))
}

func statusLabel(item funcItem) string {
	switch item.status {
	case pipeline.StatusWorking:
		if item.stage == pipeline.StageValidate {
			return "validating"
		}
		return "refining"
	case pipeline.StatusWarning:
		return "stalled"
	default:
		return string(item.status)
	}
}

// tally counts finished functions for the header.
func (m *progressModel) tally() string {
	var done, stalled, failed int
	for _, item := range m.items {
		switch item.status {
		case pipeline.StatusDone:
			done++
		case pipeline.StatusWarning:
			stalled++
		case pipeline.StatusError:
			failed++
		}
	}
	out := fmt.Sprintf("%d/%d done", done+stalled+failed, len(m.items))
	if stalled > 0 {
		out += fmt.Sprintf(", %d stalled", stalled)
	}
	if failed > 0 {
		out += fmt.Sprintf(", %d failed", failed)
	}
	return out
}

// iterationLabel renders "iter 3/20  conflicts 5→2→1". Iterations cut off
// by trendLen are shown as a leading "…".
func (m *progressModel) iterationLabel(item funcItem) string {
	if item.iteration == 0 {
		return ""
	}
	trend := make([]string, len(item.history))
	for i, n := range item.history {
		trend[i] = fmt.Sprint(n)
	}
	label := strings.Join(trend, "→")
	if item.iteration > len(item.history) {
		label = "…" + label
	}
	return fmt.Sprintf("iter %d/%d  conflicts %s", item.iteration, m.budget, label)
}

func styleStatus(status pipeline.Status) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(statusColor(status))
}

func statusColor(status pipeline.Status) lipgloss.Color {
	switch status {
	case pipeline.StatusDone:
		return lipgloss.Color("2")
	case pipeline.StatusWarning:
		return lipgloss.Color("3")
	case pipeline.StatusError:
		return lipgloss.Color("1")
	case pipeline.StatusWorking:
		return lipgloss.Color("6")
	default:
		return lipgloss.Color("7")
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}

func pad(value string, width int) string {
	return runewidth.FillRight(value, width)
}
