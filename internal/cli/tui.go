package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/mmdoc/pkg/pipeline"
)

// List styles
var (
	listDoneStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	listWarnStyle    = lipgloss.NewStyle().Foreground(colorYellow)
	listPendingStyle = lipgloss.NewStyle().Foreground(colorDim)
	listNameStyle    = lipgloss.NewStyle().Foreground(colorWhite)
)

// maxListed bounds the page rows shown below the progress bar.
const maxListed = 12

// =============================================================================
// Build events
// =============================================================================

// buildEvent is sent from the build goroutine to the progress model.
type buildEvent struct {
	scanned []string
	page    *pipeline.PageResult
}

type buildDoneMsg struct{}

// =============================================================================
// BuildProgressModel - site build progress
// =============================================================================

type pageRow struct {
	name     string
	done     bool
	diagrams int
	warnings int
}

// BuildProgressModel is the bubbletea model shown while a site builds.
type BuildProgressModel struct {
	Title string

	events  <-chan buildEvent
	spinner spinner.Model
	bar     progress.Model
	rows    []pageRow
	index   map[string]int
	built   int
	width   int
	done    bool
	quit    bool
}

// NewBuildProgressModel creates a progress model fed by events.
func NewBuildProgressModel(title string, events <-chan buildEvent) *BuildProgressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styleIconSpinner

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 60

	return &BuildProgressModel{
		Title:   title,
		events:  events,
		spinner: sp,
		bar:     bar,
		index:   map[string]int{},
		width:   80,
	}
}

func (m *BuildProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *BuildProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case buildEvent:
		m.apply(msg)
		return m, m.listen()
	case buildDoneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quit = true
			return m, tea.Quit
		}
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
			m.bar.Width = max(msg.Width-4, 20)
		}
	}
	return m, nil
}

func (m *BuildProgressModel) apply(ev buildEvent) {
	if ev.scanned != nil {
		m.rows = make([]pageRow, len(ev.scanned))
		for i, name := range ev.scanned {
			m.rows[i] = pageRow{name: name}
			m.index[name] = i
		}
	}
	if p := ev.page; p != nil {
		i, ok := m.index[p.Name]
		if !ok {
			return
		}
		m.rows[i].done = true
		m.rows[i].diagrams = p.Diagrams
		m.rows[i].warnings = p.Warnings
		m.built++
	}
}

// Percent returns the fraction of pages built.
func (m *BuildProgressModel) Percent() float64 {
	if len(m.rows) == 0 {
		return 0
	}
	return float64(m.built) / float64(len(m.rows))
}

func (m *BuildProgressModel) View() string {
	var b strings.Builder

	header := fmt.Sprintf("%s %s", m.spinner.View(), m.Title)
	if m.done {
		header = styleIconSuccess.Render(iconSuccess) + " " + m.Title
	}
	b.WriteString(StyleTitle.Render(header))
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %d/%d pages", m.built, len(m.rows))))
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(m.Percent()))
	b.WriteString("\n\n")

	nameWidth := max(m.width-24, 20)
	for _, row := range m.visibleRows() {
		var status string
		switch {
		case !row.done:
			status = listPendingStyle.Render(fmt.Sprintf("%10s", "queued"))
		case row.warnings > 0:
			status = listWarnStyle.Render(fmt.Sprintf("%10s", fmt.Sprintf("%d warn", row.warnings)))
		default:
			status = listDoneStyle.Render(fmt.Sprintf("%10s", "done"))
		}
		line := fmt.Sprintf("  %s  %s", status, listNameStyle.Render(truncate(row.name, nameWidth)))
		if row.done && row.diagrams > 0 {
			line += StyleDim.Render(fmt.Sprintf(" · %d diagrams", row.diagrams))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if hidden := len(m.rows) - maxListed; hidden > 0 {
		b.WriteString(StyleDim.Render(fmt.Sprintf("  … %d more", hidden)))
		b.WriteString("\n")
	}
	return b.String()
}

// visibleRows lists pending pages first so the tail of a long build stays visible.
func (m *BuildProgressModel) visibleRows() []pageRow {
	rows := make([]pageRow, 0, min(len(m.rows), maxListed))
	for _, pending := range []bool{true, false} {
		for _, row := range m.rows {
			if len(rows) == maxListed {
				return rows
			}
			if row.done != pending {
				rows = append(rows, row)
			}
		}
	}
	return rows
}

func (m *BuildProgressModel) listen() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return buildDoneMsg{}
		}
		return ev
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return "…" + string(r[len(r)-width+1:])
}

// =============================================================================
// Runner
// =============================================================================

// runBuildWithUI builds the site while the progress model renders to stderr.
// Quitting the view cancels the build.
func runBuildWithUI(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan buildEvent, 256)
	send := func(ev buildEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
	opts.OnScan = func(pages []string) { send(buildEvent{scanned: pages}) }
	opts.OnPage = func(p pipeline.PageResult) { send(buildEvent{page: &p}) }

	type outcome struct {
		res *pipeline.Result
		err error
	}
	outcomeCh := make(chan outcome, 1)
	go func() {
		res, err := runner.BuildSite(ctx, opts)
		close(events)
		outcomeCh <- outcome{res, err}
	}()

	model := NewBuildProgressModel("Building "+opts.SrcDir, events)
	_, uiErr := tea.NewProgram(model, tea.WithOutput(os.Stderr), tea.WithContext(ctx)).Run()
	if model.quit {
		cancel()
	}
	go func() {
		for range events {
		}
	}()
	out := <-outcomeCh
	if uiErr != nil && out.err == nil {
		return out.res, uiErr
	}
	return out.res, out.err
}
