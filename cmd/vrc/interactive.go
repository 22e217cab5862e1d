package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/vtable/element"
	"github.com/wippyai/vtable/stress"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87CEEB"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD580"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func renderStep(s stress.Step) string {
	if s.OK {
		return okStyle.Render("  ok   ") + s.Description
	}
	return errorStyle.Render("  FAIL ") + s.Description
}

func renderDiagnostic(d element.Diagnostic) string {
	if d.Level == element.LevelError {
		return errorStyle.Render(d.String())
	}
	return warnStyle.Render(d.String())
}

func printReport(w io.Writer, r stress.Report) {
	status := okStyle.Render("ok")
	if !r.OK() {
		status = errorStyle.Render("FAILED")
	}
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("race "+r.ID), status)
	fmt.Fprintf(w, "  iterations  %d (%d workers, %s)\n", r.Iterations, r.Workers, r.Elapsed.Round(1e6))
	fmt.Fprintf(w, "  upgrades    %d won, %d after destruction\n", r.Upgrades, r.Failed)
	fmt.Fprintf(w, "  destroyed   %d\n", r.Destroyed)
	fmt.Fprintf(w, "  violations  %d\n", r.Violations)
	fmt.Fprintf(w, "  leaked      %d\n", r.Leaked)
}

type progressMsg struct {
	done, total int
}

type finishedMsg struct {
	err    error
	report stress.Report
}

type raceModel struct {
	err     error
	updates chan tea.Msg
	cancel  context.CancelFunc
	report  *stress.Report
	spinner spinner.Model
	bar     progress.Model
	done    int
	total   int
}

func newRaceModel(cancel context.CancelFunc, total int) *raceModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = headerStyle

	return &raceModel{
		updates: make(chan tea.Msg, 1),
		cancel:  cancel,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient()),
		total:   total,
	}
}

// start launches the run; progress is sampled, the final message is not.
func (m *raceModel) start(ctx context.Context, opts stress.Options) {
	opts.Progress = func(done, total int) {
		select {
		case m.updates <- progressMsg{done: done, total: total}:
		default:
		}
	}
	go func() {
		rep, err := stress.Run(ctx, opts)
		m.updates <- finishedMsg{report: rep, err: err}
	}()
}

func (m *raceModel) wait() tea.Msg {
	return <-m.updates
}

func (m *raceModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.wait)
}

func (m *raceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, 80)
		return m, nil

	case progressMsg:
		m.done, m.total = msg.done, msg.total
		return m, tea.Batch(m.bar.SetPercent(float64(m.done)/float64(m.total)), m.wait)

	case finishedMsg:
		m.report = &msg.report
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		pm, cmd := m.bar.Update(msg)
		m.bar = pm.(progress.Model)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *raceModel) View() string {
	if m.report != nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("vrc race"))
	b.WriteString("\n\n")
	b.WriteString(m.spinner.View())
	fmt.Fprintf(&b, " %d / %d races\n\n", m.done, m.total)
	b.WriteString(m.bar.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("q stop"))
	return b.String()
}

func runInteractive(ctx context.Context, opts stress.Options) (stress.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newRaceModel(cancel, opts.Iterations)
	m.start(ctx, opts)

	if _, err := tea.NewProgram(m).Run(); err != nil {
		return stress.Report{}, err
	}
	if m.report == nil {
		return stress.Report{}, ctx.Err()
	}
	return *m.report, m.err
}
