package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"agentlayer/internal/history"
	"agentlayer/internal/logger"
	"agentlayer/internal/rules"
	"agentlayer/internal/safety"
	"agentlayer/internal/synth"
	"agentlayer/internal/sysconfig"
)

const formWidth = 46

// Messages for async operations
type synthDoneMsg struct {
	ruleSet *rules.RuleSet
	entryID string
	err     error
}

type exportDoneMsg struct {
	path string
	err  error
}

// Options wires the dashboard to its collaborators
type Options struct {
	Session    *synth.Session
	Safety     *safety.Checker
	History    *history.History // optional
	Provider   string
	ExportPath string
	Header     string
}

// Model is the BubbleTea model
type Model struct {
	ctx      context.Context
	opts     Options
	form     form
	viewport viewport.Model
	spinner  spinner.Model

	status       string
	errLine      string
	lastEntryID  string
	showPipeline bool
	showGuide    bool
	ready        bool
	processing   bool
	width        int
	height       int
}

func NewModel(ctx context.Context, opts Options) Model {
	if opts.Safety == nil {
		opts.Safety = safety.NewChecker()
	}
	if opts.ExportPath == "" {
		opts.ExportPath = rules.DefaultFileName
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := Model{
		ctx:      ctx,
		opts:     opts,
		form:     newForm(opts.Session.Config()),
		viewport: viewport.New(80, 20),
		spinner:  sp,
		status:   "Ready",
	}
	m.refreshResults()
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpWidth := m.width - formWidth - 4
		if vpWidth < 20 {
			vpWidth = 20
		}
		// header, status line, help
		vpHeight := m.height - 3
		if vpHeight < 5 {
			vpHeight = 5
		}
		m.viewport.Width = vpWidth
		m.viewport.Height = vpHeight
		m.ready = true
		m.refreshResults()
		return m, nil

	case synthDoneMsg:
		m.processing = false
		if msg.err != nil {
			m.errLine = synth.UserMessage(msg.err)
			m.status = "Ready"
			return m, nil
		}
		m.errLine = ""
		m.lastEntryID = msg.entryID
		m.status = fmt.Sprintf("Compiled %d rules", len(msg.ruleSet.Rules))
		m.showGuide = false
		m.refreshResults()
		m.viewport.GotoTop()
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			logger.Error("export failed: %v", msg.err)
			m.errLine = "Export failed: " + msg.err.Error()
			return m, nil
		}
		m.errLine = ""
		m.status = "Exported to " + msg.path
		return m, nil

	case spinner.TickMsg:
		if m.processing {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// global keys
	switch key {
	case "ctrl+c":
		return m, tea.Quit
	case "tab", "down":
		m.form.next(1)
		return m, nil
	case "shift+tab", "up":
		m.form.next(-1)
		return m, nil
	case "ctrl+g":
		return m.compile()
	case "ctrl+s":
		return m.export()
	case "ctrl+p":
		m.showPipeline = !m.showPipeline
		return m, nil
	case "ctrl+o":
		m.showGuide = !m.showGuide
		m.refreshResults()
		m.viewport.GotoTop()
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.form.editingText() {
		if key == "enter" {
			m.form.next(1)
			return m, nil
		}
		value, cmd := m.form.updateText(msg)
		m.opts.Session.Update(func(c *sysconfig.Config) { c.SetProjectPath(value) })
		return m, cmd
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "left", "h", "right", "l":
		step := 1
		if key == "left" || key == "h" {
			step = -1
		}
		m.opts.Session.Update(func(c *sysconfig.Config) { m.form.cycle(c, step) })
		m.refreshResults()
		return m, nil
	case " ", "enter":
		if m.form.focus == fieldCompile {
			return m.compile()
		}
		var toggled bool
		m.opts.Session.Update(func(c *sysconfig.Config) { toggled = m.form.toggle(c) })
		if !toggled && key == "enter" {
			m.form.next(1)
		}
		return m, nil
	}
	return m, nil
}

// compile starts one synthesis unless one is already running
func (m Model) compile() (tea.Model, tea.Cmd) {
	if m.processing || m.opts.Session.Loading() {
		return m, nil
	}
	m.processing = true
	m.errLine = ""
	m.status = "Synthesizing rules..."
	return m, tea.Batch(m.spinner.Tick, m.runSynthesis())
}

func (m Model) runSynthesis() tea.Cmd {
	ctx, sess, hist, provider := m.ctx, m.opts.Session, m.opts.History, m.opts.Provider
	return func() tea.Msg {
		cfg := sess.Config()
		rs, err := sess.Generate(ctx)

		var entryID string
		if hist != nil && !errors.Is(err, synth.ErrBusy) {
			e := history.NewEntry(provider, cfg, rs, err)
			entryID = e.ID
			hist.Record(e)
			if serr := hist.Save(); serr != nil {
				logger.Error("saving history: %v", serr)
			}
		}
		return synthDoneMsg{ruleSet: rs, entryID: entryID, err: err}
	}
}

func (m Model) export() (tea.Model, tea.Cmd) {
	rs := m.opts.Session.RuleSet()
	if rs == nil {
		m.status = "Nothing to export yet"
		return m, nil
	}
	cfg := m.opts.Session.Config()
	path, header, hist, entryID := m.opts.ExportPath, m.opts.Header, m.opts.History, m.lastEntryID

	return m, func() tea.Msg {
		doc := rules.Markdown(rs, rules.ExportOptions{Header: header, Shell: string(cfg.Shell)})
		if err := rules.WriteFile(path, []byte(doc)); err != nil {
			return exportDoneMsg{path: path, err: err}
		}
		logger.Info("exported %d rules to %s", len(rs.Rules), path)
		if hist != nil && hist.MarkExported(entryID, path) {
			if err := hist.Save(); err != nil {
				logger.Error("saving history: %v", err)
			}
		}
		return exportDoneMsg{path: path}
	}
}

func (m *Model) refreshResults() {
	cfg := m.opts.Session.Config()
	if m.showGuide {
		steps := rules.DeploymentGuide(m.opts.ExportPath, string(cfg.Shell))
		m.viewport.SetContent(renderGuide(steps, m.viewport.Width-2))
		return
	}
	rs := m.opts.Session.RuleSet()
	findings := m.opts.Safety.Review(rs, cfg.Strictness)
	m.viewport.SetContent(renderRuleSet(rs, findings, m.viewport.Width-2))
}

func (m Model) View() string {
	if !m.ready {
		return "Loading agentlayer..."
	}

	header := titleStyle.Render("AgentLayer") + "  " + statusStyle.Render(m.status)
	if m.processing {
		header = fmt.Sprintf("%s %s %s", titleStyle.Render("AgentLayer"), m.spinner.View(), statusStyle.Render(m.status))
	}

	cfg := m.opts.Session.Config()
	left := renderForm(m.form, cfg, m.processing, m.spinner.View())
	if m.showPipeline {
		left += "\n\n" + renderPipeline()
	}
	left = lipgloss.NewStyle().Width(formWidth).Render(left)

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, panelStyle.Render(m.viewport.View()))

	errLine := ""
	if m.errLine != "" {
		errLine = errorStyle.Render(m.errLine)
	}
	help := helpStyle.Render(" Tab/arrows: move  <>: change  Space: toggle  Ctrl+G: compile  Ctrl+S: export  Ctrl+P: pipeline  Ctrl+O: guide  Ctrl+C: quit")

	return fmt.Sprintf("%s\n%s\n%s\n%s", header, body, errLine, help)
}
