package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"agentlayer/internal/rules"
	"agentlayer/internal/safety"
	"agentlayer/internal/sysconfig"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FF9F")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888")).
			Italic(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7DF9FF")).
			Bold(true)

	snippetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCC"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4444")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555"))

	focusStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444")).
			Padding(0, 1)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#000")).
			Background(lipgloss.Color("#00FF9F")).
			Padding(0, 2)
)

var importanceStyles = map[rules.Importance]lipgloss.Style{
	rules.ImportanceHigh:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF4444")),
	rules.ImportanceMedium: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFA500")),
	rules.ImportanceLow:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#888")),
}

// renderRuleSet draws a rule set for the results viewport
func renderRuleSet(rs *rules.RuleSet, findings []safety.Finding, width int) string {
	if rs == nil {
		return statusStyle.Render("No rules yet. Configure the environment and compile.")
	}

	byIndex := make(map[int]safety.Finding, len(findings))
	for _, f := range findings {
		byIndex[f.Index] = f
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(rs.Title) + "\n")
	b.WriteString(wrapText(rs.Description, width) + "\n\n")

	if rs.InitScript != "" {
		b.WriteString(sectionStyle.Render("Init Script") + "\n")
		b.WriteString(snippetStyle.Render(rs.InitScript) + "\n\n")
	}

	b.WriteString(sectionStyle.Render("Logging Template") + "\n")
	b.WriteString(dimStyle.Render(rs.LogTemplate) + "\n\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Rules (%d)", len(rs.Rules))) + "\n")
	for i, r := range rs.Rules {
		badge := importanceStyles[r.Importance].Render("[" + strings.ToUpper(string(r.Importance)) + "]")
		b.WriteString(fmt.Sprintf("%s %s\n", badge, sectionStyle.Render(r.Category)))
		b.WriteString(wrapText("  "+r.Rule, width) + "\n")
		if r.ContextTip != "" {
			b.WriteString(statusStyle.Render(wrapText("  Context: "+r.ContextTip, width)) + "\n")
		}
		if r.CommandSnippet != "" {
			b.WriteString(snippetStyle.Render("  > "+r.CommandSnippet) + "\n")
		}
		if f, ok := byIndex[i]; ok {
			style := warnStyle
			if f.Level == safety.Blocked {
				style = errorStyle
			}
			b.WriteString(style.Render(fmt.Sprintf("  ! %s: %s", f.Level, f.Reason)) + "\n")
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// pipelineStage is one box of the routing pipeline panel
type pipelineStage struct {
	title    string
	subtitle string
}

var pipelineStages = [][]pipelineStage{
	{{"User Command", "Prompt sent to the 'g' function"}},
	{{"Decision Phase", "Regex check: logic|code|math"}},
	{{"Fast Path", "Gemini Flash Lite"}, {"Reasoning Path", "DeepSeek R1"}},
	{{"Self-Correction", "Fallback: Llama 3.1 405B"}},
}

// renderPipeline draws the logic routing pipeline the generated rules describe
func renderPipeline() string {
	var lines []string
	lines = append(lines, sectionStyle.Render("Logic Routing Pipeline"))
	for i, stage := range pipelineStages {
		var alts []string
		for _, s := range stage {
			alts = append(alts, focusStyle.Render(s.title)+" "+statusStyle.Render(s.subtitle))
		}
		lines = append(lines, "  "+strings.Join(alts, "\n  | "))
		if i < len(pipelineStages)-1 {
			lines = append(lines, "  v")
		}
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

// renderGuide draws the deployment steps for the exported file
func renderGuide(steps []rules.GuideStep, width int) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Rapid Deployment Guide") + "\n")
	for _, s := range steps {
		b.WriteString("\n" + focusStyle.Render(s.Title) + "\n")
		b.WriteString(statusStyle.Render(wrapText(s.Note, width)) + "\n")
		b.WriteString(snippetStyle.Render(s.Code) + "\n")
	}
	return b.String()
}

func fieldLabel(label string, focused bool) string {
	style := lipgloss.NewStyle().Width(16)
	if focused {
		return style.Inherit(focusStyle).Render("> " + label)
	}
	return style.Foreground(lipgloss.Color("252")).Render("  " + label)
}

func selectValue(label string, focused bool) string {
	if focused {
		return focusStyle.Render("< " + label + " >")
	}
	return label
}

func checkbox(on, focused bool) string {
	box := "[ ]"
	if on {
		box = "[x]"
	}
	if focused {
		return focusStyle.Render(box)
	}
	return box
}

// renderForm draws the configuration column
func renderForm(f form, cfg sysconfig.Config, loading bool, spin string) string {
	var b strings.Builder
	row := func(field int, label, value string) {
		b.WriteString(fieldLabel(label, f.focus == field) + value + "\n")
	}

	b.WriteString(sectionStyle.Render("Environment") + "\n")
	row(fieldPackageManager, "Package Mgr", selectValue(cfg.PackageManager.Label(), f.focus == fieldPackageManager))
	row(fieldShell, "Default Shell", selectValue(cfg.Shell.Label(), f.focus == fieldShell))
	row(fieldPersona, "Persona", selectValue(cfg.Persona.Label(), f.focus == fieldPersona))
	row(fieldStrictness, "Strictness", selectValue(cfg.Strictness.Label(), f.focus == fieldStrictness))
	row(fieldProjectPath, "Project Path", f.pathInput.View())
	row(fieldWSL, "WSL2", checkbox(cfg.WSLEnabled, f.focus == fieldWSL))

	b.WriteString("\n" + sectionStyle.Render("Rule Modules") + "\n")
	row(fieldPathRules, "Windows Paths", checkbox(cfg.IncludePathRules, f.focus == fieldPathRules))
	row(fieldCommandRules, "Shell Commands", checkbox(cfg.IncludeCommandRules, f.focus == fieldCommandRules))
	row(fieldWSLRules, "WSL Paths", checkbox(cfg.IncludeWSLRules, f.focus == fieldWSLRules))
	row(fieldLogging, "Refined Logging", checkbox(cfg.RefineLogging, f.focus == fieldLogging))

	b.WriteByte('\n')
	label := "Compile Agent Rules"
	if loading {
		label = spin + " Synthesizing..."
	}
	button := buttonStyle.Render(label)
	if f.focus == fieldCompile {
		button = buttonStyle.Underline(true).Render(label)
	}
	b.WriteString(button)
	return b.String()
}

// wrapText soft-wraps a string at maxWidth, respecting word boundaries
func wrapText(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return s
	}

	var result strings.Builder
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			result.WriteByte('\n')
		}
		if lipgloss.Width(line) <= maxWidth {
			result.WriteString(line)
			continue
		}

		indent := line[:len(line)-len(strings.TrimLeft(line, " "))]
		currentLen := 0
		for _, word := range strings.Fields(line) {
			wordLen := lipgloss.Width(word)
			if currentLen > 0 && currentLen+wordLen+1 > maxWidth {
				result.WriteByte('\n')
				result.WriteString(indent)
				currentLen = len(indent)
			} else if currentLen > 0 {
				result.WriteByte(' ')
				currentLen++
			} else {
				result.WriteString(indent)
				currentLen = len(indent)
			}
			result.WriteString(word)
			currentLen += wordLen
		}
	}
	return result.String()
}
