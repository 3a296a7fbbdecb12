package ui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"agentlayer/internal/sysconfig"
)

// form field indices, in focus order
const (
	fieldPackageManager = iota
	fieldShell
	fieldPersona
	fieldStrictness
	fieldProjectPath
	fieldWSL
	fieldPathRules
	fieldCommandRules
	fieldWSLRules
	fieldLogging
	fieldCompile
	fieldCount
)

type form struct {
	pathInput textinput.Model
	focus     int
}

func newForm(cfg sysconfig.Config) form {
	pi := textinput.New()
	pi.Placeholder = "$HOME/Projects"
	pi.CharLimit = 260
	pi.Width = 28
	pi.SetValue(cfg.ProjectPath)
	pi.Blur()

	return form{pathInput: pi, focus: fieldPackageManager}
}

func (f *form) next(step int) {
	f.blurCurrent()
	f.focus = ((f.focus+step)%fieldCount + fieldCount) % fieldCount
	f.focusCurrent()
}

func (f *form) blurCurrent() {
	if f.focus == fieldProjectPath {
		f.pathInput.Blur()
	}
}

func (f *form) focusCurrent() {
	if f.focus == fieldProjectPath {
		f.pathInput.Focus()
		f.pathInput.CursorEnd()
	}
}

func (f *form) editingText() bool {
	return f.focus == fieldProjectPath
}

// cycle moves a select field by step. It returns false for fields that
// are not selects.
func (f *form) cycle(cfg *sysconfig.Config, step int) bool {
	switch f.focus {
	case fieldPackageManager:
		cfg.SetPackageManager(sysconfig.Cycle(sysconfig.PackageManagers, cfg.PackageManager, step))
	case fieldShell:
		cfg.SetShell(sysconfig.Cycle(sysconfig.Shells, cfg.Shell, step))
	case fieldPersona:
		cfg.SetPersona(sysconfig.Cycle(sysconfig.Personas, cfg.Persona, step))
	case fieldStrictness:
		cfg.SetStrictness(sysconfig.Cycle(sysconfig.Strictnesses, cfg.Strictness, step))
	default:
		return false
	}
	return true
}

// toggle flips a boolean field. It returns false for other fields.
func (f *form) toggle(cfg *sysconfig.Config) bool {
	switch f.focus {
	case fieldWSL:
		cfg.ToggleWSLEnabled()
	case fieldPathRules:
		cfg.TogglePathRules()
	case fieldCommandRules:
		cfg.ToggleCommandRules()
	case fieldWSLRules:
		cfg.ToggleWSLRules()
	case fieldLogging:
		cfg.ToggleRefineLogging()
	default:
		return false
	}
	return true
}

func (f *form) updateText(msg tea.Msg) (string, tea.Cmd) {
	var cmd tea.Cmd
	f.pathInput, cmd = f.pathInput.Update(msg)
	return f.pathInput.Value(), cmd
}
