package prompt

import (
	"strings"
	"text/template"

	"agentlayer/internal/sysconfig"
)

// BaseInstruction is sent on the instruction channel with every request.
const BaseInstruction = `You are an expert at configuring Windows 11 developer environments and AI agent workflows. Your rules should be technical, precise, and optimized for LLM consumption in a markdown file.`

// personaTones modify the voice of the generated rules
var personaTones = map[sysconfig.Persona]string{
	sysconfig.PersonaArchitect: "Write as a World-Class Windows Systems Architect: structured, authoritative, and explicit about trade-offs.",
	sysconfig.PersonaHacker:    "Write as a pragmatic power-user hacker: terse, shortcut-heavy, and biased toward one-liners.",
	sysconfig.PersonaAssistant: "Write as a patient assistant: plain language, every rule explained in one short sentence.",
}

// strictnessPolicies bound what generated command snippets may do
var strictnessPolicies = map[sysconfig.Strictness]string{
	sysconfig.StrictnessHigh:   "Security strictness is HIGH: never suggest Set-ExecutionPolicy Unrestricted, recursive deletes, registry edits under HKLM, or piping downloads into Invoke-Expression. Prefer read-only commands and require -WhatIf on destructive cmdlets.",
	sysconfig.StrictnessMedium: "Security strictness is MEDIUM: destructive or system-altering commands are allowed only with -Confirm or -WhatIf and must be marked importance high.",
	sysconfig.StrictnessLow:    "Security strictness is LOW: favour automation speed, but still never disable Windows Defender or UAC.",
}

// Requirement lines, one per rule module.
const (
	PathRulesInstruction    = "Add Windows Path Rules: Handling of AppData, LocalAppData, System32, and User Profile paths."
	CommandRulesInstruction = `Add Shell Command Rules: Preferred PowerShell aliases (e.g., using "gci" instead of "ls") and script execution policies.`
	WSLRulesInstruction     = `Add WSL Path Rules: Specific mapping instructions for /mnt/c/ to C:\ and vice versa.`
	LoggingInstruction      = "Refine Logging Instructions: Strict templates for the Observation -> Thought -> Action loop in GEMINI.md."
)

const userTemplate = `Act as a {{.Role}}. Generate a set of "Model Rules" for a GEMINI.md persistent memory file on Windows 11.

Environment Context:
- WSL2 Status: {{if .Config.WSLEnabled}}Enabled (Ubuntu/Debian usually){{else}}Disabled{{end}}
- Package Manager: {{.Config.PackageManager}}
- Root Directory: {{.Config.RootDirectory}}
- Primary Shell: {{.Config.Shell}}
- Security Strictness: {{.Config.Strictness}}

Requirements for Rule Generation:
{{range $i, $r := .Requirements}}{{inc $i}}. {{$r}}
{{end}}
Ensure output is a valid JSON object matching the requested schema.
`

var tmpl = template.Must(template.New("prompt").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(userTemplate))

// Requirements returns the requirement lines enabled by cfg, in prompt order
func Requirements(cfg sysconfig.Config) []string {
	var reqs []string
	if cfg.IncludePathRules {
		reqs = append(reqs, PathRulesInstruction)
	}
	if cfg.IncludeCommandRules {
		reqs = append(reqs, CommandRulesInstruction)
	}
	if cfg.WSLMapping() {
		reqs = append(reqs, WSLRulesInstruction)
	}
	if cfg.RefineLogging {
		reqs = append(reqs, LoggingInstruction)
	}
	reqs = append(reqs, packageManagerInstruction(cfg.PackageManager))
	reqs = append(reqs, initScriptInstruction(cfg.Shell))
	return reqs
}

func packageManagerInstruction(pm sysconfig.PackageManager) string {
	if pm == sysconfig.PackageNone {
		return "Add Package Manager Rules: No package manager is installed; describe manual, scripted installs that never prompt."
	}
	return "Add Package Manager Rules: Specific flags for " + string(pm) + " to ensure non-interactive, automated installs."
}

func initScriptInstruction(sh sysconfig.Shell) string {
	return "Provide an initScript for " + string(sh) + " that links the project GEMINI.md to the global one in $HOME."
}

// Build compiles cfg into the user prompt. Same input, same output.
func Build(cfg sysconfig.Config) string {
	var b strings.Builder
	data := struct {
		Role         string
		Config       sysconfig.Config
		Requirements []string
	}{
		Role:         role(cfg.Persona),
		Config:       cfg,
		Requirements: Requirements(cfg),
	}
	// the template and its data are fixed, so Execute cannot fail
	_ = tmpl.Execute(&b, data)
	return b.String()
}

func role(p sysconfig.Persona) string {
	switch p {
	case sysconfig.PersonaHacker:
		return "Windows Power-User and Automation Hacker"
	case sysconfig.PersonaAssistant:
		return "Friendly Windows Setup Assistant"
	default:
		return "World-Class Windows Systems Architect"
	}
}

// SystemInstruction returns the instruction-channel text for a persona and strictness
func SystemInstruction(p sysconfig.Persona, s sysconfig.Strictness) string {
	parts := []string{BaseInstruction}
	if tone, ok := personaTones[p]; ok {
		parts = append(parts, tone)
	}
	if policy, ok := strictnessPolicies[s]; ok {
		parts = append(parts, policy)
	}
	return strings.Join(parts, "\n\n")
}
