package rules

import (
	"fmt"
	"path/filepath"
	"strings"
)

// GuideStep is one setup step for putting an exported memory file to use
type GuideStep struct {
	Title string
	Note  string
	Lang  string // fence language of Code
	Code  string
}

// DeploymentGuide lists the steps that link a project to the global
// memory file, store API keys and install the logging `g` function.
// fileName is the exported file (base name is used); shell picks the
// fence language and, for cmd, the link command.
func DeploymentGuide(fileName, shell string) []GuideStep {
	name := filepath.Base(fileName)
	if fileName == "" || name == "." {
		name = DefaultFileName
	}
	if shell == "" {
		shell = "powershell"
	}

	link := GuideStep{
		Title: "Step 01: Initial Link",
		Note:  "Execute once in any new project to link it to the global brain.",
		Lang:  shell,
		Code: fmt.Sprintf("$globalMemory = \"$HOME\\%s\"\n"+
			"New-Item -ItemType SymbolicLink -Path \".\\%s\" -Target $globalMemory", name, name),
	}
	if shell == "cmd" {
		link.Code = fmt.Sprintf("mklink \"%s\" \"%%USERPROFILE%%\\%s\"", name, name)
	}

	return []GuideStep{
		link,
		{
			Title: "Step 02: Env Vars",
			Note:  "Store credentials in the user profile.",
			Lang:  shell,
			Code:  "setx OPENROUTER_API_KEY \"sk-or-v1-...\"\nsetx GOOGLE_API_KEY \"AIzaSy...\"",
		},
		{
			Title: "Step 03: The Function",
			Note:  "Paste into `code $PROFILE`.",
			Lang:  "powershell",
			Code: "function g {\n" +
				"    param([string]$prompt)\n" +
				fmt.Sprintf("    \"## [$(Get-Date -Format 'HH:mm')] $prompt\" | Add-Content \".\\%s\"\n", name) +
				"    gemini $prompt\n" +
				"}",
		},
	}
}

// GuideMarkdown renders steps as markdown sections with fenced code
func GuideMarkdown(steps []GuideStep) string {
	var b strings.Builder
	for i, s := range steps {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## %s\n%s\n```%s\n%s\n```\n", s.Title, s.Note, s.Lang, s.Code)
	}
	return b.String()
}
