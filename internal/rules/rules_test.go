package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const validBody = `{
  "title": "Win11 Agent Rules",
  "description": "Rules for a pwsh + scoop workstation",
  "logTemplate": "## [HH:mm] Task\n- Observation:\n- Thought:\n- Action:",
  "initScript": "New-Item -ItemType SymbolicLink -Path .\\GEMINI.md -Target $HOME\\GEMINI.md",
  "rules": [
    {"category": "Paths", "rule": "Resolve $env:LOCALAPPDATA before writing caches", "importance": "high", "contextTip": "Caches never go to roaming AppData"},
    {"category": "Packages", "rule": "Install with scoop non-interactively", "commandSnippet": "scoop install git", "importance": "medium"},
    {"category": "Shell", "rule": "Prefer gci over ls", "importance": "low"}
  ]
}`

func TestParse_Valid(t *testing.T) {
	rs, err := Parse(validBody)
	require.NoError(t, err)

	assert.Equal(t, "Win11 Agent Rules", rs.Title)
	assert.Equal(t, "Rules for a pwsh + scoop workstation", rs.Description)
	assert.Equal(t, "## [HH:mm] Task\n- Observation:\n- Thought:\n- Action:", rs.LogTemplate)
	assert.Equal(t, `New-Item -ItemType SymbolicLink -Path .\GEMINI.md -Target $HOME\GEMINI.md`, rs.InitScript)
	require.Len(t, rs.Rules, 3)
	assert.Equal(t, GeneratedRule{
		Category:   "Paths",
		Rule:       "Resolve $env:LOCALAPPDATA before writing caches",
		Importance: ImportanceHigh,
		ContextTip: "Caches never go to roaming AppData",
	}, rs.Rules[0])
	assert.Equal(t, "scoop install git", rs.Rules[1].CommandSnippet)
	assert.Equal(t, ImportanceLow, rs.Rules[2].Importance)
}

func TestParse_WrappedInMarkdownFence(t *testing.T) {
	for _, body := range []string{
		"```json\n" + validBody + "\n```",
		"```\n" + validBody + "\n```\n",
		"  ```JSON\n" + validBody + "```",
	} {
		rs, err := Parse(body)
		require.NoError(t, err)
		assert.Len(t, rs.Rules, 3)
	}
}

func TestParse_KeepsLegalEscapesWhenRepairing(t *testing.T) {
	body := `{"title": "a\fb", "description": "C:\Users\me", "logTemplate": "l\tm", "rules": []}`

	rs, err := Parse(body)
	require.NoError(t, err)
	assert.Equal(t, "a\fb", rs.Title)
	assert.Equal(t, `C:\Users\me`, rs.Description)
	assert.Equal(t, "l\tm", rs.LogTemplate)
}

func TestParse_RepairsWindowsPathEscapes(t *testing.T) {
	body := `{"title": "t", "description": "d", "logTemplate": "l",
	  "rules": [{"category": "Paths", "rule": "Never write to C:\Windows\System32", "importance": "high"}]}`

	rs, err := Parse(body)
	require.NoError(t, err)
	assert.Equal(t, `Never write to C:\Windows\System32`, rs.Rules[0].Rule)
}

const minimalBody = `{"title": "t", "description": "d", "logTemplate": "l", "rules": []}`

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"empty", "", ErrEmptyResponse},
		{"whitespace", "  \n\t", ErrEmptyResponse},
		{"not json", "I could not generate rules today.", ErrInvalidResponse},
		{"truncated", `{"title": "t", "description": "d"`, ErrInvalidResponse},
		{"array", `[{"title": "t"}]`, ErrInvalidResponse},
		{"array of valid object", "[" + minimalBody + "]", ErrInvalidResponse},
		{"prose around object", "Sure! Here are the rules: " + minimalBody + " Hope this helps.", ErrInvalidResponse},
		{"prose before fence", "Here you go:\n```json\n" + minimalBody + "\n```", ErrInvalidResponse},
		{"trailing garbage", minimalBody + " }]] extra", ErrInvalidResponse},
		{"two objects", minimalBody + minimalBody, ErrInvalidResponse},
		{"unclosed fence", "```json\n" + minimalBody, ErrInvalidResponse},
		{"other fence language", "```powershell\n" + minimalBody + "\n```", ErrInvalidResponse},
		{"missing title", `{"description": "d", "logTemplate": "l", "rules": []}`, ErrInvalidResponse},
		{"missing log template", `{"title": "t", "description": "d", "rules": []}`, ErrInvalidResponse},
		{"rules not array", `{"title": "t", "description": "d", "logTemplate": "l", "rules": {}}`, ErrInvalidResponse},
		{"title not string", `{"title": 7, "description": "d", "logTemplate": "l", "rules": []}`, ErrInvalidResponse},
		{"rule missing importance", `{"title": "t", "description": "d", "logTemplate": "l", "rules": [{"category": "c", "rule": "r"}]}`, ErrInvalidResponse},
		{"bad importance", `{"title": "t", "description": "d", "logTemplate": "l", "rules": [{"category": "c", "rule": "r", "importance": "urgent"}]}`, ErrInvalidResponse},
		{"snippet not string", `{"title": "t", "description": "d", "logTemplate": "l", "rules": [{"category": "c", "rule": "r", "importance": "low", "commandSnippet": 3}]}`, ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := Parse(tt.body)
			assert.Nil(t, rs)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestParse_EmptyRulesAllowed(t *testing.T) {
	rs, err := Parse(`{"title": "t", "description": "d", "logTemplate": "l", "rules": []}`)
	require.NoError(t, err)
	assert.Empty(t, rs.Rules)
}

func TestStripFence(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`, true},
		{"json fence", "```json\n{\"a\": {\"b\": 2}}\n```", `{"a": {"b": 2}}`, true},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`, true},
		{"prose is left alone", "Result:\n{\"a\": 1}", "Result:\n{\"a\": 1}", true},
		{"no closing fence", "```json\n{\"a\": 1}", "", false},
		{"single line", "```{\"a\": 1}```", "", false},
		{"other language", "```yaml\na: 1\n```", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StripFence(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchema_Required(t *testing.T) {
	s := Schema()
	assert.Equal(t, "object", s["type"])
	assert.ElementsMatch(t, []any{"title", "description", "rules", "logTemplate"}, s["required"])

	props := s["properties"].(map[string]any)
	items := props["rules"].(map[string]any)["items"].(map[string]any)
	assert.ElementsMatch(t, []any{"category", "rule", "importance"}, items["required"])

	imp := items["properties"].(map[string]any)["importance"].(map[string]any)
	assert.Equal(t, []any{"high", "medium", "low"}, imp["enum"])
}

func TestMarkdown_Layout(t *testing.T) {
	rs, err := Parse(validBody)
	require.NoError(t, err)

	got := Markdown(rs, ExportOptions{Shell: "pwsh"})
	want := "# GEMINI.md Persistent Memory\n" +
		"\n" +
		"## Init Script\n" +
		"```pwsh\n" +
		`New-Item -ItemType SymbolicLink -Path .\GEMINI.md -Target $HOME\GEMINI.md` + "\n" +
		"```\n" +
		"\n" +
		"## Logging Template\n" +
		"```markdown\n" +
		"## [HH:mm] Task\n- Observation:\n- Thought:\n- Action:\n" +
		"```\n" +
		"\n" +
		"## Rules catalog\n" +
		"### [HIGH] Paths\n" +
		"- Resolve $env:LOCALAPPDATA before writing caches\n" +
		"- Context: Caches never go to roaming AppData\n" +
		"\n" +
		"### [MEDIUM] Packages\n" +
		"- Install with scoop non-interactively\n" +
		"- Context: " + DefaultContext + "\n" +
		"\n" +
		"```powershell\n" +
		"scoop install git\n" +
		"```\n" +
		"\n" +
		"### [LOW] Shell\n" +
		"- Prefer gci over ls\n" +
		"- Context: " + DefaultContext + "\n"
	assert.Equal(t, want, got)
}

func TestMarkdown_OneHeadingPerRuleInOrder(t *testing.T) {
	rs := &RuleSet{
		Title:       "t",
		LogTemplate: "l",
		Rules: []GeneratedRule{
			{Category: "B", Rule: "second letter", Importance: ImportanceMedium},
			{Category: "A", Rule: "first letter", Importance: ImportanceHigh},
			{Category: "C", Rule: "### not a heading inside text", Importance: ImportanceLow},
			{Category: "A", Rule: "duplicate category", Importance: ImportanceLow},
		},
	}

	doc := Markdown(rs, ExportOptions{})
	var headings []string
	for _, line := range strings.Split(doc, "\n") {
		if strings.HasPrefix(line, "### ") {
			headings = append(headings, line)
		}
	}
	assert.Equal(t, []string{
		"### [MEDIUM] B",
		"### [HIGH] A",
		"### [LOW] C",
		"### [LOW] A",
	}, headings)
	assert.NotContains(t, doc, "## Init Script")
}

func TestMarkdown_CustomHeader(t *testing.T) {
	doc := Markdown(&RuleSet{LogTemplate: "l"}, ExportOptions{Header: "Team Memory"})
	assert.True(t, strings.HasPrefix(doc, "# Team Memory\n\n## Logging Template\n"))
	assert.True(t, strings.HasSuffix(doc, "## Rules catalog\n"))
}

func TestYAML(t *testing.T) {
	rs, err := Parse(validBody)
	require.NoError(t, err)

	out, err := YAML(rs)
	require.NoError(t, err)

	var back RuleSet
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, *rs, back)
	assert.Contains(t, string(out), "log_template:")
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "GEMINI.md")

	require.NoError(t, WriteFile(path, []byte("first")))
	require.NoError(t, WriteFile(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestDeploymentGuide(t *testing.T) {
	steps := DeploymentGuide("", "pwsh")
	require.Len(t, steps, 3)

	assert.Equal(t, "Step 01: Initial Link", steps[0].Title)
	assert.Equal(t, "pwsh", steps[0].Lang)
	assert.Equal(t, "$globalMemory = \"$HOME\\GEMINI.md\"\nNew-Item -ItemType SymbolicLink -Path \".\\GEMINI.md\" -Target $globalMemory", steps[0].Code)

	assert.Equal(t, "Step 02: Env Vars", steps[1].Title)
	assert.Contains(t, steps[1].Code, `setx OPENROUTER_API_KEY "sk-or-v1-..."`)
	assert.Contains(t, steps[1].Code, `setx GOOGLE_API_KEY "AIzaSy..."`)

	assert.Equal(t, "Step 03: The Function", steps[2].Title)
	assert.Equal(t, "powershell", steps[2].Lang)
	assert.True(t, strings.HasPrefix(steps[2].Code, "function g {\n    param([string]$prompt)\n"))
	assert.Contains(t, steps[2].Code, `| Add-Content ".\GEMINI.md"`)
}

func TestDeploymentGuide_FileAndShell(t *testing.T) {
	steps := DeploymentGuide(filepath.Join("out", "AGENTS.md"), "cmd")
	assert.Equal(t, "cmd", steps[0].Lang)
	assert.Equal(t, `mklink "AGENTS.md" "%USERPROFILE%\AGENTS.md"`, steps[0].Code)
	assert.Equal(t, "cmd", steps[1].Lang)
	assert.Equal(t, "powershell", steps[2].Lang, "the g function always lives in the PowerShell profile")
	assert.Contains(t, steps[2].Code, `Add-Content ".\AGENTS.md"`)

	assert.Equal(t, "powershell", DeploymentGuide("GEMINI.md", "")[0].Lang)
}

func TestGuideMarkdown(t *testing.T) {
	got := GuideMarkdown([]GuideStep{
		{Title: "A", Note: "first", Lang: "pwsh", Code: "gci"},
		{Title: "B", Note: "second", Lang: "cmd", Code: "dir"},
	})
	assert.Equal(t, "## A\nfirst\n```pwsh\ngci\n```\n\n## B\nsecond\n```cmd\ndir\n```\n", got)
}
