package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultHeader titles the exported memory file
	DefaultHeader = "GEMINI.md Persistent Memory"
	// DefaultContext fills the Context line of rules without a tip
	DefaultContext = "Applies to every session."
	// DefaultFileName is where exports land when no path is given
	DefaultFileName = "GEMINI.md"
)

// ExportOptions tunes the markdown document
type ExportOptions struct {
	Header string // defaults to DefaultHeader
	Shell  string // fence language of the init script, defaults to powershell
}

// Markdown serializes rs into the GEMINI.md document. The layout is
// stable byte for byte so regenerated files diff cleanly.
func Markdown(rs *RuleSet, opts ExportOptions) string {
	header := opts.Header
	if header == "" {
		header = DefaultHeader
	}
	shell := opts.Shell
	if shell == "" {
		shell = "powershell"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", header)

	if rs.InitScript != "" {
		fmt.Fprintf(&b, "## Init Script\n```%s\n%s\n```\n\n", shell, rs.InitScript)
	}

	fmt.Fprintf(&b, "## Logging Template\n```markdown\n%s\n```\n\n", rs.LogTemplate)

	b.WriteString("## Rules catalog\n")
	for i, r := range rs.Rules {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(ruleBlock(r))
	}
	return b.String()
}

func ruleBlock(r GeneratedRule) string {
	tip := r.ContextTip
	if tip == "" {
		tip = DefaultContext
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### [%s] %s\n", strings.ToUpper(string(r.Importance)), r.Category)
	fmt.Fprintf(&b, "- %s\n", r.Rule)
	fmt.Fprintf(&b, "- Context: %s\n", tip)
	if r.CommandSnippet != "" {
		fmt.Fprintf(&b, "\n```powershell\n%s\n```\n", r.CommandSnippet)
	}
	return b.String()
}

// YAML serializes rs for tooling that prefers structured files
func YAML(rs *RuleSet) ([]byte, error) {
	return yaml.Marshal(rs)
}

// WriteFile writes doc to path through a temp file and rename,
// so an interrupted export never leaves half a GEMINI.md behind
func WriteFile(path string, doc []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".agentlayer-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
