package safety

import (
	"strings"

	"agentlayer/internal/rules"
	"agentlayer/internal/sysconfig"
)

// Level indicates how dangerous a command snippet is
type Level int

const (
	Safe         Level = iota // Fine to paste
	NeedsConfirm              // Alters the system, should be guarded
	Blocked                   // Should never be in a rules file
)

func (l Level) String() string {
	switch l {
	case NeedsConfirm:
		return "confirm"
	case Blocked:
		return "blocked"
	}
	return "safe"
}

// Assessment is the result of checking one command
type Assessment struct {
	Level   Level
	Reason  string
	Command string
}

// Finding ties an assessment to the rule carrying the snippet
type Finding struct {
	Index    int // position in RuleSet.Rules
	Category string
	Assessment
}

// Checker matches command snippets against known dangerous patterns
type Checker struct {
	blockedPatterns []pattern
	confirmPatterns []pattern
}

type pattern struct {
	match  string
	reason string
}

func NewChecker() *Checker {
	return &Checker{
		blockedPatterns: []pattern{
			// System destruction
			{"format-volume", "formats a volume"},
			{"format c:", "formats the system drive"},
			{"remove-item -recurse c:\\windows", "deletes the Windows directory"},
			{"remove-item -recurse -force c:\\windows", "deletes the Windows directory"},
			{"rd /s /q c:\\", "recursively deletes the system drive"},
			{"del /s /q c:\\", "recursively deletes the system drive"},
			{"rm -rf /", "deletes the root directory"},
			{":(){:|:&};:", "fork bomb"},
			// Registry and policy
			{"reg delete hklm", "deletes machine registry keys"},
			{"remove-itemproperty hklm:", "deletes machine registry values"},
			{"set-executionpolicy unrestricted", "weakens the execution policy"},
			{"set-executionpolicy bypass -scope localmachine", "weakens the machine execution policy"},
			// Defender and UAC
			{"disablerealtimemonitoring $true", "disables Windows Defender"},
			{"enablelua", "changes UAC"},
			{"net user administrator", "modifies the administrator account"},
		},
		confirmPatterns: []pattern{
			{"remove-item", "deletes files or folders"},
			{"rmdir", "removes a directory"},
			{"rd /s", "removes a directory tree"},
			{"del ", "deletes files"},
			{"stop-process", "terminates processes"},
			{"taskkill", "terminates processes"},
			{"stop-service", "stops a service"},
			{"set-service", "modifies a service"},
			{"restart-computer", "restarts the computer"},
			{"stop-computer", "shuts down the computer"},
			{"netsh", "changes network configuration"},
			{"set-itemproperty hklm:", "writes machine registry values"},
			{"reg add hklm", "writes machine registry values"},
			{"set-executionpolicy", "changes the execution policy"},
			{"invoke-expression", "executes generated code"},
			{"| iex", "executes downloaded code"},
			{"wsl --unregister", "destroys a WSL distribution"},
		},
	}
}

// Check evaluates a single command
func (c *Checker) Check(command string) Assessment {
	lower := strings.ToLower(strings.TrimSpace(command))

	for _, p := range c.blockedPatterns {
		if strings.Contains(lower, p.match) {
			return Assessment{Level: Blocked, Reason: p.reason, Command: command}
		}
	}
	for _, p := range c.confirmPatterns {
		if strings.Contains(lower, p.match) {
			return Assessment{Level: NeedsConfirm, Reason: p.reason, Command: command}
		}
	}
	return Assessment{Level: Safe, Command: command}
}

// Review checks every snippet in rs. Which findings are reported depends on
// strictness: low reports only blocked snippets, medium also reports
// unguarded system changes, high reports every change. rs is not modified.
func (c *Checker) Review(rs *rules.RuleSet, strictness sysconfig.Strictness) []Finding {
	if rs == nil {
		return nil
	}

	var findings []Finding
	for i, r := range rs.Rules {
		if strings.TrimSpace(r.CommandSnippet) == "" {
			continue
		}
		a := c.Check(r.CommandSnippet)
		if !reportable(a, strictness) {
			continue
		}
		findings = append(findings, Finding{Index: i, Category: r.Category, Assessment: a})
	}
	return findings
}

func reportable(a Assessment, strictness sysconfig.Strictness) bool {
	switch a.Level {
	case Blocked:
		return true
	case NeedsConfirm:
		switch strictness {
		case sysconfig.StrictnessHigh:
			return true
		case sysconfig.StrictnessMedium:
			return !guarded(a.Command)
		}
	}
	return false
}

// guarded reports whether a PowerShell command asks before acting
func guarded(command string) bool {
	lower := strings.ToLower(command)
	return strings.Contains(lower, "-whatif") || strings.Contains(lower, "-confirm")
}
