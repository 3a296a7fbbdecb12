package sysconfig

import (
	"fmt"
	"strings"
)

// Shell is the primary shell the agent is told to target
type Shell string

const (
	ShellPwsh       Shell = "pwsh"       // PowerShell 7
	ShellPowerShell Shell = "powershell" // Windows PowerShell 5.1
	ShellCmd        Shell = "cmd"
)

// PackageManager selects which installer the rules are written for
type PackageManager string

const (
	PackageScoop  PackageManager = "scoop"
	PackageWinget PackageManager = "winget"
	PackageChoco  PackageManager = "choco"
	PackageNone   PackageManager = "none" // manual installs
)

// Persona is the tone modifier passed through the instruction channel
type Persona string

const (
	PersonaArchitect Persona = "architect"
	PersonaHacker    Persona = "hacker"
	PersonaAssistant Persona = "assistant"
)

// Strictness controls how conservative generated commands should be
type Strictness string

const (
	StrictnessHigh   Strictness = "high"
	StrictnessMedium Strictness = "medium"
	StrictnessLow    Strictness = "low"
)

var (
	Shells          = []Shell{ShellPwsh, ShellPowerShell, ShellCmd}
	PackageManagers = []PackageManager{PackageScoop, PackageWinget, PackageChoco, PackageNone}
	Personas        = []Persona{PersonaArchitect, PersonaHacker, PersonaAssistant}
	Strictnesses    = []Strictness{StrictnessHigh, StrictnessMedium, StrictnessLow}
)

// Config is the set of environment preferences the rules are compiled from.
// It carries no identity and lives only for the session.
type Config struct {
	WSLEnabled          bool           `mapstructure:"wsl_enabled" json:"wslEnabled" yaml:"wsl_enabled"`
	PackageManager      PackageManager `mapstructure:"package_manager" json:"packageManager" yaml:"package_manager"`
	ProjectPath         string         `mapstructure:"project_path" json:"customProjectPath" yaml:"project_path"`
	Shell               Shell          `mapstructure:"shell" json:"defaultShell" yaml:"shell"`
	IncludePathRules    bool           `mapstructure:"include_path_rules" json:"includePathRules" yaml:"include_path_rules"`
	IncludeCommandRules bool           `mapstructure:"include_command_rules" json:"includeCommandRules" yaml:"include_command_rules"`
	IncludeWSLRules     bool           `mapstructure:"include_wsl_rules" json:"includeWSLRules" yaml:"include_wsl_rules"`
	RefineLogging       bool           `mapstructure:"refine_logging" json:"refineLogging" yaml:"refine_logging"`
	Persona             Persona        `mapstructure:"persona" json:"aiPersona" yaml:"persona"`
	Strictness          Strictness     `mapstructure:"strictness" json:"securityStrictness" yaml:"strictness"`
}

// Default returns the configuration a fresh dashboard starts with
func Default() Config {
	return Config{
		WSLEnabled:          false,
		PackageManager:      PackageScoop,
		ProjectPath:         "",
		Shell:               ShellPwsh,
		IncludePathRules:    true,
		IncludeCommandRules: true,
		IncludeWSLRules:     true,
		RefineLogging:       true,
		Persona:             PersonaArchitect,
		Strictness:          StrictnessMedium,
	}
}

func (c *Config) SetWSLEnabled(v bool)               { c.WSLEnabled = v }
func (c *Config) SetPackageManager(v PackageManager) { c.PackageManager = v }
func (c *Config) SetProjectPath(v string)            { c.ProjectPath = v }
func (c *Config) SetShell(v Shell)                   { c.Shell = v }
func (c *Config) SetIncludePathRules(v bool)         { c.IncludePathRules = v }
func (c *Config) SetIncludeCommandRules(v bool)      { c.IncludeCommandRules = v }
func (c *Config) SetRefineLogging(v bool)            { c.RefineLogging = v }
func (c *Config) SetPersona(v Persona)               { c.Persona = v }
func (c *Config) SetStrictness(v Strictness)         { c.Strictness = v }
func (c *Config) TogglePathRules()                   { c.IncludePathRules = !c.IncludePathRules }
func (c *Config) ToggleCommandRules()                { c.IncludeCommandRules = !c.IncludeCommandRules }
func (c *Config) ToggleRefineLogging()               { c.RefineLogging = !c.RefineLogging }
func (c *Config) ToggleWSLEnabled()                  { c.WSLEnabled = !c.WSLEnabled }

// SetIncludeWSLRules replaces the WSL rule module flag. Turning it on
// also enables WSL, since the mapping rules are meaningless without it.
// Turning it off leaves WSLEnabled as it was: disabling the rules never
// switches WSL on.
func (c *Config) SetIncludeWSLRules(v bool) {
	c.IncludeWSLRules = v
	if v {
		c.WSLEnabled = true
	}
}

// ToggleWSLRules flips the WSL rule module, enabling WSL when it turns on
func (c *Config) ToggleWSLRules() {
	c.SetIncludeWSLRules(!c.IncludeWSLRules)
}

// WSLMapping reports whether the /mnt/c/ mapping rules apply
func (c Config) WSLMapping() bool {
	return c.IncludeWSLRules && c.WSLEnabled
}

// RootDirectory returns the project root, falling back to $HOME/Projects
func (c Config) RootDirectory() string {
	if strings.TrimSpace(c.ProjectPath) != "" {
		return c.ProjectPath
	}
	return "$HOME/Projects"
}

// Label returns the display name used by the dashboard selects
func (s Shell) Label() string {
	switch s {
	case ShellPwsh:
		return "PowerShell 7"
	case ShellPowerShell:
		return "Win PS 5.1"
	case ShellCmd:
		return "CMD"
	}
	return string(s)
}

func (p PackageManager) Label() string {
	switch p {
	case PackageScoop:
		return "Scoop"
	case PackageWinget:
		return "WinGet"
	case PackageChoco:
		return "Choco"
	case PackageNone:
		return "Manual"
	}
	return string(p)
}

func (p Persona) Label() string {
	switch p {
	case PersonaArchitect:
		return "Architect"
	case PersonaHacker:
		return "Hacker"
	case PersonaAssistant:
		return "Assistant"
	}
	return string(p)
}

func (s Strictness) Label() string {
	switch s {
	case StrictnessHigh:
		return "High"
	case StrictnessMedium:
		return "Medium"
	case StrictnessLow:
		return "Low"
	}
	return string(s)
}

// ParseShell converts user input into a Shell
func ParseShell(s string) (Shell, error) {
	return parseEnum(s, Shells, "shell")
}

// ParsePackageManager converts user input into a PackageManager
func ParsePackageManager(s string) (PackageManager, error) {
	return parseEnum(s, PackageManagers, "package manager")
}

// ParsePersona converts user input into a Persona
func ParsePersona(s string) (Persona, error) {
	return parseEnum(s, Personas, "persona")
}

// ParseStrictness converts user input into a Strictness
func ParseStrictness(s string) (Strictness, error) {
	return parseEnum(s, Strictnesses, "strictness")
}

func parseEnum[T ~string](s string, values []T, what string) (T, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, v := range values {
		if string(v) == needle {
			return v, nil
		}
	}
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = string(v)
	}
	var zero T
	return zero, fmt.Errorf("unknown %s %q (want one of %s)", what, s, strings.Join(names, ", "))
}

// Cycle returns the value step positions away from cur, wrapping around.
// Unknown values start from the first entry.
func Cycle[T comparable](values []T, cur T, step int) T {
	idx := 0
	for i, v := range values {
		if v == cur {
			idx = i
			break
		}
	}
	n := len(values)
	return values[((idx+step)%n+n)%n]
}

// Validate reports enum fields holding values outside their sets.
// Setters never call it; it guards values read from files and flags.
func (c Config) Validate() error {
	if _, err := ParseShell(string(c.Shell)); err != nil {
		return err
	}
	if _, err := ParsePackageManager(string(c.PackageManager)); err != nil {
		return err
	}
	if _, err := ParsePersona(string(c.Persona)); err != nil {
		return err
	}
	if _, err := ParseStrictness(string(c.Strictness)); err != nil {
		return err
	}
	return nil
}
