package rules

// Importance is the ordinal weight the model attaches to a rule
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// Importances lists the accepted values, lowest first
var Importances = []Importance{ImportanceLow, ImportanceMedium, ImportanceHigh}

// Valid reports whether i is one of the declared importance levels
func (i Importance) Valid() bool {
	for _, v := range Importances {
		if i == v {
			return true
		}
	}
	return false
}

// GeneratedRule is one rule produced by the model
type GeneratedRule struct {
	Category       string     `json:"category" yaml:"category"`
	Rule           string     `json:"rule" yaml:"rule"`
	CommandSnippet string     `json:"commandSnippet,omitempty" yaml:"command_snippet,omitempty"`
	Importance     Importance `json:"importance" yaml:"importance"`
	ContextTip     string     `json:"contextTip,omitempty" yaml:"context_tip,omitempty"`
}

// RuleSet is the structured result of one synthesis request.
// It is replaced wholesale by the next successful request.
type RuleSet struct {
	Title       string          `json:"title" yaml:"title"`
	Description string          `json:"description" yaml:"description"`
	Rules       []GeneratedRule `json:"rules" yaml:"rules"`
	LogTemplate string          `json:"logTemplate" yaml:"log_template"`
	InitScript  string          `json:"initScript,omitempty" yaml:"init_script,omitempty"`
}

// SchemaName identifies the declared output schema to providers that need a name
const SchemaName = "rule_set"

// Schema returns the declared output schema as a JSON-schema document
func Schema() map[string]any {
	str := func(desc string) map[string]any {
		s := map[string]any{"type": "string"}
		if desc != "" {
			s["description"] = desc
		}
		return s
	}
	importance := make([]any, 0, len(Importances))
	for i := len(Importances) - 1; i >= 0; i-- {
		importance = append(importance, string(Importances[i]))
	}
	rule := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"category":       str(""),
			"rule":           str(""),
			"commandSnippet": str(""),
			"importance": map[string]any{
				"type": "string",
				"enum": importance,
			},
			"contextTip": str("When this rule applies, in one sentence"),
		},
		"required": []any{"category", "rule", "importance"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":       str(""),
			"description": str(""),
			"logTemplate": str("A markdown template for logging tasks in GEMINI.md"),
			"initScript":  str("A script that prepares the shell for the agent"),
			"rules": map[string]any{
				"type":  "array",
				"items": rule,
			},
		},
		"required": []any{"title", "description", "rules", "logTemplate"},
	}
}
