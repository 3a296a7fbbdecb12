package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"agentlayer/internal/rules"
	"agentlayer/internal/sysconfig"
)

// FileName is the log file inside the data directory
const FileName = "history.json"

// Entry records one synthesis attempt. Rule contents are never stored.
type Entry struct {
	ID             string                   `json:"id"`
	Timestamp      time.Time                `json:"timestamp"`
	Provider       string                   `json:"provider"`
	Shell          sysconfig.Shell          `json:"shell"`
	PackageManager sysconfig.PackageManager `json:"package_manager"`
	Persona        sysconfig.Persona        `json:"persona"`
	Strictness     sysconfig.Strictness     `json:"strictness"`
	Title          string                   `json:"title,omitempty"`
	RuleCount      int                      `json:"rule_count"`
	Error          string                   `json:"error,omitempty"`
	ExportPath     string                   `json:"export_path,omitempty"`
}

// Succeeded reports whether the attempt produced a rule set
func (e Entry) Succeeded() bool { return e.Error == "" }

// NewEntry summarizes the outcome of a synthesis
func NewEntry(provider string, cfg sysconfig.Config, rs *rules.RuleSet, err error) Entry {
	e := Entry{
		ID:             uuid.NewString(),
		Timestamp:      time.Now(),
		Provider:       provider,
		Shell:          cfg.Shell,
		PackageManager: cfg.PackageManager,
		Persona:        cfg.Persona,
		Strictness:     cfg.Strictness,
	}
	if err != nil {
		e.Error = err.Error()
		return e
	}
	if rs != nil {
		e.Title = rs.Title
		e.RuleCount = len(rs.Rules)
	}
	return e
}

// History is the capped on-disk log of attempts
type History struct {
	mu         sync.Mutex
	dataDir    string
	Entries    []Entry `json:"entries"`
	MaxEntries int     `json:"-"` // oldest entries are dropped past this
}

func New(dataDir string) *History {
	return &History{
		dataDir:    dataDir,
		MaxEntries: 50,
	}
}

// Path returns the log file location
func (h *History) Path() string {
	return filepath.Join(h.dataDir, FileName)
}

// Load reads the log from disk. A missing file is an empty log.
func (h *History) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := os.ReadFile(h.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, h); err != nil {
		return err
	}
	h.trim()
	return nil
}

// Save writes the log to disk
func (h *History) Save() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(h.dataDir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(h.Path(), data, 0644)
}

// Record appends e, dropping the oldest entries past MaxEntries
func (h *History) Record(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	h.Entries = append(h.Entries, e)
	h.trim()
}

// MarkExported stores the export path on the entry with id
func (h *History) MarkExported(id, path string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.Entries {
		if h.Entries[i].ID == id {
			h.Entries[i].ExportPath = path
			return true
		}
	}
	return false
}

// List returns the entries, newest first, at most limit of them (0 for all)
func (h *History) List(limit int) []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.Entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := len(h.Entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.Entries[i])
	}
	return out
}

// Clear empties the log in memory
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Entries = nil
}

func (h *History) trim() {
	if h.MaxEntries > 0 && len(h.Entries) > h.MaxEntries {
		h.Entries = append([]Entry(nil), h.Entries[len(h.Entries)-h.MaxEntries:]...)
	}
}
