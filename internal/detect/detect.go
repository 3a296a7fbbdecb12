package detect

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"agentlayer/internal/logger"
	"agentlayer/internal/sysconfig"
)

// Runner runs one probe command and returns its combined output
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// Probe is one tool to look for
type Probe struct {
	Tool string
	Args []string
}

// DefaultProbes covers the shells, package managers and WSL
var DefaultProbes = []Probe{
	{Tool: "pwsh", Args: []string{"--version"}},
	{Tool: "powershell", Args: []string{"-NoProfile", "-NonInteractive", "-Command", "$PSVersionTable.PSVersion.ToString()"}},
	{Tool: "scoop", Args: []string{"--version"}},
	{Tool: "winget", Args: []string{"--version"}},
	{Tool: "choco", Args: []string{"--version"}},
	{Tool: "wsl", Args: []string{"--version"}},
}

// Result is the outcome of one probe
type Result struct {
	Tool    string        `json:"tool"`
	Found   bool          `json:"found"`
	Version string        `json:"version,omitempty"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Report holds probe results in probe order
type Report struct {
	Results []Result `json:"results"`
}

// Detector probes the machine for the tools rules can target
type Detector struct {
	Run     Runner
	Timeout time.Duration // per probe
	Probes  []Probe
}

func New() *Detector {
	return &Detector{
		Run:     execRunner,
		Timeout: 5 * time.Second,
		Probes:  DefaultProbes,
	}
}

// Detect runs all probes concurrently. A missing tool is a result, not an
// error; only cancellation of ctx fails the whole call.
func (d *Detector) Detect(ctx context.Context) (*Report, error) {
	results := make([]Result, len(d.Probes))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range d.Probes {
		g.Go(func() error {
			results[i] = d.probe(gctx, p)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Report{Results: results}, nil
}

func (d *Detector) probe(ctx context.Context, p Probe) Result {
	start := time.Now()
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	out, err := d.Run(ctx, p.Tool, p.Args...)
	r := Result{Tool: p.Tool, Elapsed: time.Since(start)}
	if err != nil {
		r.Error = err.Error()
		logger.Debug("probe %s: not found (%v)", p.Tool, err)
		return r
	}

	r.Found = true
	r.Version = firstLine(out)
	logger.Debug("probe %s: %s", p.Tool, r.Version)
	return r
}

// Has reports whether tool answered its probe
func (r *Report) Has(tool string) bool {
	for _, res := range r.Results {
		if res.Tool == tool {
			return res.Found
		}
	}
	return false
}

// Apply writes what was found into cfg. pwsh wins over Windows PowerShell,
// the first package manager found in scoop, winget, choco order is used,
// and WSL is switched on or off to match. Toggles are left alone.
func (r *Report) Apply(cfg *sysconfig.Config) {
	switch {
	case r.Has("pwsh"):
		cfg.SetShell(sysconfig.ShellPwsh)
	case r.Has("powershell"):
		cfg.SetShell(sysconfig.ShellPowerShell)
	default:
		cfg.SetShell(sysconfig.ShellCmd)
	}

	pm := sysconfig.PackageNone
	for _, cand := range []sysconfig.PackageManager{sysconfig.PackageScoop, sysconfig.PackageWinget, sysconfig.PackageChoco} {
		if r.Has(string(cand)) {
			pm = cand
			break
		}
	}
	cfg.SetPackageManager(pm)

	cfg.SetWSLEnabled(r.Has("wsl"))
}

func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return out.String(), nil
}

// firstLine returns the first non-empty line, dropping progress-bar
// carriage returns and the NUL bytes wsl.exe emits in UTF-16 output
func firstLine(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, line := range strings.Split(s, "\n") {
		if idx := strings.LastIndexByte(line, '\r'); idx != -1 {
			line = line[idx+1:]
		}
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
