package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"agentlayer/internal/detect"
	"agentlayer/internal/history"
	"agentlayer/internal/llm"
	"agentlayer/internal/logger"
	"agentlayer/internal/rules"
	"agentlayer/internal/safety"
	"agentlayer/internal/synth"
	"agentlayer/internal/sysconfig"
)

// newDetector builds the environment prober used by detect and --detect
var newDetector = detect.New

// profileFlags overrides the configured profile from the command line
type profileFlags struct {
	shell          string
	packageManager string
	persona        string
	strictness     string
	projectPath    string
	wsl            bool
	pathRules      bool
	commandRules   bool
	wslRules       bool
	logging        bool
	detect         bool
}

func (p *profileFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&p.shell, "shell", "", "primary shell: pwsh, powershell or cmd")
	f.StringVar(&p.packageManager, "package-manager", "", "scoop, winget, choco or none")
	f.StringVar(&p.persona, "persona", "", "architect, hacker or assistant")
	f.StringVar(&p.strictness, "strictness", "", "security strictness: high, medium or low")
	f.StringVar(&p.projectPath, "project-path", "", "project root (default $HOME/Projects)")
	f.BoolVar(&p.wsl, "wsl", false, "WSL2 is installed")
	f.BoolVar(&p.pathRules, "path-rules", true, "include Windows path rules")
	f.BoolVar(&p.commandRules, "command-rules", true, "include shell command rules")
	f.BoolVar(&p.wslRules, "wsl-rules", true, "include WSL path translation rules (enables --wsl)")
	f.BoolVar(&p.logging, "logging", true, "include refined logging instructions")
	f.BoolVar(&p.detect, "detect", false, "probe the machine for shells, package managers and WSL first")
}

// apply layers detection and explicitly set flags over cfg, in that order
func (p *profileFlags) apply(cmd *cobra.Command, cfg *sysconfig.Config) error {
	if p.detect {
		rep, err := newDetector().Detect(cmd.Context())
		if err != nil {
			return fmt.Errorf("detection failed: %w", err)
		}
		rep.Apply(cfg)
	}

	f := cmd.Flags()
	if f.Changed("shell") {
		v, err := sysconfig.ParseShell(p.shell)
		if err != nil {
			return err
		}
		cfg.SetShell(v)
	}
	if f.Changed("package-manager") {
		v, err := sysconfig.ParsePackageManager(p.packageManager)
		if err != nil {
			return err
		}
		cfg.SetPackageManager(v)
	}
	if f.Changed("persona") {
		v, err := sysconfig.ParsePersona(p.persona)
		if err != nil {
			return err
		}
		cfg.SetPersona(v)
	}
	if f.Changed("strictness") {
		v, err := sysconfig.ParseStrictness(p.strictness)
		if err != nil {
			return err
		}
		cfg.SetStrictness(v)
	}
	if f.Changed("project-path") {
		cfg.SetProjectPath(p.projectPath)
	}
	if f.Changed("wsl") {
		cfg.SetWSLEnabled(p.wsl)
	}
	if f.Changed("path-rules") {
		cfg.SetIncludePathRules(p.pathRules)
	}
	if f.Changed("command-rules") {
		cfg.SetIncludeCommandRules(p.commandRules)
	}
	if f.Changed("wsl-rules") {
		cfg.SetIncludeWSLRules(p.wslRules)
	}
	if f.Changed("logging") {
		cfg.SetRefineLogging(p.logging)
	}
	return nil
}

// encode writes rs in the requested format
func encode(w io.Writer, rs *rules.RuleSet, format string, opts rules.ExportOptions) error {
	switch format {
	case "md", "markdown":
		_, err := io.WriteString(w, rules.Markdown(rs, opts))
		return err
	case "yaml", "yml":
		out, err := rules.YAML(rs)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rs)
	}
	return fmt.Errorf("unknown format %q (want md, yaml or json)", format)
}

// writeOutput sends rs to path, or to the command's stdout when path is "-"
func writeOutput(cmd *cobra.Command, rs *rules.RuleSet, path, format string, opts rules.ExportOptions) error {
	if path == "-" {
		return encode(cmd.OutOrStdout(), rs, format, opts)
	}
	var buf bytes.Buffer
	if err := encode(&buf, rs, format, opts); err != nil {
		return err
	}
	if err := rules.WriteFile(path, buf.Bytes()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d rules to %s\n", len(rs.Rules), path)
	return nil
}

func printFindings(w io.Writer, rs *rules.RuleSet, strictness sysconfig.Strictness) {
	for _, f := range safety.NewChecker().Review(rs, strictness) {
		fmt.Fprintf(w, "warning: rule %d (%s) %s: %s\n    %s\n", f.Index+1, f.Category, f.Level, f.Reason, f.Command)
	}
}

func (a *app) generateCmd() *cobra.Command {
	var (
		pf     profileFlags
		out    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run one synthesis and export the rule set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile := a.cfg.Profile
			if err := pf.apply(cmd, &profile); err != nil {
				return err
			}
			if !cmd.Flags().Changed("out") {
				out = a.cfg.OutputPath
			}

			gen, err := llm.New(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer gen.Close()

			hist := history.New(a.cfg.DataDirectory())
			if err := hist.Load(); err != nil {
				logger.Error("could not load history: %v", err)
			}

			rs, err := synth.NewClient(gen, a.cfg.RequestTimeout).Synthesize(cmd.Context(), profile)
			entry := history.NewEntry(gen.Name(), profile, rs, err)
			hist.Record(entry)
			defer func() {
				if serr := hist.Save(); serr != nil {
					logger.Error("saving history: %v", serr)
				}
			}()
			if err != nil {
				return fmt.Errorf("%s (%w)", synth.UserMessage(err), err)
			}

			printFindings(cmd.ErrOrStderr(), rs, profile.Strictness)

			opts := rules.ExportOptions{Header: a.cfg.Header, Shell: string(profile.Shell)}
			if err := writeOutput(cmd, rs, out, format, opts); err != nil {
				return err
			}
			if out != "-" {
				hist.MarkExported(entry.ID, out)
			}
			return nil
		},
	}

	pf.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", `output file, "-" for stdout (default from output_path)`)
	cmd.Flags().StringVarP(&format, "format", "f", "md", "output format: md, yaml or json")
	return cmd
}

func (a *app) promptCmd() *cobra.Command {
	var pf profileFlags

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the compiled instruction and prompt without calling a model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile := a.cfg.Profile
			if err := pf.apply(cmd, &profile); err != nil {
				return err
			}
			req := synth.Request(profile)
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "=== system ===\n%s\n\n=== prompt ===\n%s", req.System, req.Prompt)
			return nil
		},
	}
	pf.register(cmd)
	return cmd
}

func (a *app) detectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Probe for shells, package managers and WSL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := newDetector().Detect(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TOOL\tFOUND\tVERSION")
			for _, r := range rep.Results {
				fmt.Fprintf(tw, "%s\t%t\t%s\n", r.Tool, r.Found, r.Version)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			suggested := a.cfg.Profile
			rep.Apply(&suggested)
			fmt.Fprintf(w, "\nSuggested: shell=%s package_manager=%s wsl_enabled=%t\n",
				suggested.Shell, suggested.PackageManager, suggested.WSLEnabled)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func (a *app) guideCmd() *cobra.Command {
	var shell string

	cmd := &cobra.Command{
		Use:   "guide",
		Short: "Print the steps that put an exported memory file to use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sh := a.cfg.Profile.Shell
			if cmd.Flags().Changed("shell") {
				v, err := sysconfig.ParseShell(shell)
				if err != nil {
					return err
				}
				sh = v
			}
			steps := rules.DeploymentGuide(a.cfg.OutputPath, string(sh))
			_, err := io.WriteString(cmd.OutOrStdout(), rules.GuideMarkdown(steps))
			return err
		},
	}
	cmd.Flags().StringVar(&shell, "shell", "", "shell for the snippets (default from profile)")
	return cmd
}

func (a *app) renderCmd() *cobra.Command {
	var (
		out    string
		format string
		shell  string
		header string
	)

	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Re-render a saved rule set JSON file",
		Long:  "Reads a rule set in the model's JSON response format and writes it in another format. Use - to read stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			rs, err := rules.Parse(string(data))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			if header == "" {
				header = a.cfg.Header
			}
			if shell == "" {
				shell = string(a.cfg.Profile.Shell)
			}
			return writeOutput(cmd, rs, out, format, rules.ExportOptions{Header: header, Shell: shell})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", `output file, "-" for stdout`)
	cmd.Flags().StringVarP(&format, "format", "f", "md", "output format: md, yaml or json")
	cmd.Flags().StringVar(&shell, "shell", "", "fence language for the init script")
	cmd.Flags().StringVar(&header, "header", "", "document heading")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var (
		limit    int
		clearAll bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past synthesis attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hist := history.New(a.cfg.DataDirectory())
			if err := hist.Load(); err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			if clearAll {
				hist.Clear()
				if err := hist.Save(); err != nil {
					return err
				}
				fmt.Fprintln(w, "History cleared")
				return nil
			}

			entries := hist.List(limit)
			if len(entries) == 0 {
				fmt.Fprintln(w, "No history yet")
				return nil
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tPROVIDER\tSHELL\tPKG\tRULES\tRESULT")
			for _, e := range entries {
				result := e.Title
				if !e.Succeeded() {
					result = "error: " + e.Error
				} else if e.ExportPath != "" {
					result += " -> " + e.ExportPath
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					e.Timestamp.Format("2006-01-02 15:04"), e.Provider, e.Shell, e.PackageManager, e.RuleCount, result)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "entries to show, 0 for all")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete all entries")
	return cmd
}
