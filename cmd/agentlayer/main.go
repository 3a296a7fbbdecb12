package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"agentlayer/internal/config"
	"agentlayer/internal/history"
	"agentlayer/internal/llm"
	"agentlayer/internal/logger"
	"agentlayer/internal/safety"
	"agentlayer/internal/synth"
	"agentlayer/internal/ui"
)

// Set by compiler via -ldflags
var version = "dev"

// app carries what every subcommand needs once the root has loaded it
type app struct {
	configFile string
	verbose    bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "agentlayer",
		Short: "Compile Windows 11 agent rules into a GEMINI.md memory file",
		Long: `agentlayer turns a description of a Windows 11 developer environment
(shell, package manager, WSL, rule modules) into a structured rule set
generated by a language model, and exports it as a GEMINI.md file.

Run without arguments to open the dashboard.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(a.configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			if err := logger.Init(logger.DefaultRotation(cfg.LogPath()), a.verbose); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			logger.WithFields(map[string]any{
				"command":  cmd.Name(),
				"provider": cfg.Provider,
				"config":   cfg.File,
			}).Info("agentlayer starting")
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDashboard(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default: ./config.yaml or ~/.agentlayer/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		a.generateCmd(),
		a.promptCmd(),
		a.detectCmd(),
		a.renderCmd(),
		a.guideCmd(),
		a.historyCmd(),
	)
	return root
}

// runDashboard opens the interactive dashboard until the user quits
func (a *app) runDashboard(ctx context.Context) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return errors.New("the dashboard needs a terminal; use 'agentlayer generate' in scripts")
	}

	gen, err := llm.New(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer gen.Close()

	hist := history.New(a.cfg.DataDirectory())
	if err := hist.Load(); err != nil {
		logger.Error("could not load history: %v", err)
	}

	sess := synth.NewSession(synth.NewClient(gen, a.cfg.RequestTimeout), a.cfg.Profile)
	m := ui.NewModel(ctx, ui.Options{
		Session:    sess,
		Safety:     safety.NewChecker(),
		History:    hist,
		Provider:   gen.Name(),
		ExportPath: a.cfg.OutputPath,
		Header:     a.cfg.Header,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
