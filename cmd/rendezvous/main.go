package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lumen-chat/rendezvous/internal/api"
	"github.com/lumen-chat/rendezvous/internal/config"
	"github.com/lumen-chat/rendezvous/internal/eligibility"
	"github.com/lumen-chat/rendezvous/internal/engine"
	"github.com/lumen-chat/rendezvous/internal/resume"
	"github.com/lumen-chat/rendezvous/internal/reveal"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	envFile    string
	scenarioID string
	verbose    bool
	assumeYes  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rendezvous",
		Short: "Rendezvous - interactive date session client",
		Long: `Rendezvous drives the companion-chat date feature from the terminal:
eligibility checks, a full branching playthrough with choice and free-input
submission, the one-time paid extension at the checkpoint, and resumption
of interrupted sessions.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	dateCmd := &cobra.Command{
		Use:   "date <counterpart-id>",
		Short: "Start (or continue) a date with a counterpart",
		Long: `Run a full interactive date session:
1. Check eligibility (emotion, cooldown, stamina, unfinished session)
2. Play through the stages, picking options or submitting free text
3. Decide at the checkpoint whether to buy the one-time extension
4. Read the ending and collect rewards`,
		Args: cobra.ExactArgs(1),
		RunE: runDate,
	}
	dateCmd.Flags().StringVar(&scenarioID, "scenario", "cafe", "Scenario (location) for the date")

	statusCmd := &cobra.Command{
		Use:   "status <counterpart-id>",
		Short: "Show date eligibility for a counterpart",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}

	resumeCmd := &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Resume an interrupted session",
		Long:  "Fetch the authoritative session snapshot and continue playing from the current stage",
		Args:  cobra.ExactArgs(1),
		RunE:  runResume,
	}

	abandonCmd := &cobra.Command{
		Use:   "abandon <session-id>",
		Short: "Abandon a session permanently",
		Long:  "Abandoning is irreversible; to merely set a session aside, exit the playthrough instead (it stays resumable)",
		Args:  cobra.ExactArgs(1),
		RunE:  runAbandon,
	}
	abandonCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")

	resetCooldownCmd := &cobra.Command{
		Use:   "reset-cooldown <counterpart-id>",
		Short: "Spend credits to clear a date cooldown",
		Args:  cobra.ExactArgs(1),
		RunE:  runResetCooldown,
	}

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List locally known unfinished sessions",
		RunE:  runSessions,
	}

	rootCmd.AddCommand(dateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(abandonCmd)
	rootCmd.AddCommand(resetCooldownCmd)
	rootCmd.AddCommand(sessionsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired components shared by every subcommand.
type app struct {
	cfg       *config.Config
	secrets   *config.Secrets
	logger    *slog.Logger
	apiClient *api.Client
	gate      *eligibility.Gate
	store     *resume.Store
	engine    *engine.Engine
	resumer   *resume.Controller
	revealer  *reveal.Revealer
	input     *bufio.Scanner
}

func newApp() (*app, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load env file: %v\n", err)
		}
	}

	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	apiClient := api.NewClient(cfg.Service, secrets, logger)
	gate := eligibility.New(apiClient, logger)

	store, err := resume.NewStore(filepath.Join(cfg.Session.DataDir, "pointers"), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open pointer store: %w", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	eng := engine.New(apiClient, gate, store, rng, logger)
	resumer := resume.NewController(apiClient, store, rng, logger)
	revealer := reveal.New(os.Stdout, cfg.Reveal.CharsPerSecond, cfg.Reveal.Enabled)

	return &app{
		cfg:       cfg,
		secrets:   secrets,
		logger:    logger,
		apiClient: apiClient,
		gate:      gate,
		store:     store,
		engine:    eng,
		resumer:   resumer,
		revealer:  revealer,
		input:     bufio.NewScanner(os.Stdin),
	}, nil
}

// prompt prints a question and reads one trimmed line from stdin.
func (a *app) prompt(question string) string {
	fmt.Print(question)
	if !a.input.Scan() {
		return ""
	}
	return strings.TrimSpace(a.input.Text())
}

func (a *app) confirm(question string) bool {
	answer := a.prompt(question + " [y/N]: ")
	return answer == "y" || answer == "Y" || answer == "yes"
}
