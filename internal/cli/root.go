package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tradecopilot/internal/agents"
	"tradecopilot/internal/config"
	apperrors "tradecopilot/internal/errors"
	"tradecopilot/internal/logging"
	"tradecopilot/internal/models"
	"tradecopilot/internal/resilience"
	"tradecopilot/internal/security"
	"tradecopilot/internal/session"
	"tradecopilot/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-16"
)

// App holds the application dependencies. Config is loaded from the --config
// directory before any command runs unless it is already set.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger

	// NewClient builds the AI client; nil means the OpenAI client from credentials.
	NewClient func(cfg *config.Config) agents.LLMClient
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "copilot",
		Short: "Trade copilot - educational dollar futures simulator",
		Long: `Trade copilot simulates a B3 dollar futures session (WDO/DOL).

It generates synthetic ticks, classifies market bias, computes entry zones and
emits simulated trade signals under a daily loss limit. An optional AI analyst
comments on the market and on chart screenshots.

No orders are ever sent to a real market.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.Config == nil {
				dir, _ := cmd.Flags().GetString("config")
				if dir == "" {
					dir = config.DefaultConfigDir()
				}
				cfg, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.Config = cfg
				app.ConfigDir = dir
				app.Logger = logging.NewLoggerWithConfig(cfg.Log)
			}

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/tradecopilot)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newZonesCmd())
	rootCmd.AddCommand(newInsightCmd(app))
	rootCmd.AddCommand(newChartsCmd(app))
	rootCmd.AddCommand(newJournalCmd(app))

	return rootCmd
}

// Settings returns the session settings from configuration.
func (a *App) Settings() session.Settings {
	return session.Settings{
		Asset:     a.Config.Asset(),
		Contracts: a.Config.Trading.Contracts,
		Budget:    a.Config.RiskBudget(),
	}
}

// NewAnalyst builds the analyst. Without a credential it answers with the
// not-configured message.
func (a *App) NewAnalyst(observer agents.Observer) *agents.Analyst {
	var client agents.LLMClient
	switch {
	case a.NewClient != nil:
		client = a.NewClient(a.Config)
	case a.Config.HasAnalystCredential():
		creds := a.Config.Credentials.OpenAI
		client = agents.NewOpenAIClient(creds.APIKey, creds.BaseURL, a.Config.Analyst.Model, a.Config.Analyst.VisionModel)
		a.Logger.Debug().Str("model", a.Config.Analyst.Model).Msg("OpenAI client initialized")
	}

	analyst := agents.NewAnalyst(client, agents.AnalystConfig{
		Timeout: a.Config.Analyst.Timeout,
		Breaker: resilience.Config{
			FailureThreshold: a.Config.Analyst.FailureThreshold,
			Cooldown:         a.Config.Analyst.Cooldown,
		},
	}, a.Logger)
	if observer != nil {
		analyst.SetObserver(observer)
	}
	return analyst
}

// OpenJournal opens the signal journal, or returns ErrJournalDisabled.
func (a *App) OpenJournal() (*store.SQLiteJournal, error) {
	if !a.Config.Journal.Enabled {
		return nil, apperrors.ErrJournalDisabled
	}
	path := a.Config.Journal.Path
	if path == "" {
		path = filepath.Join(a.configDir(), "journal.db")
	}
	journal, err := store.NewSQLiteJournal(path)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", path).Msg("Journal opened")
	return journal, nil
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// assetChoices lists the supported assets for flag help.
func assetChoices() string {
	names := make([]string, 0, len(models.Assets()))
	for _, asset := range models.Assets() {
		names = append(names, string(asset))
	}
	return strings.Join(names, " or ")
}

func (a *App) configDir() string {
	if a.ConfigDir != "" {
		return a.ConfigDir
	}
	return config.DefaultConfigDir()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("Trade copilot v%s\n", Version)
			output.Println(output.DimText("Build date: " + BuildDate))
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			redacted := *app.Config
			if redacted.Credentials.OpenAI.APIKey != "" {
				redacted.Credentials.OpenAI.APIKey = security.MaskCredential(redacted.Credentials.OpenAI.APIKey)
			}
			if output.IsJSON() {
				return output.JSON(redacted)
			}
			showConfig(output, &redacted)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": app.configDir()})
			}
			output.Println(app.configDir())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if data, err := os.ReadFile(filepath.Join(app.configDir(), "config.toml")); err == nil && security.ContainsSecret(string(data)) {
				err := apperrors.NewValidationError("config.toml", "(masked)", "contains a credential; move it to credentials.toml")
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Trading")
	output.Printf("  Asset:           %s (%s)\n", cfg.Asset(), cfg.Asset().Spec().Name)
	output.Printf("  Contracts:       %d\n", cfg.Trading.Contracts)
	output.Printf("  Capital:         %s\n", FormatBRL(cfg.Trading.Capital))
	output.Printf("  Tick interval:   %s\n", cfg.Trading.TickInterval)
	output.Printf("  Session:         %s - %s\n", cfg.Trading.StartTime, cfg.Trading.EndTime)
	output.Println()

	output.Bold("Risk")
	output.Printf("  Max per trade:   %s\n", FormatBRL(cfg.Risk.MaxRiskPerTrade))
	output.Printf("  Max daily loss:  %s\n", FormatBRL(cfg.Risk.MaxDailyLoss))
	output.Println()

	output.Bold("Signals")
	output.Printf("  Activation:      %.0f%%\n", cfg.Signal.ActivationProbability*100)
	output.Printf("  Stop / target:   %.1f / %.1f pts\n", cfg.Signal.StopPoints, cfg.Signal.TargetPoints)
	output.Println()

	output.Bold("Analyst")
	output.Printf("  Model:           %s\n", cfg.Analyst.Model)
	output.Printf("  Vision model:    %s\n", cfg.Analyst.VisionModel)
	output.Printf("  Timeout:         %s\n", cfg.Analyst.Timeout)
	if cfg.HasAnalystCredential() {
		output.Printf("  Credential:      %s\n", output.Green("configured"))
	} else {
		output.Printf("  Credential:      %s\n", output.Yellow("missing"))
	}
	output.Println()

	output.Bold("Server")
	output.Printf("  Address:         %s\n", cfg.Server.Addr)
	output.Printf("  Journal:         %v %s\n", cfg.Journal.Enabled, output.DimText(cfg.Journal.Path))
}
