package cli

import (
	"errors"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tradecopilot/internal/agents"
	apperrors "tradecopilot/internal/errors"
	"tradecopilot/internal/metrics"
	"tradecopilot/internal/resilience"
	"tradecopilot/internal/server"
	"tradecopilot/internal/session"
)

func newServeCmd(app *App) *cobra.Command {
	var (
		addr      string
		autostart bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API, live stream and metrics",
		Long: `Serve the copilot dashboard over HTTP.

Routes include /api/state, /api/run, /api/pause, /api/manual, /api/settings,
/api/insight, /api/charts, /ws for the live stream and /metrics for Prometheus.`,
		Example: `  copilot serve
  copilot serve --addr :9090 --start`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = app.Config.Server.Addr
			}

			recorder := metrics.New()
			opts := server.Options{Addr: addr, Recorder: recorder, Logger: app.Logger}
			driverOpts := session.DriverOptions{
				Interval: app.Config.Trading.TickInterval,
				Recorder: recorder,
				Logger:   app.Logger,
			}

			journal, err := app.OpenJournal()
			switch {
			case err == nil:
				defer journal.Close()
				opts.Journal = journal
				driverOpts.Journal = journal
			case !errors.Is(err, apperrors.ErrJournalDisabled):
				return err
			}

			ctx, cancel := ossignal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			s := session.New(app.Settings(), app.Config.SignalConfig(), nil, nil)
			driver := session.NewDriver(s, driverOpts)
			go driver.Run(ctx)
			defer func() {
				cancel()
				<-driver.Done()
			}()

			health := resilience.NewHealthMonitor(nil)
			health.RegisterComponent("driver", resilience.LoopHealthCheck(driver.Done()))
			if journal != nil {
				health.RegisterComponent("journal", resilience.DatabaseHealthCheck(journal.Ping))
			}

			analyst := app.NewAnalyst(recorder)
			if analyst.Configured() {
				health.RegisterComponent("analyst", resilience.BreakerHealthCheck(analyst.Breaker()))
			}
			desk := agents.NewDesk(analyst, nil)
			defer desk.Close()
			desk.OnUpdate(func(c agents.Commentary) {
				app.Logger.Debug().Str("kind", c.Kind).Int("chars", len(c.Text)).Msg("Commentary updated")
			})

			opts.Driver = driver
			opts.Desk = desk
			opts.Health = health
			if rpm := app.Config.Analyst.RequestsPerMinute; rpm > 0 {
				opts.AnalystLimiter = resilience.PerMinute(rpm, app.Config.Analyst.Burst, nil)
			}
			srv := server.New(opts)

			if autostart {
				if err := driver.Start(ctx); err != nil {
					return err
				}
			}

			if !analyst.Configured() {
				app.Logger.Warn().Msg("No AI credential configured, analyst commentary disabled")
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&autostart, "start", false, "start ticking immediately")

	return cmd
}
