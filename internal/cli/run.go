package cli

import (
	"errors"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	apperrors "tradecopilot/internal/errors"
	"tradecopilot/internal/models"
	"tradecopilot/internal/session"
)

func newRunCmd(app *App) *cobra.Command {
	var (
		asset     string
		contracts int
		ticks     int
		interval  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulated session in the terminal",
		Long: `Run the simulated trading session and print each tick.

The session stops after --ticks ticks, when the daily loss limit is hit, or on Ctrl+C.`,
		Example: `  copilot run
  copilot run --asset DOL --contracts 2 --ticks 100 --interval 200ms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			settings := app.Settings()
			if asset != "" {
				settings.Asset = models.ParseAsset(asset)
			}
			if contracts > 0 {
				settings.Contracts = contracts
			}
			if interval <= 0 {
				interval = app.Config.Trading.TickInterval
			}

			opts := session.DriverOptions{Interval: interval, Logger: app.Logger}
			journal, err := app.OpenJournal()
			switch {
			case err == nil:
				defer journal.Close()
				opts.Journal = journal
			case !errors.Is(err, apperrors.ErrJournalDisabled):
				return err
			}

			ctx, cancel := ossignal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			s := session.New(settings, app.Config.SignalConfig(), nil, nil)
			driver := session.NewDriver(s, opts)
			views, unsubscribe := driver.Subscribe()
			defer unsubscribe()

			go driver.Run(ctx)
			defer func() {
				cancel()
				<-driver.Done()
			}()

			if err := driver.Start(ctx); err != nil {
				return err
			}

			if !output.IsJSON() {
				spec := settings.Asset.Spec()
				output.Bold("%s (%s) x%d", settings.Asset, spec.Name, settings.Contracts)
				output.Println(output.DimText("Max per trade " + FormatBRL(settings.Budget.MaxRiskPerTrade) +
					" | Max daily loss " + FormatBRL(settings.Budget.MaxDailyLoss)))
				output.Println()
			}

			last := driver.View()
			tape := newTickPrinter(output, last)
			for {
				select {
				case <-ctx.Done():
					tape.summary(driver.View())
					return nil
				case v, ok := <-views:
					if !ok {
						tape.summary(last)
						return nil
					}
					last = v
					tape.print(v)
					if v.Risk.Blocked {
						if !output.IsJSON() {
							output.Warning("Daily loss limit reached, session blocked")
						}
						tape.summary(v)
						return nil
					}
					if ticks > 0 && tape.ticks >= ticks {
						tape.summary(v)
						return nil
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&asset, "asset", "", "asset to simulate: "+assetChoices()+" (default from config)")
	cmd.Flags().IntVar(&contracts, "contracts", 0, "number of contracts (default from config)")
	cmd.Flags().IntVar(&ticks, "ticks", 0, "stop after this many ticks (0 runs until interrupted)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "tick interval (default from config)")

	return cmd
}

// tickPrinter renders published views as a tape, one line per new tick and
// one line per signal event.
type tickPrinter struct {
	output   *Output
	ticks    int
	lastTick time.Time
	signalID string
	closedID string
}

func newTickPrinter(output *Output, initial session.View) *tickPrinter {
	p := &tickPrinter{output: output, lastTick: initial.UpdatedAt}
	if initial.Signal != nil {
		p.signalID = initial.Signal.ID
	}
	if initial.LastClosed != nil {
		p.closedID = initial.LastClosed.Signal.ID
	}
	return p
}

func (p *tickPrinter) print(v session.View) {
	if !v.UpdatedAt.After(p.lastTick) {
		return
	}
	p.lastTick = v.UpdatedAt
	p.ticks++

	if p.output.IsJSON() {
		_ = p.output.JSON(v)
		return
	}

	o := p.output
	snap := v.Snapshot
	o.Printf("%s  %s  %-7s  buy %s  sell %s  agg %d/%d  P&L %s\n",
		o.DimText(FormatTime(snap.Timestamp)),
		o.BoldText(FormatPrice(snap.Price)),
		o.BiasText(v.Bias),
		o.Green(FormatRange(v.Zones.Buy.Min, v.Zones.Buy.Max)),
		o.Red(FormatRange(v.Zones.Sell.Min, v.Zones.Sell.Max)),
		snap.AggressionBuy, snap.AggressionSell,
		o.PnLText(v.Risk.CurrentPnL),
	)
	for _, z := range v.NearReference {
		o.Info("  near %s %s (%s)", z.Label, FormatPrice(z.Price), z.Kind)
	}

	if c := v.LastClosed; c != nil && c.Signal.ID != p.closedID {
		p.closedID = c.Signal.ID
		if c.Outcome == models.OutcomeTarget {
			o.Success("%s closed at target %s: %s", c.Signal.Direction, FormatPrice(c.ExitPrice), FormatPnL(c.PnL))
		} else {
			o.Error("%s stopped at %s: %s", c.Signal.Direction, FormatPrice(c.ExitPrice), FormatPnL(c.PnL))
		}
	}
	if sig := v.Signal; sig != nil && sig.ID != p.signalID {
		p.signalID = sig.ID
		o.Printf("  %s entry %s stop %s target %s / %s  R:R %.1f  risk %s reward %s\n",
			o.DirectionText(sig.Direction),
			FormatPrice(sig.EntryPrice), FormatPrice(sig.StopLoss),
			FormatPrice(sig.Target1), FormatPrice(sig.TargetFinal),
			sig.RiskRewardRatio,
			o.Red(FormatBRL(v.SignalRisk)), o.Green(FormatBRL(v.SignalReward)))
		o.Println("  " + o.DimText(sig.Reason))
	}
}

func (p *tickPrinter) summary(v session.View) {
	if p.output.IsJSON() {
		return
	}
	o := p.output
	o.Println()
	o.Box("Session summary", []string{
		fmt.Sprintf("Ticks:       %d", p.ticks),
		fmt.Sprintf("Trades:      %d (%d wins, %d losses)", v.Risk.TradesCount, v.Risk.Wins, v.Risk.Losses),
		"Day P&L:     " + o.PnLText(v.Risk.CurrentPnL),
		"Limit used:  " + FormatPercent(v.LossPercent),
		"Loss left:   " + FormatBRL(v.RemainingLoss),
	})
}
