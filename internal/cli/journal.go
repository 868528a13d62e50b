package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tradecopilot/internal/models"
	"tradecopilot/internal/store"
)

func newJournalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the simulated signal journal",
		Long: `Inspect signals recorded by run and serve.

The journal is off by default; enable it with [journal] enabled = true.`,
	}

	cmd.AddCommand(newJournalListCmd(app))
	cmd.AddCommand(newJournalSummaryCmd(app))

	return cmd
}

func newJournalListCmd(app *App) *cobra.Command {
	var (
		asset    string
		day      string
		openOnly bool
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded signals, newest first",
		Example: `  copilot journal list
  copilot journal list --asset DOL --day 2026-10-16 --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			filter := store.SignalFilter{OpenOnly: openOnly, Limit: limit}
			if asset != "" {
				filter.Asset = models.ParseAsset(asset)
			}
			if day != "" {
				start, err := parseDay(day)
				if err != nil {
					return err
				}
				filter.From = start
				filter.To = start.AddDate(0, 0, 1)
			}

			journal, err := app.OpenJournal()
			if err != nil {
				return err
			}
			defer journal.Close()

			records, err := journal.ListSignals(commandContext(cmd), filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(records)
			}
			if len(records) == 0 {
				output.Info("No signals recorded")
				return nil
			}
			renderRecords(output, records)
			return nil
		},
	}

	cmd.Flags().StringVar(&asset, "asset", "", "filter by asset: "+assetChoices())
	cmd.Flags().StringVar(&day, "day", "", "filter by day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&openOnly, "open", false, "only signals that are still open")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of signals")

	return cmd
}

func renderRecords(output *Output, records []store.SignalRecord) {
	table := NewTable(output, "Time", "Asset", "Side", "Entry", "Stop", "Target", "Outcome", "Exit", "P&L")
	for _, r := range records {
		outcome, exit, pnl := output.DimText("open"), "-", "-"
		if !r.Open() {
			outcome = string(r.Outcome)
			switch r.Outcome {
			case models.OutcomeTarget:
				outcome = output.Green(outcome)
			case models.OutcomeStop:
				outcome = output.Red(outcome)
			default:
				outcome = output.DimText(outcome)
			}
			exit = FormatPrice(r.ExitPrice)
			pnl = output.PnLText(r.PnL)
		}
		table.AddRow(
			FormatDate(r.OpenedAt.Local())+" "+FormatTime(r.OpenedAt.Local()),
			string(r.Asset),
			output.DirectionText(r.Direction),
			FormatPrice(r.EntryPrice),
			FormatPrice(r.StopLoss),
			FormatPrice(r.TargetFinal),
			outcome,
			exit,
			pnl,
		)
	}
	table.Render()
}

func newJournalSummaryCmd(app *App) *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize one day of signals",
		Example: `  copilot journal summary
  copilot journal summary --day 2026-10-16`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			target := time.Now()
			if day != "" {
				parsed, err := parseDay(day)
				if err != nil {
					return err
				}
				target = parsed
			}

			journal, err := app.OpenJournal()
			if err != nil {
				return err
			}
			defer journal.Close()

			summary, err := journal.DailySummary(commandContext(cmd), target)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(summary)
			}
			output.Box("Journal "+FormatDate(target), []string{
				fmt.Sprintf("Signals:   %d (%d closed)", summary.Signals, summary.Closed),
				fmt.Sprintf("Wins:      %d", summary.Wins),
				fmt.Sprintf("Losses:    %d", summary.Losses),
				"Win rate:  " + fmt.Sprintf("%.1f%%", summary.WinRate()),
				"P&L:       " + output.PnLText(summary.PnL),
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "day to summarize (YYYY-MM-DD, default today)")

	return cmd
}

func parseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q, want YYYY-MM-DD", s)
	}
	return t, nil
}
