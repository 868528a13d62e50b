package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tradecopilot/internal/agents"
	"tradecopilot/internal/models"
	"tradecopilot/internal/session"
)

func newInsightCmd(app *App) *cobra.Command {
	var (
		asset string
		warm  int
	)

	cmd := &cobra.Command{
		Use:   "insight",
		Short: "Ask the AI analyst to comment on a simulated snapshot",
		Long: `Advance a fresh simulated session by --ticks ticks and ask the AI analyst
for a short commentary on the resulting price, bias and reference zones.`,
		Example: `  copilot insight
  copilot insight --asset DOL --ticks 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			settings := app.Settings()
			if asset != "" {
				settings.Asset = models.ParseAsset(asset)
			}
			s := session.New(settings, app.Config.SignalConfig(), nil, nil)
			for i := 0; i < warm; i++ {
				s.Step()
			}

			analyst := app.NewAnalyst(nil)
			snap := s.Snapshot()
			text := analyst.Insight(commandContext(cmd), snap, s.Bias(), s.ReferenceZones())

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"asset":    settings.Asset,
					"snapshot": snap,
					"bias":     s.Bias(),
					"insight":  text,
				})
			}
			output.Bold("%s %s  bias %s", settings.Asset, FormatPrice(snap.Price), output.BiasText(s.Bias()))
			output.Println()
			output.Println(text)
			return nil
		},
	}

	cmd.Flags().StringVar(&asset, "asset", "", "asset to simulate: "+assetChoices()+" (default from config)")
	cmd.Flags().IntVar(&warm, "ticks", 20, "ticks to simulate before asking")

	return cmd
}

func newChartsCmd(app *App) *cobra.Command {
	var daily, intraday string

	cmd := &cobra.Command{
		Use:   "charts",
		Short: "Ask the AI analyst to read chart screenshots",
		Long: `Send up to two chart screenshots (daily and intraday) to the AI analyst
and print where institutional liquidity appears to sit.`,
		Example: `  copilot charts --daily daily.png --intraday 5min.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			dailyData, err := readChart(daily)
			if err != nil {
				return err
			}
			intradayData, err := readChart(intraday)
			if err != nil {
				return err
			}

			analyst := app.NewAnalyst(nil)
			text := analyst.AnalyzeCharts(commandContext(cmd), dailyData, intradayData)

			if output.IsJSON() {
				return output.JSON(agents.Commentary{Kind: agents.KindCharts, Text: text})
			}
			output.Println(text)
			return nil
		},
	}

	cmd.Flags().StringVar(&daily, "daily", "", "path to the daily chart image")
	cmd.Flags().StringVar(&intraday, "intraday", "", "path to the intraday chart image")

	return cmd
}

// readChart reads an image file; an empty path yields no image.
func readChart(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading chart %s: %w", path, err)
	}
	return data, nil
}
