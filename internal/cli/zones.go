package cli

import (
	"github.com/spf13/cobra"

	"tradecopilot/internal/analysis"
	"tradecopilot/internal/models"
)

// zonesResult is the JSON shape of the zones command.
type zonesResult struct {
	Mode   string                      `json:"mode"`
	Input  models.ManualReferenceInput `json:"input"`
	Bias   models.Bias                 `json:"bias"`
	Zones  models.ZonePair             `json:"zones"`
	Inside string                      `json:"inside,omitempty"`
}

func newZonesCmd() *cobra.Command {
	var auto bool
	fields := map[string]*string{}

	cmd := &cobra.Command{
		Use:   "zones",
		Short: "Compute buy and sell zones from chart values",
		Long: `Compute entry zones from values read off a chart.

By default the pro calculator is used (Fibonacci projections, consolidation
detection). With --auto the live-session calculator is applied to the same
values treated as a snapshot. Non-numeric values count as zero.`,
		Example: `  copilot zones --open 5000 --high 5030 --low 4980 --vwap 5005 --current 5020
  copilot zones --auto --open 5000 --high 5030 --low 4980 --vwap 5005 --current 5020`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			raw := make(map[string]string, len(fields))
			for name, v := range fields {
				raw[name] = *v
			}
			res := computeZones(models.ParseManualInput(raw), auto)

			if output.IsJSON() {
				return output.JSON(res)
			}
			output.Bold("%s zones  (bias %s)", res.Mode, output.BiasText(res.Bias))
			output.Printf("  Buy:   %s  %.1f pts  %s\n", output.Green(FormatRange(res.Zones.Buy.Min, res.Zones.Buy.Max)), res.Zones.Buy.Width(), output.DimText(string(res.Zones.Buy.Strength)))
			output.Printf("  Sell:  %s  %.1f pts  %s\n", output.Red(FormatRange(res.Zones.Sell.Min, res.Zones.Sell.Max)), res.Zones.Sell.Width(), output.DimText(string(res.Zones.Sell.Strength)))
			output.Printf("  Context: %s\n", res.Zones.Context)
			if res.Inside != "" {
				output.Info("Current price is inside the %s zone", res.Inside)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&auto, "auto", false, "use the live-session calculator")
	for _, name := range []string{"open", "high", "low", "vwap", "current"} {
		fields[name] = cmd.Flags().String(name, "0", name+" price")
	}

	return cmd
}

func computeZones(in models.ManualReferenceInput, auto bool) zonesResult {
	snap := models.MarketSnapshot{
		Price:          in.Current,
		Open:           in.Open,
		High:           in.High,
		Low:            in.Low,
		ReferencePrice: in.ReferencePrice,
	}
	res := zonesResult{Mode: "pro", Input: in, Bias: analysis.ClassifyBias(snap)}
	if auto {
		res.Mode = "auto"
		res.Zones = analysis.AutoZones(snap, res.Bias)
	} else {
		res.Zones = analysis.ProZones(in)
	}

	switch {
	case res.Zones.InBuy(in.Current):
		res.Inside = "buy"
	case res.Zones.InSell(in.Current):
		res.Inside = "sell"
	}
	return res
}
