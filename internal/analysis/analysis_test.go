package analysis

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"tradecopilot/internal/models"
	"tradecopilot/internal/simulator"
)

func TestClassifyBias(t *testing.T) {
	tests := []struct {
		name             string
		price, ref, open float64
		want             models.Bias
	}{
		{"above ref and open", 5010, 5000, 5005, models.BiasBullish},
		{"below ref and open", 4990, 5000, 4995, models.BiasBearish},
		{"above ref below open", 5003, 5000, 5005, models.BiasNeutral},
		{"below ref above open", 4997, 5000, 4990, models.BiasNeutral},
		{"on the reference", 5000, 5000, 4990, models.BiasNeutral},
		{"on the open", 5005, 5000, 5005, models.BiasNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := models.MarketSnapshot{Price: tt.price, ReferencePrice: tt.ref, Open: tt.open}
			got := ClassifyBias(s)
			if got != tt.want {
				t.Errorf("ClassifyBias() = %s, want %s", got, tt.want)
			}
			if again := ClassifyBias(s); again != got {
				t.Errorf("ClassifyBias() not stable: %s then %s", got, again)
			}
		})
	}
}

func TestAutoZones(t *testing.T) {
	s := models.MarketSnapshot{Price: 5000, Open: 5000, High: 5020, Low: 4980, ReferencePrice: 5004}

	tests := []struct {
		bias      models.Bias
		buy, sell models.Zone
		context   string
	}{
		{
			models.BiasBullish,
			models.Zone{Min: 5002, Max: 5006, Strength: models.StrengthHigh},
			models.Zone{Min: 5020, Max: 5025, Strength: models.StrengthMedium},
			ContextUptrend,
		},
		{
			models.BiasBearish,
			models.Zone{Min: 4975, Max: 4980, Strength: models.StrengthMedium},
			models.Zone{Min: 5002, Max: 5006, Strength: models.StrengthHigh},
			ContextDowntrend,
		},
		{
			models.BiasNeutral,
			models.Zone{Min: 4980, Max: 4983, Strength: models.StrengthMedium},
			models.Zone{Min: 5017, Max: 5020, Strength: models.StrengthMedium},
			ContextRange,
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.bias), func(t *testing.T) {
			got := AutoZones(s, tt.bias)
			if got.Buy != tt.buy {
				t.Errorf("buy = %+v, want %+v", got.Buy, tt.buy)
			}
			if got.Sell != tt.sell {
				t.Errorf("sell = %+v, want %+v", got.Sell, tt.sell)
			}
			if got.Context != tt.context {
				t.Errorf("context = %q, want %q", got.Context, tt.context)
			}
		})
	}
}

func TestProZonesBranches(t *testing.T) {
	tests := []struct {
		name      string
		in        models.ManualReferenceInput
		buy, sell models.Zone
		context   string
	}{
		{
			name:    "bullish",
			in:      models.ManualReferenceInput{Open: 5000, High: 5050, Low: 4950, ReferencePrice: 5010, Current: 5030},
			buy:     models.Zone{Min: 5008, Max: 5012, Strength: models.StrengthHigh},
			sell:    models.Zone{Min: 5048, Max: 5055, Strength: models.StrengthMedium},
			context: ContextBullish,
		},
		{
			name:    "breakout",
			in:      models.ManualReferenceInput{Open: 5000, High: 5050, Low: 4950, ReferencePrice: 5010, Current: 5060},
			buy:     models.Zone{Min: 5048, Max: 5050, Strength: models.StrengthMedium},
			sell:    models.Zone{Min: 5050 + 100*Fib382, Max: 5050 + 100*Fib618, Strength: models.StrengthLow},
			context: ContextBreakout,
		},
		{
			name:    "bearish",
			in:      models.ManualReferenceInput{Open: 5000, High: 5050, Low: 4950, ReferencePrice: 5010, Current: 4990},
			buy:     models.Zone{Min: 4945, Max: 4952, Strength: models.StrengthMedium},
			sell:    models.Zone{Min: 5008, Max: 5012, Strength: models.StrengthHigh},
			context: ContextBearish,
		},
		{
			name:    "breakdown",
			in:      models.ManualReferenceInput{Open: 5000, High: 5050, Low: 4950, ReferencePrice: 5010, Current: 4940},
			buy:     models.Zone{Min: 4950 - 100*Fib618, Max: 4950 - 100*Fib382, Strength: models.StrengthLow},
			sell:    models.Zone{Min: 4950, Max: 4952, Strength: models.StrengthMedium},
			context: ContextBreakdown,
		},
		{
			name:    "current equal to reference is bearish",
			in:      models.ManualReferenceInput{Open: 5000, High: 5050, Low: 4950, ReferencePrice: 5010, Current: 5010},
			buy:     models.Zone{Min: 4945, Max: 4952, Strength: models.StrengthMedium},
			sell:    models.Zone{Min: 5008, Max: 5012, Strength: models.StrengthHigh},
			context: ContextBearish,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProZones(tt.in)
			if !zoneClose(got.Buy, tt.buy) {
				t.Errorf("buy = %+v, want %+v", got.Buy, tt.buy)
			}
			if !zoneClose(got.Sell, tt.sell) {
				t.Errorf("sell = %+v, want %+v", got.Sell, tt.sell)
			}
			if got.Context != tt.context {
				t.Errorf("context = %q, want %q", got.Context, tt.context)
			}
		})
	}
}

func TestProZonesNarrowRangeOverridesBias(t *testing.T) {
	for _, ref := range []float64{4990, 5020} {
		in := models.ManualReferenceInput{Open: 5000, High: 5010, Low: 4995, ReferencePrice: ref, Current: 5004}
		got := ProZones(in)

		wantBuy := models.Zone{Min: 4995, Max: 4998, Strength: models.StrengthHigh}
		wantSell := models.Zone{Min: 5007, Max: 5010, Strength: models.StrengthHigh}
		if got.Buy != wantBuy || got.Sell != wantSell {
			t.Errorf("ref %v: zones = %+v / %+v, want %+v / %+v", ref, got.Buy, got.Sell, wantBuy, wantSell)
		}
		if got.Context != ContextConsolidation {
			t.Errorf("ref %v: context = %q", ref, got.Context)
		}
	}
}

func TestProZonesBreakoutBeatsBullish(t *testing.T) {
	in := models.ManualReferenceInput{Open: 5000, High: 5010, Low: 4995, ReferencePrice: 5000, Current: 5012}
	got := ProZones(in)
	if got.Buy.Min != 5008 || got.Buy.Max != 5010 {
		t.Errorf("buy = %+v, want breakout retest [5008, 5010]", got.Buy)
	}
	if got.Context != ContextBreakout {
		t.Errorf("context = %q, want %q", got.Context, ContextBreakout)
	}
}

// Seed snapshot -> neutral bias -> range zones at the extremes.
func TestSeedScenario(t *testing.T) {
	seed := simulator.Seed(time.Now())

	bias := ClassifyBias(seed)
	if bias != models.BiasNeutral {
		t.Fatalf("bias = %s, want NEUTRAL", bias)
	}

	zones := AutoZones(seed, bias)
	wantBuy := models.Zone{Min: 4990, Max: 4993, Strength: models.StrengthMedium}
	wantSell := models.Zone{Min: 5007, Max: 5010, Strength: models.StrengthMedium}
	if zones.Buy != wantBuy {
		t.Errorf("buy = %+v, want %+v", zones.Buy, wantBuy)
	}
	if zones.Sell != wantSell {
		t.Errorf("sell = %+v, want %+v", zones.Sell, wantSell)
	}
}

// Property: every zone produced in either mode has min <= max.
func TestProperty_ZonesWellFormed(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	priceGen := gen.Float64Range(4000, 6000)
	biasGen := gen.OneConstOf(models.BiasBullish, models.BiasBearish, models.BiasNeutral)

	properties.Property("auto zones are ordered", prop.ForAll(
		func(price, high, low, ref float64, bias models.Bias) bool {
			s := models.MarketSnapshot{Price: price, High: high, Low: low, ReferencePrice: ref}
			z := AutoZones(s, bias)
			return z.Buy.Min <= z.Buy.Max && z.Sell.Min <= z.Sell.Max
		},
		priceGen, priceGen, priceGen, priceGen, biasGen,
	))

	properties.Property("pro zones are ordered", prop.ForAll(
		func(open, high, low, ref, current float64) bool {
			in := models.ManualReferenceInput{Open: open, High: high, Low: low, ReferencePrice: ref, Current: current}
			z := ProZones(in)
			return z.Buy.Min <= z.Buy.Max && z.Sell.Min <= z.Sell.Max && z.Context != ""
		},
		priceGen, priceGen, priceGen, priceGen, priceGen,
	))

	properties.Property("narrow range always consolidates", prop.ForAll(
		func(low, width, frac, ref float64) bool {
			high := low + width
			current := low + width*frac
			if !(low < current && current < high) {
				return true
			}
			z := ProZones(models.ManualReferenceInput{High: high, Low: low, ReferencePrice: ref, Current: current})
			return z.Context == ContextConsolidation &&
				z.Buy.Min == low && z.Buy.Max == low+3 && z.Buy.Strength == models.StrengthHigh &&
				z.Sell.Min == high-3 && z.Sell.Max == high && z.Sell.Strength == models.StrengthHigh
		},
		gen.Float64Range(4500, 5500),
		gen.Float64Range(0.5, 19.5),
		gen.Float64Range(0.01, 0.99),
		gen.Float64Range(4500, 5500),
	))

	properties.TestingRun(t)
}

func zoneClose(a, b models.Zone) bool {
	const eps = 1e-9
	return a.Strength == b.Strength && abs(a.Min-b.Min) < eps && abs(a.Max-b.Max) < eps
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
