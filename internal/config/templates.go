package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Trade Copilot Configuration

[trading]
# Asset: "WDO" (mini dollar) or "DOL" (full dollar)
asset = "WDO"
# Number of contracts per signal
contracts = 1
# Reference capital in BRL
capital = 5000.0
# Interval between simulated ticks
tick_interval = "1500ms"
# Trading window
start_time = "09:00"
end_time = "17:00"

[risk]
# Maximum loss per trade in BRL
max_risk_per_trade = 150.0
# Daily loss limit in BRL (ticking stops once reached)
max_daily_loss = 500.0

[signal]
# Chance that a tick produces a trade idea (0.0 - 1.0)
activation_probability = 0.2
# Stop distance in points
stop_points = 5.0
# Final target distance in points
target_points = 10.0

[analyst]
# Model for market commentary
model = "gpt-4o-mini"
# Model for chart image analysis
vision_model = "gpt-4o-mini"
# Per-request timeout
timeout = "30s"
# Consecutive failures before the analyst is paused
failure_threshold = 3
# Pause before retrying after failures
cooldown = "1m"
# Dashboard analyst requests allowed per minute (0 = unlimited)
requests_per_minute = 6
burst = 3

[server]
addr = ":8080"

[journal]
# Record signals and outcomes in a local SQLite file
enabled = false
# Defaults to journal.db in the config directory
path = ""

[log]
level = "info"
console = true
file = true
`

const credentialsTemplate = `# Trade Copilot Credentials
# WARNING: Keep this file secure! Do not commit to version control.

[openai]
api_key = ""
# Optional OpenAI-compatible endpoint
base_url = ""
`

func createTemplate(configDir, name, content string, perm os.FileMode) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}
	return nil
}
