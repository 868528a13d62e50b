package cli

import (
	"fmt"
	"strings"
	"time"
)

// FormatBRL formats an amount in Brazilian currency format: R$ 1.234,56.
func FormatBRL(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")
	result := "R$ " + groupThousands(parts[0]) + "," + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

// groupThousands inserts a dot every three digits from the right.
func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	head := len(s) % 3
	var b strings.Builder
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPnL formats a P&L amount with an explicit sign.
func FormatPnL(pnl float64) string {
	if pnl > 0 {
		return "+" + FormatBRL(pnl)
	}
	return FormatBRL(pnl)
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	if value > 0 {
		return fmt.Sprintf("+%.2f%%", value)
	}
	return fmt.Sprintf("%.2f%%", value)
}

// FormatPrice formats a futures price to the half-point tick.
func FormatPrice(price float64) string {
	return fmt.Sprintf("%.1f", price)
}

// FormatRange formats a zone as "min - max".
func FormatRange(min, max float64) string {
	return FormatPrice(min) + " - " + FormatPrice(max)
}

// FormatTime formats a time for display.
func FormatTime(t time.Time) string {
	return t.Format("15:04:05")
}

// FormatDate formats a date for display.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// TruncateString truncates a string to maxLen runes with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
