// Package cli provides the command-line interface for the trading copilot.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tradecopilot/internal/models"
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates a new Output instance.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:       cmd.OutOrStdout(),
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && !color.NoColor,
	}
}

// NewPlainOutput creates an Output without colors, for tests and pipes.
func NewPlainOutput(w io.Writer, jsonMode bool) *Output {
	return &Output{writer: w, jsonMode: jsonMode}
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.line(color.FgGreen, "✓ "+format, args...)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.line(color.FgRed, "✗ "+format, args...)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.line(color.FgYellow, "⚠ "+format, args...)
}

// Info prints an informational message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.line(color.FgCyan, format, args...)
}

// Bold prints a bold line.
func (o *Output) Bold(format string, args ...interface{}) {
	o.line(color.Bold, format, args...)
}

func (o *Output) line(attr color.Attribute, format string, args ...interface{}) {
	fmt.Fprintln(o.writer, o.paint(fmt.Sprintf(format, args...), attr))
}

func (o *Output) paint(text string, attrs ...color.Attribute) string {
	if !o.colorEnabled {
		return text
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(text)
}

// Green returns green colored text.
func (o *Output) Green(text string) string { return o.paint(text, color.FgGreen) }

// Red returns red colored text.
func (o *Output) Red(text string) string { return o.paint(text, color.FgRed) }

// Yellow returns yellow colored text.
func (o *Output) Yellow(text string) string { return o.paint(text, color.FgYellow) }

// Cyan returns cyan colored text.
func (o *Output) Cyan(text string) string { return o.paint(text, color.FgCyan) }

// BoldText returns bold text.
func (o *Output) BoldText(text string) string { return o.paint(text, color.Bold) }

// DimText returns dimmed text.
func (o *Output) DimText(text string) string { return o.paint(text, color.Faint) }

// BiasText colors a bias: green bullish, red bearish.
func (o *Output) BiasText(b models.Bias) string {
	switch b {
	case models.BiasBullish:
		return o.Green(string(b))
	case models.BiasBearish:
		return o.Red(string(b))
	}
	return o.Yellow(string(b))
}

// DirectionText colors a signal direction.
func (o *Output) DirectionText(d models.Direction) string {
	if d == models.DirectionBuy {
		return o.paint(string(d), color.FgGreen, color.Bold)
	}
	return o.paint(string(d), color.FgRed, color.Bold)
}

// PnLText formats and colors a P&L amount.
func (o *Output) PnLText(pnl float64) string {
	text := FormatPnL(pnl)
	switch {
	case pnl > 0:
		return o.Green(text)
	case pnl < 0:
		return o.Red(text)
	}
	return text
}

// Table represents a simple table for output.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{headers: headers, output: output}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visibleWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && visibleWidth(cell) > widths[i] {
				widths[i] = visibleWidth(cell)
			}
		}
	}

	t.printRow(t.headers, widths, true)
	var sep []string
	for _, w := range widths {
		sep = append(sep, strings.Repeat("─", w))
	}
	t.output.Println(t.output.DimText(strings.Join(sep, "──")))
	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, header bool) {
	var parts []string
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		padding := widths[i] - visibleWidth(cell)
		if padding < 0 {
			padding = 0
		}
		padded := cell + strings.Repeat(" ", padding)
		if header {
			padded = t.output.BoldText(padded)
		}
		parts = append(parts, padded)
	}
	t.output.Println(strings.Join(parts, "  "))
}

// visibleWidth counts runes outside ANSI escape sequences.
func visibleWidth(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			n++
		}
	}
	return n
}

// Box draws a box around content.
func (o *Output) Box(title string, content []string) {
	width := utf8.RuneCountInString(title)
	for _, line := range content {
		if w := visibleWidth(line); w > width {
			width = w
		}
	}
	border := strings.Repeat("─", width+2)

	o.Println(o.DimText("┌" + border + "┐"))
	o.Printf("%s %s%s %s\n", o.DimText("│"), o.BoldText(title), strings.Repeat(" ", width-utf8.RuneCountInString(title)), o.DimText("│"))
	o.Println(o.DimText("├" + border + "┤"))
	for _, line := range content {
		o.Printf("%s %s%s %s\n", o.DimText("│"), line, strings.Repeat(" ", width-visibleWidth(line)), o.DimText("│"))
	}
	o.Println(o.DimText("└" + border + "┘"))
}
