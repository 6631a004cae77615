// Package receipts renders register orders for an 80mm thermal printer
// (font A, 48 characters per line).
package receipts

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// The item grid is 12 columns of 4 characters.
const (
	LineWidth      = 48
	GridColumns    = 12
	CharsPerColumn = LineWidth / GridColumns

	NameWidth   = 6 * CharsPerColumn
	QtyWidth    = 2 * CharsPerColumn
	UnitWidth   = 2 * CharsPerColumn
	AmountWidth = 2 * CharsPerColumn
)

var (
	heavyRule = strings.Repeat("=", LineWidth)
	lightRule = strings.Repeat("-", LineWidth)
)

func center(text string) string {
	text = clip(strings.TrimSpace(text), LineWidth)
	pad := (LineWidth - utf8.RuneCountInString(text)) / 2
	return strings.Repeat(" ", pad) + text
}

// labelValue puts the label on the left and the value flush right.
func labelValue(label, value string) string {
	value = clip(value, LineWidth)
	room := LineWidth - utf8.RuneCountInString(value) - 1
	if room < 0 {
		room = 0
	}
	label = clip(label, room)
	gap := LineWidth - utf8.RuneCountInString(label) - utf8.RuneCountInString(value)
	return label + strings.Repeat(" ", gap) + value
}

// itemRows lays one item on the grid. Each numeric cell keeps a leading space
// so neighbouring figures never touch. Figures are never clipped: when one is
// too wide for its cell the name prints alone and the figures move to a
// continuation line.
func itemRows(name, qty, unit, amount string) []string {
	if fits(qty, QtyWidth) && fits(unit, UnitWidth) && fits(amount, AmountWidth) {
		return []string{padRight(clip(name, NameWidth-1), NameWidth) +
			padLeft(qty, QtyWidth) +
			padLeft(unit, UnitWidth) +
			padLeft(amount, AmountWidth)}
	}
	return []string{
		clip(name, LineWidth),
		labelValue("  "+qty+" x "+unit, amount),
	}
}

func fits(cell string, width int) bool {
	return utf8.RuneCountInString(cell) < width
}

func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func percent(rate decimal.Decimal) string {
	return fmt.Sprintf("%s%%", rate.Shift(2).String())
}

func clip(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	return string([]rune(s)[:width])
}

func padRight(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func padLeft(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return strings.Repeat(" ", width-n) + s
	}
	return s
}
