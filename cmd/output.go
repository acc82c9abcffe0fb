package cmd

import (
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"annotate/internal/review"
)

// categoryColors follows review.Palette with the nearest terminal colours.
var categoryColors = []color.Attribute{
	color.FgRed,
	color.FgMagenta,
	color.FgHiMagenta,
	color.FgBlue,
	color.FgGreen,
	color.FgYellow,
	color.FgHiRed,
}

// categoryLabel colours a category the same way across commands.
func categoryLabel(category string) string {
	if category == "" {
		return color.New(color.Faint).Sprint("(none)")
	}
	return color.New(categoryColors[review.CategoryColorIndex(category)]).Sprint(category)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(true)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// snippet flattens and shortens text for a table cell.
func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if max > 0 && len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return text
}
