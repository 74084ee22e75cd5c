package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Frame renders content inside panelStyle sized to the given outer width.
func Frame(content string, width int, panelStyle lipgloss.Style) string {
	innerWidth := max(width-panelStyle.GetHorizontalFrameSize(), 1)
	return panelStyle.Width(innerWidth).Render(content)
}

func TruncateDisplayWidth(value string, width int) string {
	if width <= 0 {
		return ""
	}
	if ansi.StringWidth(value) <= width {
		return value
	}
	if width == 1 {
		return "…"
	}
	limit := max(width-ansi.StringWidth("…"), 0)
	var b strings.Builder
	current := 0
	for _, r := range value {
		w := ansi.StringWidth(string(r))
		if current+w > limit {
			break
		}
		b.WriteRune(r)
		current += w
	}
	return b.String() + "…"
}

// KeyValue lays out label: value pairs with the labels padded to one column.
func KeyValue(rows [][2]string, labelStyle lipgloss.Style, valueStyle lipgloss.Style, width int) string {
	labelWidth := 0
	for _, row := range rows {
		labelWidth = max(labelWidth, ansi.StringWidth(row[0]))
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		label := row[0] + strings.Repeat(" ", labelWidth-ansi.StringWidth(row[0]))
		valueWidth := max(width-labelWidth-2, 1)
		lines = append(lines, labelStyle.Render(label)+"  "+valueStyle.Render(TruncateDisplayWidth(row[1], valueWidth)))
	}
	return strings.Join(lines, "\n")
}
