package view

import "strings"

// DefaultLogLineLimit bounds the TUI log pane when LogBuffer.Limit is zero.
const DefaultLogLineLimit = 2_000

// LogBuffer keeps the newest Limit lines of formatted log output.
type LogBuffer struct {
	Limit int
	lines []string
}

// Append adds text, which may hold several lines with any line ending.
func (b *LogBuffer) Append(text string) {
	if text == "" {
		return
	}
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text)
	b.lines = append(b.lines, strings.Split(strings.TrimSuffix(text, "\n"), "\n")...)

	limit := b.Limit
	if limit <= 0 {
		limit = DefaultLogLineLimit
	}
	if over := len(b.lines) - limit; over > 0 {
		b.lines = append(b.lines[:0:0], b.lines[over:]...)
	}
}

func (b *LogBuffer) Len() int { return len(b.lines) }

func (b *LogBuffer) String() string {
	return strings.Join(b.lines, "\n")
}
