package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const clipLimit = 240

// bulkyFields are rendered after every other field; in the ANSI form a
// multi-line value gets its own bordered block.
var bulkyFields = map[string]bool{
	"payload":  true,
	"response": true,
	"frame":    true,
	"body":     true,
	"diff":     true,
}

type palette struct {
	time    lipgloss.Style
	message lipgloss.Style
	key     lipgloss.Style
	value   lipgloss.Style
	eq      lipgloss.Style
	block   lipgloss.Style
	badge   lipgloss.Style
}

var ansiPalette = sync.OnceValue(func() palette {
	lipgloss.SetColorProfile(termenv.TrueColor)
	return palette{
		time:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		message: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		key:     lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
		value:   lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		eq:      lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		block:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("245")).Padding(0, 1),
		badge:   lipgloss.NewStyle().Bold(true).Padding(0, 1),
	}
})

func shouldPrettyPrint() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	switch strings.TrimSpace(os.Getenv("TERM")) {
	case "", "dumb":
		return false
	}
	return true
}

// Truncate flattens value to one line and clips it for inline display.
func Truncate(value string) string {
	value = strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(value))
	switch {
	case value == "":
		return "<empty>"
	case len(value) > clipLimit:
		return value[:clipLimit] + "..."
	}
	return value
}

// Redact keeps a short prefix of a secret so log lines can be correlated
// without leaking the value.
func Redact(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "<empty>"
	}
	if len(secret) <= 6 {
		return "***"
	}
	return secret[:4] + "…(" + strconv.Itoa(len(secret)) + ")"
}

// FormatPayload pretty prints JSON payloads; anything else comes back
// trimmed.
func FormatPayload(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "<empty>"
	}
	var decoded any
	if json.Unmarshal(trimmed, &decoded) == nil {
		if pretty, err := indentJSON(decoded); err == nil {
			return pretty
		}
	}
	return string(trimmed)
}

// FormatEventLine is the uncolored terminal form: "15:04:05 [LEVEL] msg k=v".
func FormatEventLine(event Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", event.Time.Format("15:04:05"), strings.ToUpper(event.Level.String()), event.Message)
	for _, key := range fieldOrder(event.Fields) {
		fmt.Fprintf(&b, " %s=%s", key, stringifyField(event.Fields[key]))
	}
	b.WriteByte('\n')
	return b.String()
}

// FormatEventANSI renders one event with lipgloss styling. The TUI log pane
// shows these lines as-is.
func FormatEventANSI(event Event) string {
	p := ansiPalette()
	label, colors := badgeFor(event.Level)

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center,
		p.time.Render(event.Time.Format("15:04:05.000")), " ",
		p.badge.Inherit(colors).Render(label), " ",
		p.message.Render(event.Message),
	))

	var blocks []string
	sep := "  "
	for _, key := range fieldOrder(event.Fields) {
		value := stringifyField(event.Fields[key])
		kv := p.key.Render(key) + p.eq.Render("=")
		if strings.Contains(value, "\n") {
			blocks = append(blocks, kv+"\n"+p.block.Render(value))
			continue
		}
		b.WriteString(sep + kv + p.value.Render(value))
		sep = " "
	}
	for _, block := range blocks {
		b.WriteString("\n  " + block)
	}
	b.WriteByte('\n')
	return b.String()
}

func badgeFor(level slog.Level) (string, lipgloss.Style) {
	colors := func(fg, bg string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(fg)).Background(lipgloss.Color(bg))
	}
	switch {
	case level <= slog.LevelDebug:
		return "DEBUG", colors("255", "240")
	case level <= slog.LevelInfo:
		return "INFO", colors("230", "31")
	case level <= slog.LevelWarn:
		return "WARN", colors("234", "214")
	default:
		return "ERROR", colors("231", "160")
	}
}

func stringifyField(value any) string {
	switch v := value.(type) {
	case nil:
		return "<nil>"
	case string:
		return v
	case error:
		return v.Error()
	case []byte:
		return FormatPayload(v)
	case fmt.Stringer:
		return v.String()
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if out, err := indentJSON(value); err == nil {
			return out
		}
	}
	return fmt.Sprint(value)
}

func indentJSON(value any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// fieldOrder sorts keys alphabetically with bulky fields last.
func fieldOrder(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if bulkyA, bulkyB := bulkyFields[a], bulkyFields[b]; bulkyA != bulkyB {
			if bulkyA {
				return 1
			}
			return -1
		}
		return strings.Compare(a, b)
	})
	return keys
}
