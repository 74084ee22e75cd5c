package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	zone "github.com/lrstanley/bubblezone"

	"liveconnect/internal/liveview"
	"liveconnect/internal/ui/headless/render"
	"liveconnect/internal/ui/headless/theme"
)

// Runtime is the read-only slice of model state the renderer needs.
type Runtime struct {
	BuildVersion string
	PageURL      string
	Running      bool
	Connecting   bool
	Status       string
	StatusKind   int
	Loading      bool
	Progress     float64
	Handle       *liveview.Snapshot
}

const (
	frameInnerInset       = 4
	dialogHorizontalInset = 8
	quitDialogWidth       = 72
	errorDialogWidth      = 78
)

func RenderApp(state *State, rt Runtime) string {
	if state.Width == 0 {
		return "initializing..."
	}

	base := renderBase(state, rt)
	if state.ErrorModalText != "" {
		return renderModalOverlay(state, base, renderErrorDialog(state))
	}
	if state.ConfirmQuit {
		return renderModalOverlay(state, base, renderQuitConfirmDialog(state))
	}
	return base
}

func renderBase(state *State, rt Runtime) string {
	header := theme.TitleStyle.Render("liveconnect (" + rt.BuildVersion + ")")
	overview := renderFrame(renderOverview(state, rt), state.PageWidth())
	helpText := theme.HelpStyle.Render(state.HelpView.View(state.Keys))

	sections := []string{header, overview}
	if state.ShowLogs {
		state.FitLogViewportHeight([]string{header, overview, helpText}, DefaultNonLogLayoutReserveMin, DefaultMinLogPanelHeight)
		sections = append(sections, renderLogPanel(state))
	}
	sections = append(sections, helpText)
	return renderFrame(strings.Join(sections, "\n\n"), state.ContentWidth())
}

func renderFrame(content string, width int) string {
	return render.Frame(content, width, theme.PanelStyle)
}

func renderOverview(state *State, rt Runtime) string {
	width := max(state.PageWidth()-frameInnerInset, 1)
	rows := [][2]string{
		{"Status", theme.StatusStyle(rt.StatusKind).Render(rt.Status)},
		{"Page", rt.PageURL},
	}
	if rt.Handle != nil {
		rows = append(rows,
			[2]string{"Socket", fmt.Sprintf("%s (%s)", rt.Handle.Endpoint, rt.Handle.State)},
			[2]string{"View", handleViewLine(*rt.Handle)},
		)
		if rt.Handle.LastErr != "" {
			rows = append(rows, [2]string{"Error", theme.ErrorStyle.Render(rt.Handle.LastErr)})
		}
	}
	table := render.KeyValue(rows, theme.LabelStyle, theme.ValueStyle, width)
	return strings.Join([]string{
		table,
		renderLoadingLine(state, rt),
		RenderActionsRow(renderActionSegments(state, rt), width),
	}, "\n\n")
}

func handleViewLine(snap liveview.Snapshot) string {
	if snap.Topic == "" {
		return "no main view"
	}
	joined := "joining"
	if snap.Joined {
		joined = "joined"
	}
	return fmt.Sprintf("%s %s, mounts %d, diffs %d", snap.Topic, joined, snap.Mounts, snap.Diffs)
}

func renderLoadingLine(state *State, rt Runtime) string {
	label := theme.HelpStyle.Render("  idle")
	if rt.Loading {
		label = state.Spinner.View() + theme.HelpStyle.Render(" loading")
	}
	return state.Bar.ViewAs(rt.Progress) + " " + label
}

func renderActionSegments(state *State, rt Runtime) []string {
	return []string{
		zone.Mark(zoneConnect, renderConnectToggle(state, rt)),
		zone.Mark(zoneLogs, renderButton(state, zoneLogs, state.LogsIndex(), logsLabel(state))),
		zone.Mark(zoneQuit, renderButton(state, zoneQuit, state.QuitIndex(), "Quit")),
	}
}

func logsLabel(state *State) string {
	if state.ShowLogs {
		return "Hide Logs"
	}
	return "Logs"
}

func renderButton(state *State, zoneID string, index int, label string) string {
	switch {
	case state.Focus == index:
		return theme.ButtonFocusedStyle.Render(label)
	case state.HoverZone == zoneID:
		return theme.ButtonHoverStyle.Render(label)
	default:
		return theme.ButtonStyle.Render(label)
	}
}

func renderConnectToggle(state *State, rt Runtime) string {
	connect := theme.SegmentOffStyle.Render("Connect")
	disconnect := theme.SegmentOffStyle.Render("Disconnect")
	switch {
	case rt.Connecting:
		connect = theme.SegmentBusyStyle.Render("Connecting...")
	case rt.Running:
		disconnect = theme.SegmentOnStyle.Render("Disconnect")
	default:
		connect = theme.SegmentOnStyle.Render("Connect")
	}
	content := connect + theme.SegmentBaseStyle.Render("|") + disconnect

	switch {
	case state.Focus == state.ConnectIndex():
		return theme.ButtonFocusedStyle.Render(content)
	case state.HoverZone == zoneConnect:
		return theme.ButtonHoverStyle.Render(content)
	default:
		return theme.ButtonStyle.Render(content)
	}
}

func RenderActionsRow(segments []string, maxWidth int) string {
	maxWidth = max(maxWidth, 1)
	lines := make([]string, 0, len(segments))
	var row string
	for _, seg := range segments {
		if row == "" {
			row = seg
			continue
		}
		candidate := lipgloss.JoinHorizontal(lipgloss.Top, row, " ", seg)
		if lipgloss.Width(candidate) <= maxWidth {
			row = candidate
			continue
		}
		lines = append(lines, row)
		row = seg
	}
	if row != "" {
		lines = append(lines, row)
	}
	return strings.Join(lines, "\n")
}

func renderLogPanel(state *State) string {
	check := "[ ] Debug"
	if state.DebugOn {
		check = "[x] Debug"
	}
	debug := zone.Mark(zoneLogsDebug, renderButton(state, zoneLogsDebug, state.LogsDebugIndex(), check))

	followHint := theme.HelpStyle.Render("ctrl+f follow")
	toolbar := lipgloss.JoinHorizontal(lipgloss.Center, theme.TitleStyle.Render("Logs"), "  ", debug, "  ", followHint)
	body := WithScrollBar(state.LogView.View(), state.LogView.Width, state.LogView.Height, state.LogView.ScrollPercent())
	return renderFrame(toolbar+"\n"+body, state.PageWidth())
}

func WithScrollBar(content string, width int, height int, percent float64) string {
	if height <= 0 {
		return content
	}
	width = max(width, 1)
	lines := strings.Split(content, "\n")
	for len(lines) < height {
		lines = append(lines, "")
	}
	lines = lines[:height]

	thumb := min(max(int(percent*float64(height-1)), 0), height-1)
	barInactive := lipgloss.NewStyle().Foreground(lipgloss.Color("238")).Render("┊")
	barActive := lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Render("▯")

	out := make([]string, 0, height)
	for i := range height {
		bar := barInactive
		if i == thumb {
			bar = barActive
		}
		text := ansi.Cut(lines[i], 0, width)
		if pad := width - ansi.StringWidth(text); pad > 0 {
			text += strings.Repeat(" ", pad)
		}
		out = append(out, text+" "+bar)
	}
	return strings.Join(out, "\n")
}

func renderQuitConfirmDialog(state *State) string {
	cancelButton := theme.ButtonStyle.Render("Cancel")
	quitButton := theme.ButtonStyle.Render("Quit")
	if state.ConfirmQuitChoice == ConfirmQuitChoiceCancel {
		cancelButton = theme.ButtonFocusedStyle.Render("Cancel")
	} else {
		quitButton = theme.ButtonFocusedStyle.Render("Quit")
	}
	buttonRow := lipgloss.JoinHorizontal(lipgloss.Top,
		zone.Mark(zoneDialogQuitCancel, cancelButton), "  ", zone.Mark(zoneDialogQuitAccept, quitButton))

	dialogWidth := min(state.ContentWidth()-dialogHorizontalInset, quitDialogWidth)
	buttonLine := lipgloss.NewStyle().
		Width(max(dialogWidth-frameInnerInset, 1)).
		AlignHorizontal(lipgloss.Center).
		Render(buttonRow)

	body := strings.Join([]string{
		theme.TitleStyle.Render("Quit while connected?"),
		"This will close the live socket.",
		buttonLine,
		theme.HelpStyle.Render("tab/arrow switch • enter confirms"),
	}, "\n")
	return renderFrame(body, dialogWidth)
}

func renderErrorDialog(state *State) string {
	body := strings.Join([]string{
		theme.ErrorStyle.Render("Error"),
		state.ErrorModalText,
		zone.Mark(zoneDialogErrorClose, theme.HelpStyle.Render("Press Enter or Esc to close")),
	}, "\n")
	return renderFrame(body, min(state.ContentWidth()-dialogHorizontalInset, errorDialogWidth))
}

func renderModalOverlay(state *State, base string, dialog string) string {
	faded := theme.ModalBackdrop.Render(base)
	overlay := lipgloss.Place(state.Width, state.Height, lipgloss.Center, lipgloss.Center, dialog)
	return faded + "\n" + overlay
}
