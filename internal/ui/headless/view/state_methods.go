package view

import (
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"liveconnect/internal/ui/headless/theme"
)

const (
	DefaultNonLogLayoutReserveMin = 18
	DefaultMinLogPanelHeight      = 6
	ConfirmQuitChoiceCancel       = 0
)

const (
	connectControlIndex = iota
	logsControlIndex
	quitControlIndex
	logsDebugControlIndex
)

const (
	focusCountWithoutLogs = 3
	focusCountWithLogs    = 4
)

const (
	minPageWidth            = 24
	logPanelHorizontalInset = 8
	minViewportDimension    = 1
	minLogViewportWidth     = 20
	logViewportHeightOffset = 3
	minLogViewportHeight    = 3
	panelFrameOverhead      = 4
	borderRows              = 2
	sectionGapRows          = 2
	barHorizontalInset      = 16
	minBarWidth             = 10
)

func (s State) FocusCount() int {
	if s.ShowLogs {
		return focusCountWithLogs
	}
	return focusCountWithoutLogs
}

func (s State) ConnectIndex() int   { return connectControlIndex }
func (s State) LogsIndex() int      { return logsControlIndex }
func (s State) QuitIndex() int      { return quitControlIndex }
func (s State) LogsDebugIndex() int { return logsDebugControlIndex }

func (s State) ContentWidth() int {
	width := max(s.Width, 1)
	// Some Windows terminals wrap when a styled line lands exactly on the
	// reported last column.
	if runtime.GOOS == "windows" && width > 1 {
		width--
	}
	return width
}

func (s State) PageWidth() int {
	return max(s.ContentWidth()-theme.PanelStyle.GetHorizontalFrameSize(), minPageWidth)
}

func (s State) LogPanelHeight(nonLogLayoutReserveMin int, minLogPanelHeight int) int {
	available := s.Height - nonLogLayoutReserveMin
	if available < minLogPanelHeight {
		return minLogPanelHeight
	}
	return available
}

func (s *State) SetLogViewportContent() {
	width := max(s.LogView.Width, minViewportDimension)
	s.LogView.SetContent(wrapLogText(s.Logs.String(), width))
}

func (s *State) ResizeLogs(nonLogLayoutReserveMin int, minLogPanelHeight int) {
	s.LogView.Width = max(s.PageWidth()-logPanelHorizontalInset, minLogViewportWidth)
	s.LogView.Height = max(s.LogPanelHeight(nonLogLayoutReserveMin, minLogPanelHeight)-logViewportHeightOffset, minLogViewportHeight)
	s.SetLogViewportContent()
}

func (s *State) ResizeBar() {
	s.Bar.Width = max(s.PageWidth()-barHorizontalInset, minBarWidth)
}

func (s *State) FitLogViewportHeight(nonLogSections []string, nonLogLayoutReserveMin int, minLogPanelHeight int) {
	if s.Height <= 0 {
		return
	}
	desired := max(s.LogPanelHeight(nonLogLayoutReserveMin, minLogPanelHeight)-logViewportHeightOffset, minLogViewportHeight)
	nonLogHeight := lipgloss.Height(strings.Join(nonLogSections, "\n\n"))
	availablePanel := s.Height - borderRows - nonLogHeight - sectionGapRows
	maxLogHeight := max(availablePanel-panelFrameOverhead, minLogViewportHeight)
	s.LogView.Height = min(desired, maxLogHeight)
}

func (s *State) ToggleLogs() {
	s.ShowLogs = !s.ShowLogs
	if s.ShowLogs {
		s.FollowLogs = true
		s.LogView.GotoBottom()
	}
	if s.Focus >= s.FocusCount() {
		s.Focus = s.FocusCount() - 1
	}
}

func wrapLogText(text string, width int) string {
	if width <= 0 || text == "" {
		return text
	}
	return ansi.Wrap(text, width, "")
}
