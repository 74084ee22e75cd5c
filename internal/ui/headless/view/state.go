package view

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"liveconnect/internal/config"
	"liveconnect/internal/ui/headless/keyboard"
	"liveconnect/internal/ui/headless/theme"
)

const (
	defaultLogViewWidth  = 80
	defaultLogViewHeight = 20
	defaultBarWidth      = 40
)

type State struct {
	Focus int

	HelpView help.Model
	Keys     keyboard.Map

	ShowLogs   bool
	FollowLogs bool
	DebugOn    bool

	Logs    LogBuffer
	LogView viewport.Model
	Bar     progress.Model
	Spinner spinner.Model

	Width  int
	Height int

	ConfirmQuit       bool
	ConfirmQuitChoice int
	ErrorModalText    string
	HoverZone         string
}

func NewState(opts config.Options) State {
	helpView := help.New()
	helpView.Styles.ShortKey = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	helpView.Styles.FullKey = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	helpView.Styles.ShortDesc = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpView.Styles.FullDesc = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpView.Styles.ShortSeparator = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	helpView.Styles.FullSeparator = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	helpView.Styles.Ellipsis = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	bar := progress.New(
		progress.WithGradient(theme.ProgressFrom, theme.ProgressTo),
		progress.WithWidth(defaultBarWidth),
	)

	return State{
		HelpView:   helpView,
		Keys:       keyboard.New(),
		ShowLogs:   true,
		FollowLogs: true,
		DebugOn:    opts.Debug,
		LogView:    viewport.New(defaultLogViewWidth, defaultLogViewHeight),
		Bar:        bar,
		Spinner:    spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.HelpStyle)),
	}
}

func (s State) WithWindowSize(width int, height int) State {
	s.Width = width
	s.Height = height
	return s
}
