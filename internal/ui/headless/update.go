package headless

import (
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"liveconnect/internal/bootstrap"
	"liveconnect/internal/logging"
	"liveconnect/internal/progress"
	headlessview "liveconnect/internal/ui/headless/view"
)

func (m *headlessModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.quitting {
		if _, ok := msg.(quitNowMsg); ok {
			m.cleanup()
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ui = m.ui.WithWindowSize(msg.Width, msg.Height)
		m.ui.ResizeLogs(nonLogLayoutReserveMin, minLogPanelHeight)
		m.ui.ResizeBar()
		return m, nil
	case logMsg:
		wasAtBottom := m.ui.LogView.AtBottom()
		m.ui.Logs.Append(string(msg))
		m.ui.SetLogViewportContent()
		if m.ui.FollowLogs || wasAtBottom {
			m.ui.LogView.GotoBottom()
			m.ui.FollowLogs = true
		}
		return m, waitFor(m.logCh, func(line string) tea.Msg { return logMsg(line) })
	case statusMsg:
		m.applyRuntimeStatus(string(msg))
		return m, waitFor(m.statusCh, func(status string) tea.Msg { return statusMsg(status) })
	case progressMsg:
		m.progress = progress.Snapshot(msg)
		return m, waitFor(m.progressCh, func(snap progress.Snapshot) tea.Msg { return progressMsg(snap) })
	case handleMsg:
		m.live = msg.live
		m.refreshHandle()
		return m, nil
	case runDoneMsg:
		m.running = false
		m.connecting = false
		m.live = nil
		m.progress = progress.Snapshot{}
		if msg.err != nil {
			m.setStatus("Stopped (error)", statusError)
			m.ui.ErrorModalText = runErrorText(msg.err)
		} else {
			m.setStatus("Idle", statusIdle)
		}
		return m, nil
	case startResultMsg:
		if msg.err != nil {
			m.connecting = false
			m.setStatus("Stopped (error)", statusError)
			m.ui.ErrorModalText = msg.err.Error()
			return m, nil
		}
		m.running = true
		return m, nil
	case tickMsg:
		m.refreshHandle()
		return m, tickCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.ui.Spinner, cmd = m.ui.Spinner.Update(msg)
		return m, cmd
	case tea.MouseMsg:
		return m.updateMouseMsg(msg)
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}
	return m, nil
}

func runErrorText(err error) string {
	if errors.Is(err, bootstrap.ErrTokenMissing) {
		return "The page has no security token; live updates are unavailable. (" + err.Error() + ")"
	}
	return err.Error()
}

func (m *headlessModel) updateMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	next, cmd, effect := headlessview.ReduceMouse(m.ui, msg)
	m.ui = next
	switch effect {
	case headlessview.MouseEffectActivateFocused:
		return m, tea.Batch(cmd, m.activateFocusedControl())
	case headlessview.MouseEffectConfirmQuitAccept:
		return m, tea.Batch(cmd, m.beginQuitCmd())
	}
	return m, cmd
}

func (m *headlessModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	next, effect := headlessview.ReduceKey(m.ui, msg)
	m.ui = next
	switch effect {
	case headlessview.KeyEffectRequestQuit:
		return m, m.requestQuitCmd()
	case headlessview.KeyEffectActivateFocused:
		return m, m.activateFocusedControl()
	case headlessview.KeyEffectToggleConnection:
		return m, m.applyActivateEffect(headlessview.ReduceToggle(m.running, m.connecting))
	case headlessview.KeyEffectConfirmQuitAccept:
		return m, m.beginQuitCmd()
	}
	return m, nil
}

func (m *headlessModel) activateFocusedControl() tea.Cmd {
	next, effect := headlessview.ReduceActivate(m.ui, m.running, m.connecting)
	m.ui = next
	return m.applyActivateEffect(effect)
}

func (m *headlessModel) applyActivateEffect(effect headlessview.ActivateEffect) tea.Cmd {
	switch effect {
	case headlessview.ActivateEffectConnect:
		return m.startViewerCmd(false)
	case headlessview.ActivateEffectDisconnect:
		m.runner.Stop()
		m.setStatus("Stopping...", statusStopping)
		return nil
	case headlessview.ActivateEffectRequestQuit:
		return m.requestQuitCmd()
	case headlessview.ActivateEffectDebugLevelChanged:
		m.logger.SetDebugEnabled(m.ui.DebugOn)
		return nil
	default:
		return nil
	}
}

func (m *headlessModel) requestQuitCmd() tea.Cmd {
	if m.running || m.connecting {
		m.ui.ConfirmQuit = true
		m.ui.ConfirmQuitChoice = headlessview.ConfirmQuitChoiceCancel
		return nil
	}
	return m.beginQuitCmd()
}

func (m *headlessModel) beginQuitCmd() tea.Cmd {
	m.quitting = true
	m.ui.ConfirmQuit = false
	m.logger.Debug("quit requested", logging.Field("running", m.running))
	return quitProgramCmd()
}

func quitProgramCmd() tea.Cmd {
	return tea.Sequence(func() tea.Msg {
		return tea.DisableMouse()
	}, waitForMouseDrainCmd(), func() tea.Msg {
		return quitNowMsg{}
	})
}

func waitForMouseDrainCmd() tea.Cmd {
	return func() tea.Msg {
		time.Sleep(120 * time.Millisecond)
		return nil
	}
}
