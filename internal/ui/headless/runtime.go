package headless

import (
	tea "github.com/charmbracelet/bubbletea"

	"liveconnect/internal/config"
	"liveconnect/internal/liveview"
	"liveconnect/internal/progress"
	"liveconnect/internal/runctx"
	"liveconnect/internal/runstatus"
	"liveconnect/internal/runtime"
)

func (m *headlessModel) startViewerCmd(auto bool) tea.Cmd {
	if err := config.ValidateRequired(m.opts); err != nil {
		m.ui.ErrorModalText = m.startErrorText(auto, err.Error())
		return nil
	}

	m.connecting = true
	m.setStatus("Connecting...", statusConnecting)
	m.ui.ErrorModalText = ""
	m.live = nil
	m.handleSnap = nil

	opts := m.opts
	opts.Debug = m.ui.DebugOn
	return func() tea.Msg {
		err := m.runner.Start(opts, m.logger, runtime.StartHooks{
			OnStatus:   m.onRuntimeStatus,
			OnProgress: m.onRuntimeProgress,
			OnHandle:   m.onRuntimeHandle,
			OnExit:     m.onRuntimeExit,
		})
		return startResultMsg{err: err}
	}
}

func (m *headlessModel) onRuntimeStatus(status string) {
	runctx.SendLatest(m.statusCh, status)
}

// onRuntimeProgress keeps only the newest indicator state; intermediate
// trickle steps are not worth a frame each.
func (m *headlessModel) onRuntimeProgress(snap progress.Snapshot) {
	runctx.SendLatest(m.progressCh, snap)
}

func (m *headlessModel) onRuntimeHandle(live *liveview.LiveSocket) {
	if m.program == nil {
		return
	}
	m.program.Send(handleMsg{live: live})
}

func (m *headlessModel) onRuntimeExit(runErr error) {
	if m.program == nil {
		return
	}
	m.program.Send(runDoneMsg{err: runErr})
}

// runtimeStatusEffects maps a runtime status key to the badge it shows and
// how it moves the connecting/running flags. Unknown keys only update text.
var runtimeStatusEffects = map[string]struct {
	kind       statusKind
	connecting bool
	running    bool
}{
	runstatus.KeyPageLoaded:       {kind: statusConnecting, connecting: true},
	runstatus.KeyConnecting:       {kind: statusConnecting, connecting: true},
	runstatus.KeyReconnecting:     {kind: statusConnecting, connecting: true},
	runstatus.KeyConnected:        {kind: statusConnected, running: true},
	runstatus.KeyJoined:           {kind: statusConnected, running: true},
	runstatus.KeyDisconnected:     {kind: statusIdle},
	runstatus.KeyDisconnectedAuth: {kind: statusError},
}

func (m *headlessModel) applyRuntimeStatus(status string) {
	effect, ok := runtimeStatusEffects[runstatus.Key(status)]
	if !ok {
		m.status = status
		return
	}
	m.setStatus(status, effect.kind)
	m.connecting = effect.connecting
	if effect.running {
		m.running = true
	}
}

func (m *headlessModel) setStatus(text string, kind statusKind) {
	m.status = text
	m.kind = kind
}

func (m *headlessModel) refreshHandle() {
	if m.live == nil {
		return
	}
	snap := m.live.Snapshot()
	m.handleSnap = &snap
}

func (m *headlessModel) startErrorText(auto bool, message string) string {
	if !auto {
		return message
	}
	return "Couldn't auto-connect due to: " + message
}

func (m *headlessModel) cleanup() {
	m.cleanupOnce.Do(func() {
		m.logger.Debug("headless cleanup started")

		if m.rootCancel != nil {
			m.logger.Debug("canceling headless root context")
			m.rootCancel()
		}

		if m.unsubscribe != nil {
			m.unsubscribe()
		}

		m.logger.Debug("stopping runtime controller")
		m.runner.Stop()
		m.logger.Debug("headless cleanup complete")
	})
}
