package headless

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"liveconnect/internal/config"
	"liveconnect/internal/liveview"
	"liveconnect/internal/logging"
	"liveconnect/internal/progress"
	"liveconnect/internal/runtime"
	"liveconnect/internal/ui/headless/theme"
	headlessview "liveconnect/internal/ui/headless/view"
)

const (
	minLogPanelHeight      = headlessview.DefaultMinLogPanelHeight
	nonLogLayoutReserveMin = headlessview.DefaultNonLogLayoutReserveMin
)

type logMsg string
type statusMsg string
type progressMsg progress.Snapshot
type tickMsg struct{}

type handleMsg struct {
	live *liveview.LiveSocket
}

type runDoneMsg struct {
	err error
}

type startResultMsg struct {
	err error
}

type quitNowMsg struct{}

type statusKind int

const (
	statusIdle       statusKind = theme.StatusIdle
	statusConnecting statusKind = theme.StatusConnecting
	statusConnected  statusKind = theme.StatusConnected
	statusStopping   statusKind = theme.StatusStopping
	statusError      statusKind = theme.StatusError
)

type modelDeps struct {
	runner      *runtime.Controller
	logger      *logging.Logger
	unsubscribe func()
	rootCtx     context.Context
	rootCancel  context.CancelFunc
	program     *tea.Program
}

type modelChannels struct {
	logCh      chan string
	statusCh   chan string
	progressCh chan progress.Snapshot
}

type modelRuntime struct {
	running    bool
	connecting bool
	quitting   bool
	status     string
	kind       statusKind
	progress   progress.Snapshot

	live       *liveview.LiveSocket
	handleSnap *liveview.Snapshot
}

type headlessModel struct {
	buildVersion string
	opts         config.Options
	modelDeps
	modelChannels
	modelRuntime
	cleanupOnce sync.Once
	ui          headlessview.State
}
