package headless

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"liveconnect/internal/config"
	"liveconnect/internal/logging"
	"liveconnect/internal/progress"
	"liveconnect/internal/runctx"
	"liveconnect/internal/runtime"
	headlessview "liveconnect/internal/ui/headless/view"
)

const (
	logChannelBufferSize      = 512
	statusChannelBufferSize   = 16
	progressChannelBufferSize = 1
	updateTickInterval        = 120 * time.Millisecond
	runErrorExitCode          = 1
	stopWaitTimeout           = 5 * time.Second
)

// Run starts the terminal UI and blocks until the user quits. The viewer
// auto-starts when a page URL is configured.
func Run(rootCtx context.Context, buildVersion string, opts config.Options) {
	defer forceDisableMouseTracking()

	// the alt screen owns the terminal; log lines go to the file and the log pane
	logger := logging.New(opts.Debug)
	logger.SetTerminalOutputEnabled(false)
	if err := logger.EnableFilePersistence(0); err != nil {
		logger.Warn("log file unavailable", logging.Field("error", err))
	}
	defer logger.Close()
	logger.Info("starting liveconnect TUI", logging.Field("version", buildVersion))

	m := newHeadlessModel(rootCtx, buildVersion, opts, logger)
	zone.NewGlobal()
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion())
	m.program = program
	result, runErr := program.Run()
	if model, _ := result.(*headlessModel); model != nil {
		model.cleanup()
	}
	// The program has stopped reading messages, so runtime hooks no longer block.
	if !m.runner.Wait(stopWaitTimeout) {
		logger.Warn("viewer did not stop in time", logging.Field("timeout", stopWaitTimeout))
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(runErrorExitCode)
	}
}

func forceDisableMouseTracking() {
	_, _ = os.Stdout.WriteString("\x1b[?1000l\x1b[?1002l\x1b[?1003l\x1b[?1006l\x1b[?1015l")
}

func newHeadlessModel(rootCtx context.Context, buildVersion string, opts config.Options, logger *logging.Logger) *headlessModel {
	if rootCtx == nil {
		rootCtx = context.Background()
	}
	runCtx, runCancel := context.WithCancel(rootCtx)

	m := &headlessModel{
		buildVersion: buildVersion,
		opts:         opts,
		modelDeps: modelDeps{
			runner:     runtime.NewController(runCtx),
			logger:     logger,
			rootCtx:    runCtx,
			rootCancel: runCancel,
		},
		modelChannels: modelChannels{
			logCh:      make(chan string, logChannelBufferSize),
			statusCh:   make(chan string, statusChannelBufferSize),
			progressCh: make(chan progress.Snapshot, progressChannelBufferSize),
		},
		modelRuntime: modelRuntime{
			status: "Idle",
			kind:   statusIdle,
		},
		ui: headlessview.NewState(opts),
	}

	m.unsubscribe = logger.Subscribe(func(event logging.Event) {
		runctx.SendLatest(m.logCh, logging.FormatEventANSI(event))
	})

	return m
}

func (m *headlessModel) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitFor(m.logCh, func(line string) tea.Msg { return logMsg(line) }),
		waitFor(m.statusCh, func(status string) tea.Msg { return statusMsg(status) }),
		waitFor(m.progressCh, func(snap progress.Snapshot) tea.Msg { return progressMsg(snap) }),
		tickCmd(),
		m.ui.Spinner.Tick,
	}
	if config.ValidateRequired(m.opts) == nil {
		cmds = append(cmds, m.startViewerCmd(true))
	}
	return tea.Batch(cmds...)
}

func waitFor[T any](ch <-chan T, wrap func(T) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return wrap(v)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(updateTickInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}
