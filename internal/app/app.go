package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"liveconnect/internal/bootstrap"
	"liveconnect/internal/config"
	"liveconnect/internal/debugreg"
	"liveconnect/internal/eventbus"
	"liveconnect/internal/liveview"
	"liveconnect/internal/logging"
	"liveconnect/internal/pagetoken"
	"liveconnect/internal/phxsocket"
	"liveconnect/internal/progress"
	"liveconnect/internal/runctx"
	"liveconnect/internal/runstatus"
)

// ViewerApp runs one page session: fetch the page, boot the live socket,
// publish it for debugging and keep it up until the context ends.
type ViewerApp struct {
	opts         config.Options
	http         *http.Client
	logger       *logging.Logger
	hooks        Callbacks
	settingsPath string
	status       runtimeStatusState
}

type Callbacks struct {
	OnStatusChange func(string)
	OnProgress     func(progress.Snapshot)
	// OnHandle receives the live socket once booted so a UI can drive it.
	OnHandle func(*liveview.LiveSocket)
}

func New(opts config.Options, httpClient *http.Client, logger *logging.Logger, hooks Callbacks) *ViewerApp {
	if httpClient == nil {
		panic("app.New: http client must not be nil")
	}
	if logger == nil {
		panic("app.New: logger must not be nil")
	}
	return &ViewerApp{opts: opts, http: httpClient, logger: logger, hooks: hooks}
}

// WatchSettingsFile makes the running app follow the debug flag in the
// settings file at path.
func (a *ViewerApp) WatchSettingsFile(path string) {
	a.settingsPath = strings.TrimSpace(path)
}

func (a *ViewerApp) RunContext(ctx context.Context) error {
	endpoints, err := config.BuildEndpoints(a.opts.PageURL, a.opts.SocketPath)
	if err != nil {
		return err
	}
	a.logger.Info("viewer app starting",
		logging.Field("page_url", endpoints.PageURL),
		logging.Field("socket_url", endpoints.SocketURL),
	)

	doc, err := pagetoken.Fetch(ctx, a.http, endpoints.PageURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPageFetch, err)
	}
	a.setRuntimeStatus(runstatus.PageLoaded)

	var mainView *pagetoken.MainView
	if view, ok := doc.MainView(); ok {
		mainView = &view
		a.logger.Debug("main live view found", logging.Field("id", view.ID))
	} else {
		a.logger.Info("page has no main live view; connecting socket only")
	}

	bus := eventbus.New()
	bar := progress.New(progress.Options{})
	progressUpdates := make(chan progress.Snapshot, 1)
	offProgress := bar.OnChange(func(snap progress.Snapshot) {
		runctx.SendLatest(progressUpdates, snap)
	})
	defer offProgress()

	runCtx, cancelRun := context.WithCancel(ctx)
	var forwarders sync.WaitGroup
	forwarders.Go(func() { a.forwardProgress(runCtx, progressUpdates) })
	defer func() {
		cancelRun()
		forwarders.Wait()
	}()

	var live *liveview.LiveSocket
	booter := bootstrap.New(bootstrap.Options{
		TokenMeta:  a.opts.TokenMeta,
		TokenParam: a.opts.TokenParam,
	}, bootstrap.Deps{
		Document:  doc,
		Bus:       bus,
		Indicator: bar,
		NewChannel: func(cfg bootstrap.ChannelConfig) (bootstrap.Channel, error) {
			socket, buildErr := liveview.New(endpoints.SocketURL, liveview.Options{
				Params:   cfg.Params,
				PageURL:  endpoints.PageURL,
				Origin:   endpoints.Origin,
				MainView: mainView,
				Jar:      a.http.Jar,
				Bus:      bus,
			}, a.logger)
			if buildErr != nil {
				return nil, buildErr
			}
			a.watchSocket(runCtx, socket)
			live = socket
			a.setRuntimeStatus(runstatus.Connecting)
			return socket, nil
		},
	}, a.logger)

	handle, err := booter.Boot()
	if err != nil {
		return err
	}
	defer handle.Close()

	registry := debugreg.New()
	if err := bootstrap.PublishDebug(registry, handle); err != nil {
		live.Disconnect()
		return err
	}
	if a.hooks.OnHandle != nil {
		a.hooks.OnHandle(live)
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	if addr := strings.TrimSpace(a.opts.DebugAddr); addr != "" {
		group.Go(func() error {
			return debugreg.Serve(groupCtx, addr, registry.Handler(a.logger), a.logger)
		})
	}
	if a.settingsPath != "" {
		group.Go(func() error {
			watchErr := config.WatchSettings(groupCtx, a.settingsPath, a.logger, func(s config.Settings) {
				if s.Debug != a.logger.DebugEnabled() {
					a.logger.SetDebugEnabled(s.Debug)
					a.logger.Info("debug output toggled from settings file", logging.Field("debug", s.Debug))
				}
			})
			if watchErr != nil {
				a.logger.Warn("settings watcher unavailable", logging.Field("error", watchErr))
			}
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		live.Disconnect()
		return nil
	})

	runErr := group.Wait()
	a.setRuntimeStatus(runstatus.Disconnected)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		a.logger.Warn("viewer app stopped with error", logging.Field("error", runErr))
		return runErr
	}
	a.logger.Info("viewer app stopped")
	return nil
}

func (a *ViewerApp) watchSocket(ctx context.Context, live *liveview.LiveSocket) {
	live.OnOpen(func() {
		a.setRuntimeStatus(runstatus.Connected)
	})
	live.OnJoin(func(reply phxsocket.Reply) {
		if reply.OK() {
			a.setRuntimeStatus(runstatus.Joined)
		}
	})
	live.OnViewLost(func(event string) {
		if ctx.Err() != nil || !live.IsConnected() {
			return
		}
		a.logger.Debug("live view lost", logging.Field("event", event))
		a.setRuntimeStatus(runstatus.Connected)
	})
	live.OnClose(func(err error) {
		if ctx.Err() != nil {
			return
		}
		switch {
		case errors.Is(err, context.Canceled):
			a.setRuntimeStatus(runstatus.Disconnected)
		case phxsocket.IsUnauthorized(err):
			a.logger.Error("live socket rejected the connection", logging.Field("error", fmt.Errorf("%w: %w", ErrSocketRefused, err)))
			a.setRuntimeStatus(runstatus.DisconnectedAuth)
		case err != nil:
			a.logger.Debug("live socket disconnected", logging.Field("error", err))
			a.setRuntimeStatus(runstatus.Reconnecting)
		default:
			a.setRuntimeStatus(runstatus.Reconnecting)
		}
	})
}

func (a *ViewerApp) forwardProgress(ctx context.Context, updates <-chan progress.Snapshot) {
	for {
		snap, ok := runctx.RecvOrDone(ctx, "progress forwarder", a.logger, updates)
		if !ok {
			return
		}
		if a.hooks.OnProgress != nil {
			a.hooks.OnProgress(snap)
		}
	}
}

type runtimeStatusState struct {
	mu      sync.Mutex
	current string
}

func (s *runtimeStatusState) update(status string) (string, string, bool) {
	trimmed := strings.TrimSpace(status)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == trimmed {
		return s.current, trimmed, false
	}
	previous := s.current
	s.current = trimmed
	return previous, trimmed, true
}

func (a *ViewerApp) notifyStatus(status string) {
	if a.hooks.OnStatusChange == nil {
		return
	}
	a.hooks.OnStatusChange(status)
}

func (a *ViewerApp) setRuntimeStatus(status string) {
	previous, next, changed := a.status.update(status)
	if !changed {
		return
	}
	a.logger.Debug("runtime status transition",
		logging.Field("from", previous),
		logging.Field("to", next),
	)
	a.notifyStatus(status)
}
