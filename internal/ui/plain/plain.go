// Package plain runs the viewer without a terminal UI and reports status
// and loading-indicator transitions as log lines.
package plain

import (
	"context"
	"time"

	"liveconnect/internal/config"
	"liveconnect/internal/liveview"
	"liveconnect/internal/logging"
	"liveconnect/internal/progress"
	"liveconnect/internal/runctx"
	"liveconnect/internal/runtime"
)

const stopWaitTimeout = 5 * time.Second

// Run starts the viewer and blocks until ctx is done or the viewer exits.
// It returns the viewer's exit error; a clean stop returns nil.
func Run(ctx context.Context, buildVersion string, opts config.Options, logger *logging.Logger) error {
	if logger == nil {
		panic("plain.Run: logger must not be nil")
	}
	logger.Info("starting liveconnect", logging.Field("version", buildVersion), logging.Field("page_url", opts.PageURL))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	statusCh := make(chan string)
	progressCh := make(chan progress.Snapshot)
	exitCh := make(chan error, 1)

	runner := runtime.NewController(runCtx)
	err := runner.Start(opts, logger, runtime.StartHooks{
		OnStatus: func(status string) {
			runctx.SendOrDone(runCtx, "status reporter", logger, statusCh, status)
		},
		OnProgress: func(snap progress.Snapshot) {
			runctx.SendOrDone(runCtx, "indicator reporter", logger, progressCh, snap)
		},
		OnHandle: func(live *liveview.LiveSocket) {
			logger.Info("live socket handle ready",
				logging.Field("id", live.ID()),
				logging.Field("endpoint", live.Socket().Endpoint()),
			)
		},
		OnExit: func(runErr error) {
			exitCh <- runErr
		},
	})
	if err != nil {
		return err
	}

	r := reporter{logger: logger}
	for {
		select {
		case <-runCtx.Done():
			cancel()
			if !runner.Wait(stopWaitTimeout) {
				logger.Warn("viewer did not stop in time", logging.Field("timeout", stopWaitTimeout))
				return nil
			}
			return <-exitCh
		case status := <-statusCh:
			r.status(status)
		case snap := <-progressCh:
			r.progress(snap)
		case runErr := <-exitCh:
			return runErr
		}
	}
}

type reporter struct {
	logger     *logging.Logger
	lastStatus string
	active     bool
}

func (r *reporter) status(status string) {
	if status == r.lastStatus {
		return
	}
	r.lastStatus = status
	r.logger.Info("status changed", logging.Field("status", status))
}

// progress logs start/finish transitions; intermediate trickle steps only
// show at debug level.
func (r *reporter) progress(snap progress.Snapshot) {
	switch {
	case snap.Active && !r.active:
		r.logger.Info("page loading started", logging.Field("value", snap.Value))
	case !snap.Active && r.active:
		r.logger.Info("page loading finished")
	default:
		r.logger.Debug("page loading progress", logging.Field("value", snap.Value))
	}
	r.active = snap.Active
}
