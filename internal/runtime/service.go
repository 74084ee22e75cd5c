package runtime

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"

	"liveconnect/internal/app"
	"liveconnect/internal/config"
	"liveconnect/internal/logging"
)

const defaultHTTPTimeout = 15 * time.Second

type Service interface {
	RunContext(ctx context.Context) error
}

func NewServiceWithHooks(opts config.Options, logger *logging.Logger, hooks StartHooks) (Service, error) {
	if logger == nil {
		panic("runtime.NewServiceWithHooks: logger must not be nil")
	}
	if err := config.ValidateRequired(opts); err != nil {
		return nil, err
	}

	endpoints, err := config.BuildEndpoints(opts.PageURL, opts.SocketPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("constructed endpoints",
		logging.Field("page_url", endpoints.PageURL),
		logging.Field("socket_url", endpoints.SocketURL),
		logging.Field("origin", endpoints.Origin),
	)

	// the page's session cookie has to reach the socket upgrade for the
	// token to validate
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	httpClient := &http.Client{Timeout: defaultHTTPTimeout, Jar: jar}

	viewer := app.New(opts, httpClient, logger, app.Callbacks{
		OnStatusChange: hooks.OnStatus,
		OnProgress:     hooks.OnProgress,
		OnHandle:       hooks.OnHandle,
	})
	if path, pathErr := config.SettingsPath(); pathErr == nil {
		viewer.WatchSettingsFile(path)
	} else {
		logger.Debug("settings file unavailable; live reload disabled", logging.Field("error", pathErr))
	}
	return viewer, nil
}
