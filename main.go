package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	flags "github.com/jessevdk/go-flags"

	"liveconnect/internal/bootstrap"
	"liveconnect/internal/config"
	"liveconnect/internal/logging"
	"liveconnect/internal/ui/headless"
	"liveconnect/internal/ui/plain"
)

var BuildVersion = "dev"

func main() {
	rootCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	opts, err := config.ParseOptions(nil)
	if err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	opts = mergeSavedSettings(opts)

	unlock, err := lockPage(opts.PageURL)
	switch {
	case errors.Is(err, errInstanceRunning):
		fmt.Fprintln(os.Stderr, "liveconnect is already running for this page host.")
		os.Exit(1)
	case err != nil:
		fmt.Fprintln(os.Stderr, "failed to initialize single-instance lock:", err)
		os.Exit(2)
	}
	defer unlock()

	if !opts.Plain {
		headless.Run(rootCtx, BuildVersion, opts)
		return
	}

	logger := logging.New(opts.Debug)
	defer logger.Close()
	if err := plain.Run(rootCtx, BuildVersion, opts, logger); err != nil {
		if errors.Is(err, bootstrap.ErrTokenMissing) {
			logger.Error("live updates unavailable", logging.Field("error", err))
		} else {
			logger.Error("viewer stopped", logging.Field("error", err))
		}
		_ = logger.Close()
		os.Exit(1)
	}
}

// mergeSavedSettings fills unset options from the settings file and
// remembers an explicitly given page URL for the next run.
func mergeSavedSettings(opts config.Options) config.Options {
	saved, err := config.LoadSettings()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "ignoring unreadable settings:", err)
	}
	cliPage := strings.TrimSpace(opts.PageURL)
	merged := config.MergeOptionsWithSettings(opts, saved)
	if cliPage != "" && cliPage != strings.TrimSpace(saved.PageURL) {
		if err := config.SaveSettings(config.SettingsFromOptions(merged)); err != nil {
			fmt.Fprintln(os.Stderr, "failed to save settings:", err)
		}
	}
	return merged
}
