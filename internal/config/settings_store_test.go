package config

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"liveconnect/internal/logging"
)

func TestSettingsSaveLoadAndPath(t *testing.T) {
	root := t.TempDir()
	if runtime.GOOS == "windows" {
		t.Setenv("AppData", root)
	} else {
		t.Setenv("XDG_CONFIG_HOME", root)
	}

	path, err := SettingsPath()
	if err != nil {
		t.Fatalf("SettingsPath() error = %v", err)
	}
	if want := filepath.Join(root, "liveconnect", "settings.json"); path != want {
		t.Fatalf("SettingsPath() = %q, want %q", path, want)
	}

	in := Settings{
		PageURL:   "https://app.example.com/",
		DebugAddr: "127.0.0.1:4070",
		Debug:     true,
	}
	if err := SaveSettings(in); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	out, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if out != in {
		t.Fatalf("loaded settings = %#v, want %#v", out, in)
	}
}

func TestMergeOptionsWithSettings_PrefersCLI(t *testing.T) {
	merged := MergeOptionsWithSettings(
		Options{
			PageURL:    "https://cli.example.com/",
			SocketPath: DefaultSocketPath,
			TokenMeta:  "x-token",
		},
		Settings{
			PageURL:    "https://saved.example.com/",
			SocketPath: "/socket",
			TokenMeta:  "saved-meta",
			TokenParam: "_token",
			DebugAddr:  "127.0.0.1:4070",
			Debug:      true,
		},
	)

	if merged.PageURL != "https://cli.example.com/" {
		t.Fatalf("PageURL = %q", merged.PageURL)
	}
	if merged.SocketPath != "/socket" {
		t.Fatalf("SocketPath = %q, default should yield to saved value", merged.SocketPath)
	}
	if merged.TokenMeta != "x-token" {
		t.Fatalf("TokenMeta = %q, explicit CLI value should win", merged.TokenMeta)
	}
	if merged.TokenParam != "_token" {
		t.Fatalf("TokenParam = %q", merged.TokenParam)
	}
	if merged.DebugAddr != "127.0.0.1:4070" || !merged.Debug {
		t.Fatalf("saved debug settings not merged: %#v", merged)
	}
}

func TestWatchSettings_ReportsRewrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := SaveSettingsTo(path, Settings{Debug: false}); err != nil {
		t.Fatalf("SaveSettingsTo() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Settings, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchSettings(ctx, path, logging.Discard(), func(s Settings) { changes <- s })
	}()

	deadline := time.After(5 * time.Second)
	// the watcher registers asynchronously; keep rewriting until one lands
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case s := <-changes:
			if !s.Debug {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("WatchSettings() error = %v", err)
			}
			return
		case <-tick.C:
			if err := SaveSettingsTo(path, Settings{Debug: true}); err != nil {
				t.Fatalf("SaveSettingsTo() error = %v", err)
			}
		case <-deadline:
			t.Fatalf("no settings change observed")
		}
	}
}
