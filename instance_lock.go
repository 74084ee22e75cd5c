package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

var errInstanceRunning = errors.New("another liveconnect instance holds the lock for this page host")

// lockPage takes the per-host instance lock. The returned func releases it.
func lockPage(pageURL string) (func(), error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config directory: %w", err)
	}
	dir = filepath.Join(dir, "liveconnect", "locks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(filepath.Join(dir, lockName(pageURL)+".lock"))
	switch ok, err := fl.TryLock(); {
	case err != nil:
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	case !ok:
		return nil, errInstanceRunning
	}
	return func() { _ = fl.Unlock() }, nil
}

// lockName reduces the page host to a file-name-safe token.
func lockName(pageURL string) string {
	host := "default"
	if u, err := url.Parse(strings.TrimSpace(pageURL)); err == nil && u.Host != "" {
		host = strings.ToLower(u.Host)
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return '_'
	}, host)
}
