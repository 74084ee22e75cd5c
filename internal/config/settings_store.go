package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

type Settings struct {
	PageURL    string `json:"page_url"`
	SocketPath string `json:"socket_path,omitempty"`
	TokenMeta  string `json:"token_meta,omitempty"`
	TokenParam string `json:"token_param,omitempty"`
	DebugAddr  string `json:"debug_addr,omitempty"`
	Debug      bool   `json:"debug"`
}

func SettingsPath() (string, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "liveconnect", "settings.json"), nil
}

func LoadSettings() (Settings, error) {
	path, err := SettingsPath()
	if err != nil {
		return Settings{}, err
	}
	return LoadSettingsFrom(path)
}

func LoadSettingsFrom(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func SaveSettings(settings Settings) error {
	path, err := SettingsPath()
	if err != nil {
		return err
	}
	return SaveSettingsTo(path, settings)
}

func SaveSettingsTo(path string, settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// MergeOptionsWithSettings fills values the command line left empty (or at
// their defaults) from the saved settings. Explicit CLI values win.
func MergeOptionsWithSettings(cli Options, saved Settings) Options {
	cli = cli.withDefaults()
	if strings.TrimSpace(cli.PageURL) == "" {
		cli.PageURL = strings.TrimSpace(saved.PageURL)
	}
	if cli.SocketPath == DefaultSocketPath && strings.TrimSpace(saved.SocketPath) != "" {
		cli.SocketPath = strings.TrimSpace(saved.SocketPath)
	}
	if cli.TokenMeta == DefaultTokenMeta && strings.TrimSpace(saved.TokenMeta) != "" {
		cli.TokenMeta = strings.TrimSpace(saved.TokenMeta)
	}
	if cli.TokenParam == DefaultTokenParam && strings.TrimSpace(saved.TokenParam) != "" {
		cli.TokenParam = strings.TrimSpace(saved.TokenParam)
	}
	if strings.TrimSpace(cli.DebugAddr) == "" {
		cli.DebugAddr = strings.TrimSpace(saved.DebugAddr)
	}
	if !cli.Debug {
		cli.Debug = saved.Debug
	}
	return cli
}

func SettingsFromOptions(opts Options) Settings {
	return Settings{
		PageURL:    strings.TrimSpace(opts.PageURL),
		SocketPath: strings.TrimSpace(opts.SocketPath),
		TokenMeta:  strings.TrimSpace(opts.TokenMeta),
		TokenParam: strings.TrimSpace(opts.TokenParam),
		DebugAddr:  strings.TrimSpace(opts.DebugAddr),
		Debug:      opts.Debug,
	}
}
