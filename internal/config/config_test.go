package config

import "testing"

func TestBuildEndpoints_DerivesSocketURL(t *testing.T) {
	tests := []struct {
		name       string
		page       string
		socketPath string
		wantSocket string
		wantOrigin string
		wantPage   string
	}{
		{
			name:       "http page",
			page:       "http://127.0.0.1:4000/dashboard",
			socketPath: "/live",
			wantSocket: "ws://127.0.0.1:4000/live",
			wantOrigin: "http://127.0.0.1:4000",
			wantPage:   "http://127.0.0.1:4000/dashboard",
		},
		{
			name:       "https page with query and fragment",
			page:       "https://app.example.com/rooms/1?tab=chat#bottom",
			socketPath: "live/",
			wantSocket: "wss://app.example.com/live",
			wantOrigin: "https://app.example.com",
			wantPage:   "https://app.example.com/rooms/1?tab=chat",
		},
		{
			name:       "empty socket path falls back to default",
			page:       "https://app.example.com/",
			socketPath: " ",
			wantSocket: "wss://app.example.com/live",
			wantOrigin: "https://app.example.com",
			wantPage:   "https://app.example.com/",
		},
		{
			name:       "custom mount",
			page:       "HTTPS://app.example.com",
			socketPath: "/socket/live",
			wantSocket: "wss://app.example.com/socket/live",
			wantOrigin: "https://app.example.com",
			wantPage:   "https://app.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoints, err := BuildEndpoints(tt.page, tt.socketPath)
			if err != nil {
				t.Fatalf("BuildEndpoints() error = %v", err)
			}
			if endpoints.SocketURL != tt.wantSocket {
				t.Fatalf("SocketURL = %q, want %q", endpoints.SocketURL, tt.wantSocket)
			}
			if endpoints.Origin != tt.wantOrigin {
				t.Fatalf("Origin = %q, want %q", endpoints.Origin, tt.wantOrigin)
			}
			if endpoints.PageURL != tt.wantPage {
				t.Fatalf("PageURL = %q, want %q", endpoints.PageURL, tt.wantPage)
			}
		})
	}
}

func TestBuildEndpoints_InvalidURL(t *testing.T) {
	tests := []string{
		"",
		"/relative/page",
		"ftp://example.com",
		"ws://example.com/live",
	}
	for _, page := range tests {
		t.Run(page, func(t *testing.T) {
			if _, err := BuildEndpoints(page, DefaultSocketPath); err == nil {
				t.Fatalf("expected error for %q", page)
			}
		})
	}
}

func TestParseOptions_Defaults(t *testing.T) {
	t.Setenv("LIVECONNECT_PAGE_URL", "")
	t.Setenv("LIVECONNECT_SOCKET_PATH", "")
	opts, err := ParseOptions([]string{"--page-url", "http://localhost:4000/"})
	if err != nil {
		t.Fatalf("ParseOptions() error = %v", err)
	}
	if opts.PageURL != "http://localhost:4000/" {
		t.Fatalf("PageURL = %q", opts.PageURL)
	}
	if opts.SocketPath != DefaultSocketPath || opts.TokenMeta != DefaultTokenMeta || opts.TokenParam != DefaultTokenParam {
		t.Fatalf("defaults not applied: %#v", opts)
	}
	if err := ValidateRequired(opts); err != nil {
		t.Fatalf("ValidateRequired() error = %v", err)
	}
	if err := ValidateRequired(Options{}); err == nil {
		t.Fatalf("ValidateRequired(empty) expected error")
	}
}
