package config

import (
	"errors"
	"net/url"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

const (
	DefaultSocketPath = "/live"
	DefaultTokenMeta  = "csrf-token"
	DefaultTokenParam = "_csrf_token"
)

type Options struct {
	PageURL    string `long:"page-url" env:"LIVECONNECT_PAGE_URL" description:"Server-rendered page to bootstrap from (e.g. https://app.example.com/dashboard)"`
	SocketPath string `long:"socket-path" env:"LIVECONNECT_SOCKET_PATH" description:"Live socket mount path on the same host" default:"/live"`
	TokenMeta  string `long:"token-meta" env:"LIVECONNECT_TOKEN_META" description:"Name of the <meta> element carrying the security token" default:"csrf-token"`
	TokenParam string `long:"token-param" env:"LIVECONNECT_TOKEN_PARAM" description:"Socket param key the token is sent under" default:"_csrf_token"`
	Plain      bool   `long:"plain" env:"LIVECONNECT_PLAIN" description:"Log progress and status lines instead of running the terminal UI"`
	DebugAddr  string `long:"debug-addr" env:"LIVECONNECT_DEBUG_ADDR" description:"Listen address for the debug handle endpoint (e.g. 127.0.0.1:4070)"`
	Debug      bool   `long:"debug" env:"LIVECONNECT_DEBUG" description:"Enable verbose debug output"`
}

type Endpoints struct {
	PageURL   string
	SocketURL string
	Origin    string
}

func ParseOptions(args []string) (Options, error) {
	_ = godotenv.Load()
	opts := Options{}
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return Options{}, err
	}
	return opts.withDefaults(), nil
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.SocketPath) == "" {
		o.SocketPath = DefaultSocketPath
	}
	if strings.TrimSpace(o.TokenMeta) == "" {
		o.TokenMeta = DefaultTokenMeta
	}
	if strings.TrimSpace(o.TokenParam) == "" {
		o.TokenParam = DefaultTokenParam
	}
	return o
}

func ValidateRequired(opts Options) error {
	if strings.TrimSpace(opts.PageURL) == "" {
		return errors.New("page URL is required")
	}
	return nil
}

// BuildEndpoints derives the socket endpoint from the page URL: same host,
// ws/wss matching http/https, mounted at socketPath. The transport appends
// its own /websocket suffix and query.
func BuildEndpoints(rawPageURL string, socketPath string) (Endpoints, error) {
	page, err := url.Parse(strings.TrimSpace(rawPageURL))
	if err != nil {
		return Endpoints{}, err
	}
	if page.Scheme == "" || page.Host == "" {
		return Endpoints{}, errors.New("expected absolute URL like https://example.com/page")
	}

	socket := *page
	switch strings.ToLower(page.Scheme) {
	case "http":
		socket.Scheme = "ws"
	case "https":
		socket.Scheme = "wss"
	default:
		return Endpoints{}, errors.New("page URL scheme must be http or https")
	}

	path := "/" + strings.Trim(strings.TrimSpace(socketPath), "/")
	if path == "/" {
		path = DefaultSocketPath
	}
	socket.Path = path
	socket.RawPath = ""
	socket.RawQuery = ""
	socket.Fragment = ""
	socket.RawFragment = ""
	socket.User = nil

	page.Fragment = ""
	page.RawFragment = ""
	origin := url.URL{Scheme: strings.ToLower(page.Scheme), Host: page.Host}

	return Endpoints{
		PageURL:   page.String(),
		SocketURL: socket.String(),
		Origin:    origin.String(),
	}, nil
}
