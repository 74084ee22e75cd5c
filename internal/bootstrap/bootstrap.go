// Package bootstrap composes a page session: it reads the page's security
// token, builds the channel handle around it, binds the page-loading signals
// to the loading indicator and starts connecting.
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"liveconnect/internal/eventbus"
	"liveconnect/internal/logging"
)

const (
	DefaultTokenMeta  = "csrf-token"
	DefaultTokenParam = "_csrf_token"

	// DebugName is the well-known name the handle is published under.
	DebugName = "liveSocket"
)

// ErrTokenMissing means the page carries no usable security token. Boot
// returns it before any channel is built or connected.
var ErrTokenMissing = errors.New("security token missing from page")

type Document interface {
	MetaContent(name string) (string, error)
}

type Channel interface {
	Connect()
}

type Indicator interface {
	Start()
	Done()
}

type Bus interface {
	On(name string, fn func(eventbus.Event)) func()
}

type Publisher interface {
	Publish(name string, value any) error
}

// ChannelConfig is the only configuration handed to the channel: the token
// under a single params key.
type ChannelConfig struct {
	Params map[string]string
}

type ChannelFactory func(cfg ChannelConfig) (Channel, error)

// Binding maps one bus signal to one indicator action.
type Binding struct {
	Signal string
	Action func()
}

type Options struct {
	TokenMeta  string
	TokenParam string
}

type Deps struct {
	Document   Document
	Bus        Bus
	Indicator  Indicator
	NewChannel ChannelFactory
}

type Handle struct {
	Config  ChannelConfig
	Channel Channel

	mu     sync.Mutex
	unsubs []func()
}

// Close removes the signal bindings. The channel itself is left alone.
func (h *Handle) Close() {
	h.mu.Lock()
	unsubs := h.unsubs
	h.unsubs = nil
	h.mu.Unlock()
	for _, off := range unsubs {
		off()
	}
}

type Bootstrapper struct {
	opts   Options
	deps   Deps
	logger *logging.Logger

	mu     sync.Mutex
	handle *Handle
}

func New(opts Options, deps Deps, logger *logging.Logger) *Bootstrapper {
	if logger == nil {
		panic("bootstrap.New: logger must not be nil")
	}
	if deps.Document == nil || deps.Bus == nil || deps.Indicator == nil || deps.NewChannel == nil {
		panic("bootstrap.New: document, bus, indicator and channel factory are required")
	}
	if strings.TrimSpace(opts.TokenMeta) == "" {
		opts.TokenMeta = DefaultTokenMeta
	}
	if strings.TrimSpace(opts.TokenParam) == "" {
		opts.TokenParam = DefaultTokenParam
	}
	return &Bootstrapper{opts: opts, deps: deps, logger: logger.With(logging.Field("component", "bootstrap"))}
}

// Boot runs once per Bootstrapper. Later calls return the same handle
// without connecting again.
func (b *Bootstrapper) Boot() (*Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handle != nil {
		b.logger.Debug("bootstrap skipped: handle already exists")
		return b.handle, nil
	}

	token, err := ReadToken(b.deps.Document, b.opts.TokenMeta)
	if err != nil {
		return nil, err
	}
	cfg := NewChannelConfig(b.opts.TokenParam, token)

	channel, err := b.deps.NewChannel(cfg)
	if err != nil {
		return nil, fmt.Errorf("build channel: %w", err)
	}
	if channel == nil {
		return nil, errors.New("build channel: factory returned nil")
	}

	handle := &Handle{Config: cfg, Channel: channel}
	handle.unsubs = Subscribe(b.deps.Bus, SignalTable(b.deps.Indicator))

	channel.Connect()
	b.logger.Info("bootstrap complete",
		logging.Field("token_meta", b.opts.TokenMeta),
		logging.Field("token", token),
	)
	b.handle = handle
	return handle, nil
}

// ReadToken returns the content of the named meta element. A missing
// element, attribute or empty value is ErrTokenMissing.
func ReadToken(doc Document, metaName string) (string, error) {
	token, err := doc.MetaContent(metaName)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenMissing, err)
	}
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: meta[name=%q] is empty", ErrTokenMissing, metaName)
	}
	return token, nil
}

func NewChannelConfig(param string, token string) ChannelConfig {
	return ChannelConfig{Params: map[string]string{param: token}}
}

func SignalTable(indicator Indicator) []Binding {
	return []Binding{
		{Signal: eventbus.PageLoadingStart, Action: indicator.Start},
		{Signal: eventbus.PageLoadingStop, Action: indicator.Done},
	}
}

// Subscribe registers every binding on bus and returns the unsubscribe
// funcs in table order. Event payloads are ignored.
func Subscribe(bus Bus, table []Binding) []func() {
	unsubs := make([]func(), 0, len(table))
	for _, binding := range table {
		action := binding.Action
		unsubs = append(unsubs, bus.On(binding.Signal, func(eventbus.Event) { action() }))
	}
	return unsubs
}

// PublishDebug exposes the handle's channel under DebugName.
func PublishDebug(registry Publisher, handle *Handle) error {
	if handle == nil {
		return errors.New("publish debug handle: nil handle")
	}
	return registry.Publish(DebugName, handle.Channel)
}
