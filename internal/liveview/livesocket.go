// Package liveview drives one LiveView page session over a phxsocket: it
// joins the page's main view and reports page-loading signals on the bus.
package liveview

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"liveconnect/internal/eventbus"
	"liveconnect/internal/logging"
	"liveconnect/internal/pagetoken"
	"liveconnect/internal/phxsocket"
)

const (
	EventDiff         = "diff"
	EventRedirect     = "redirect"
	EventLiveRedirect = "live_redirect"
)

// Dispatcher is the part of the event bus the live socket emits on.
type Dispatcher interface {
	Dispatch(name string, detail eventbus.Detail) int
}

type Options struct {
	Params   map[string]string
	PageURL  string
	Origin   string
	MainView *pagetoken.MainView
	Jar      http.CookieJar
	Bus      Dispatcher

	HeartbeatInterval time.Duration
	ReconnectInitial  time.Duration
	ReconnectMax      time.Duration
}

type Snapshot struct {
	ID       string            `json:"id"`
	Endpoint string            `json:"endpoint"`
	State    phxsocket.State   `json:"state"`
	Params   map[string]string `json:"params"`
	URL      string            `json:"url"`
	Topic    string            `json:"topic,omitempty"`
	Joined   bool              `json:"joined"`
	Mounts   int               `json:"mounts"`
	Diffs    int               `json:"diffs"`
	Messages int               `json:"messages"`
	Stats    phxsocket.Stats   `json:"stats"`
	LastErr  string            `json:"last_error,omitempty"`
}

type LiveSocket struct {
	id      string
	socket  *phxsocket.Socket
	channel *phxsocket.Channel
	view    *pagetoken.MainView
	params  map[string]string
	bus     Dispatcher
	logger  *logging.Logger

	mu      sync.Mutex
	url     string
	mounts   int
	diffs    int
	messages int
	joined   bool
	loading  bool
}

func New(endpoint string, opts Options, logger *logging.Logger) (*LiveSocket, error) {
	if logger == nil {
		panic("liveview.New: logger must not be nil")
	}
	id := uuid.NewString()
	logger = logger.With(logging.Field("component", "liveview"), logging.Field("live_socket", id))
	header := http.Header{}
	if opts.Origin != "" {
		header.Set("Origin", opts.Origin)
	}
	socket, err := phxsocket.New(endpoint, phxsocket.Options{
		Params:            opts.Params,
		Header:            header,
		Jar:               opts.Jar,
		HeartbeatInterval: opts.HeartbeatInterval,
		ReconnectInitial:  opts.ReconnectInitial,
		ReconnectMax:      opts.ReconnectMax,
	}, logger)
	if err != nil {
		return nil, err
	}

	l := &LiveSocket{
		id:     id,
		socket: socket,
		params: copyParams(opts.Params),
		bus:    opts.Bus,
		logger: logger,
		url:    opts.PageURL,
	}
	if opts.MainView != nil {
		view := *opts.MainView
		if view.ID == "" {
			view.ID = "phx-" + uuid.NewString()
		}
		l.view = &view
		l.channel = socket.Channel("lv:"+view.ID, l.joinPayload)
		l.channel.OnJoin(l.joinReplied)
		l.channel.On(EventDiff, l.handleDiff)
		l.channel.On(EventRedirect, l.handleRedirect)
		l.channel.On(EventLiveRedirect, l.handleRedirect)
		l.channel.On(phxsocket.EventError, l.viewCrashed)
		l.channel.On(phxsocket.EventClose, l.viewClosed)
		l.channel.Join()
	}

	socket.OnOpen(l.socketOpened)
	socket.OnClose(l.socketClosed)
	socket.OnMessage(l.messageReceived)
	return l, nil
}

func (l *LiveSocket) ID() string { return l.id }

func (l *LiveSocket) Socket() *phxsocket.Socket { return l.socket }

// Params returns the connect params exactly as configured.
func (l *LiveSocket) Params() map[string]string { return copyParams(l.params) }

// Connect starts connecting and returns immediately. The main view is
// joined again if an earlier Disconnect or a server close left it.
func (l *LiveSocket) Connect() {
	l.logger.Debug("live socket connect requested",
		logging.Field("id", l.id),
		logging.Field("endpoint", l.socket.Endpoint()),
	)
	if l.channel != nil {
		l.channel.Join()
	}
	l.socket.Connect()
}

// Disconnect leaves the main view, then closes the socket and waits for it.
func (l *LiveSocket) Disconnect() {
	if l.channel != nil {
		if err := l.channel.Leave(); err != nil {
			l.logger.Debug("live view leave failed", logging.Field("error", err))
		}
	}
	l.socket.Disconnect()
	l.mu.Lock()
	l.joined = false
	l.mu.Unlock()
	l.stopLoading(eventbus.Detail{Kind: eventbus.KindError})
}

func (l *LiveSocket) IsConnected() bool { return l.socket.IsConnected() }

func (l *LiveSocket) Done() <-chan struct{} { return l.socket.Done() }

func (l *LiveSocket) OnOpen(fn func()) { l.socket.OnOpen(fn) }

func (l *LiveSocket) OnClose(fn func(error)) { l.socket.OnClose(fn) }

// OnJoin is called for every main view join reply. Pages without a main
// view never call it.
func (l *LiveSocket) OnJoin(fn func(phxsocket.Reply)) {
	if l.channel != nil {
		l.channel.OnJoin(fn)
	}
}

// OnViewLost is called with phx_error or phx_close when the server crashes
// or closes the main view channel. Pages without a main view never call it.
func (l *LiveSocket) OnViewLost(fn func(event string)) {
	if l.channel == nil {
		return
	}
	lost := func(msg phxsocket.Message) { fn(msg.Event) }
	l.channel.On(phxsocket.EventError, lost)
	l.channel.On(phxsocket.EventClose, lost)
}

func (l *LiveSocket) Joined() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.joined
}

func (l *LiveSocket) Snapshot() Snapshot {
	redacted := make(map[string]string, len(l.params))
	for k, v := range l.params {
		redacted[k] = logging.Redact(v)
	}
	l.mu.Lock()
	snap := Snapshot{
		ID:       l.id,
		Endpoint: l.socket.Endpoint(),
		Params:   redacted,
		URL:      l.url,
		Joined:   l.joined,
		Mounts:   l.mounts,
		Diffs:    l.diffs,
		Messages: l.messages,
	}
	l.mu.Unlock()
	if l.channel != nil {
		snap.Topic = l.channel.Topic()
	}
	snap.State = l.socket.State()
	snap.Stats = l.socket.Stats()
	if err := l.socket.Err(); err != nil {
		snap.LastErr = err.Error()
	}
	return snap
}

func (l *LiveSocket) DebugSnapshot() any { return l.Snapshot() }

func (l *LiveSocket) socketOpened() {
	if l.channel == nil {
		l.logger.Info("live socket open without a main view", logging.Field("url", l.currentURL()))
		return
	}
	l.startLoading(eventbus.Detail{Kind: eventbus.KindInitial, To: l.currentURL()})
}

func (l *LiveSocket) socketClosed(err error) {
	l.mu.Lock()
	wasJoined := l.joined
	l.joined = false
	l.mu.Unlock()
	if wasJoined {
		l.logger.Warn("live view disconnected", logging.Field("error", err))
		l.startLoading(eventbus.Detail{Kind: eventbus.KindError})
	}
	if phxsocket.IsUnauthorized(err) {
		l.stopLoading(eventbus.Detail{Kind: eventbus.KindError})
	}
}

func (l *LiveSocket) joinPayload() any {
	l.mu.Lock()
	defer l.mu.Unlock()
	params := make(map[string]any, len(l.params)+1)
	for k, v := range l.params {
		params[k] = v
	}
	params["_mounts"] = l.mounts
	l.mounts++

	payload := map[string]any{
		"url":    l.url,
		"params": params,
	}
	if l.view != nil {
		payload["session"] = l.view.Session
		payload["static"] = l.view.Static
	}
	return payload
}

func (l *LiveSocket) joinReplied(reply phxsocket.Reply) {
	l.mu.Lock()
	l.joined = reply.OK()
	l.mu.Unlock()

	if reply.OK() {
		l.logger.Info("live view mounted", logging.Field("topic", l.channel.Topic()))
		l.stopLoading(eventbus.Detail{Kind: eventbus.KindInitial, To: l.currentURL()})
		return
	}

	var reason struct {
		Reason   string `json:"reason"`
		Redirect *struct {
			To string `json:"to"`
		} `json:"redirect"`
		LiveRedirect *struct {
			To string `json:"to"`
		} `json:"live_redirect"`
	}
	_ = json.Unmarshal(reply.Response, &reason)
	switch {
	case reason.Redirect != nil:
		l.navigated(eventbus.KindRedirect, reason.Redirect.To)
	case reason.LiveRedirect != nil:
		l.navigated(eventbus.KindRedirect, reason.LiveRedirect.To)
	default:
		l.logger.Warn("live view join failed", logging.Field("reason", reason.Reason))
	}
	l.stopLoading(eventbus.Detail{Kind: eventbus.KindError})
}

// viewCrashed shows the indicator until the channel's rejoin is answered;
// joinReplied sends the matching stop.
func (l *LiveSocket) viewCrashed(msg phxsocket.Message) {
	l.mu.Lock()
	l.joined = false
	l.mu.Unlock()
	l.logger.Warn("live view crashed; rejoining", logging.Field("topic", msg.Topic))
	l.startLoading(eventbus.Detail{Kind: eventbus.KindError, To: l.currentURL()})
}

// viewClosed handles a server-side close. The channel does not rejoin, so a
// pending start is closed out instead of opening a new one.
func (l *LiveSocket) viewClosed(msg phxsocket.Message) {
	l.mu.Lock()
	l.joined = false
	l.mu.Unlock()
	l.logger.Warn("live view closed by server", logging.Field("topic", msg.Topic))
	l.stopLoading(eventbus.Detail{Kind: eventbus.KindError})
}

func (l *LiveSocket) messageReceived(phxsocket.Message) {
	l.mu.Lock()
	l.messages++
	l.mu.Unlock()
}

func (l *LiveSocket) handleDiff(msg phxsocket.Message) {
	l.mu.Lock()
	l.diffs++
	l.mu.Unlock()
	if l.logger.DebugEnabled() {
		l.logger.Debug("live view diff",
			logging.Field("topic", msg.Topic),
			logging.Field("keys", diffKeys(msg.Payload)),
		)
	}
}

func (l *LiveSocket) handleRedirect(msg phxsocket.Message) {
	var body struct {
		To   string `json:"to"`
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(msg.Payload, &body); err != nil {
		l.logger.Warn("live view redirect payload invalid", logging.Field("error", err))
		return
	}
	kind := eventbus.KindRedirect
	if msg.Event == EventLiveRedirect && body.Kind == "patch" {
		kind = eventbus.KindPatch
	}
	l.startLoading(eventbus.Detail{Kind: kind, To: body.To})
	l.navigated(kind, body.To)
	l.stopLoading(eventbus.Detail{Kind: kind, To: body.To})
}

func (l *LiveSocket) navigated(kind string, to string) {
	if to == "" {
		return
	}
	l.mu.Lock()
	l.url = to
	l.mu.Unlock()
	l.logger.Info("live view navigated", logging.Field("kind", kind), logging.Field("to", to))
}

// startLoading and stopLoading keep signals paired: a stop is only sent
// after a start.
func (l *LiveSocket) startLoading(detail eventbus.Detail) {
	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return
	}
	l.loading = true
	l.mu.Unlock()
	l.dispatch(eventbus.PageLoadingStart, detail)
}

func (l *LiveSocket) stopLoading(detail eventbus.Detail) {
	l.mu.Lock()
	if !l.loading {
		l.mu.Unlock()
		return
	}
	l.loading = false
	l.mu.Unlock()
	l.dispatch(eventbus.PageLoadingStop, detail)
}

func (l *LiveSocket) dispatch(name string, detail eventbus.Detail) {
	if l.bus == nil {
		return
	}
	l.bus.Dispatch(name, detail)
}

func (l *LiveSocket) currentURL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.url
}

func copyParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func diffKeys(payload json.RawMessage) []string {
	var diff map[string]json.RawMessage
	if err := json.Unmarshal(payload, &diff); err != nil {
		return nil
	}
	keys := make([]string, 0, len(diff))
	for k := range diff {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
