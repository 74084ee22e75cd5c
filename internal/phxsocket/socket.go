// Package phxsocket is a Phoenix socket client (serializer v2) over
// gorilla/websocket with heartbeats, reconnects and channel joins.
package phxsocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"liveconnect/internal/logging"
)

const (
	ProtocolVersion = "2.0.0"

	DefaultHeartbeatInterval = 30 * time.Second
	DefaultDialTimeout       = 10 * time.Second

	reconnectDelay    = 500 * time.Millisecond
	reconnectMaxDelay = 10 * time.Second
	writeTimeout      = 10 * time.Second
)

type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosing    State = "closing"
	StateClosed     State = "closed"
)

type Options struct {
	// Params are sent as query parameters on every connect.
	Params map[string]string
	// Header is sent with the upgrade request (Origin in particular).
	Header http.Header
	Jar    http.CookieJar
	// Dialer overrides the default websocket dialer; Jar is applied to a copy.
	Dialer            *websocket.Dialer
	HeartbeatInterval time.Duration
	DialTimeout       time.Duration
	ReconnectInitial  time.Duration
	ReconnectMax      time.Duration
}

type Stats struct {
	ConnectCalls uint64 `json:"connect_calls"`
	Dials        uint64 `json:"dials"`
	Opens        uint64 `json:"opens"`
}

type Socket struct {
	endpoint string
	url      string
	opts     Options
	logger   *logging.Logger

	refSeq       atomic.Uint64
	connectCalls atomic.Uint64
	dials        atomic.Uint64
	opens        atomic.Uint64

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	cancel   context.CancelFunc
	done     chan struct{}
	stopping bool
	restart  bool
	lastErr  error
	channels map[string]*Channel
	pending  map[string]func(Reply)

	writeMu sync.Mutex

	hooksMu   sync.RWMutex
	onOpen    []func()
	onClose   []func(error)
	onMessage []func(Message)
}

// EndpointURL appends the transport suffix, params and protocol version to
// a socket mount URL such as wss://host/live.
func EndpointURL(endpoint string, params map[string]string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return "", fmt.Errorf("socket endpoint scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("socket endpoint host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/websocket"
	u.RawPath = ""
	query := url.Values{}
	for key, value := range params {
		query.Set(key, value)
	}
	query.Set("vsn", ProtocolVersion)
	u.RawQuery = query.Encode()
	u.Fragment = ""
	return u.String(), nil
}

func New(endpoint string, opts Options, logger *logging.Logger) (*Socket, error) {
	if logger == nil {
		panic("phxsocket.New: logger must not be nil")
	}
	full, err := EndpointURL(endpoint, opts.Params)
	if err != nil {
		return nil, err
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.ReconnectInitial <= 0 {
		opts.ReconnectInitial = reconnectDelay
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = reconnectMaxDelay
	}
	return &Socket{
		endpoint: endpoint,
		url:      full,
		opts:     opts,
		logger:   logger.With(logging.Field("component", "phxsocket")),
		state:    StateClosed,
		channels: make(map[string]*Channel),
		pending:  make(map[string]func(Reply)),
	}, nil
}

func (s *Socket) Endpoint() string { return s.endpoint }

// URL is the full websocket URL including params. It carries the token;
// log it with care.
func (s *Socket) URL() string { return s.url }

func (s *Socket) Params() map[string]string {
	out := make(map[string]string, len(s.opts.Params))
	for k, v := range s.opts.Params {
		out[k] = v
	}
	return out
}

func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Socket) IsConnected() bool { return s.State() == StateOpen }

// Err returns the error that ended the last connection, if any.
func (s *Socket) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Socket) Stats() Stats {
	return Stats{
		ConnectCalls: s.connectCalls.Load(),
		Dials:        s.dials.Load(),
		Opens:        s.opens.Load(),
	}
}

func (s *Socket) MakeRef() string {
	return strconv.FormatUint(s.refSeq.Add(1), 10)
}

func (s *Socket) OnOpen(fn func()) {
	s.hooksMu.Lock()
	s.onOpen = append(s.onOpen, fn)
	s.hooksMu.Unlock()
}

func (s *Socket) OnClose(fn func(error)) {
	s.hooksMu.Lock()
	s.onClose = append(s.onClose, fn)
	s.hooksMu.Unlock()
}

func (s *Socket) OnMessage(fn func(Message)) {
	s.hooksMu.Lock()
	s.onMessage = append(s.onMessage, fn)
	s.hooksMu.Unlock()
}

// Connect starts the connection loop and returns immediately. Calls made
// while the loop is running are ignored; a call made while Disconnect is
// still stopping the loop starts a new loop once the old one has exited.
func (s *Socket) Connect() {
	s.connectCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.cancel == nil:
		s.startLocked()
	case s.stopping:
		s.restart = true
		s.logger.Debug("socket connect queued behind disconnect", logging.Field("endpoint", s.endpoint))
	default:
		s.logger.Debug("socket connect ignored: already running", logging.Field("endpoint", s.endpoint))
	}
}

func (s *Socket) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.stopping = false
	s.restart = false
	s.state = StateConnecting
	go s.run(ctx, done)
}

// Disconnect stops the connection loop and waits for it to exit. It must not
// be called from a socket or channel hook. It drops a Connect queued by an
// earlier Disconnect; a Connect made during this wait still restarts.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	if cancel != nil {
		s.state = StateClosing
		s.stopping = true
		s.restart = false
	}
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the current connection loop exits. It is already
// closed when the socket is not running.
func (s *Socket) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

// Channel returns the channel for topic, creating it on first use. payload
// is called for every join so rejoin payloads can change.
func (s *Socket) Channel(topic string, payload func() any) *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[topic]; ok {
		return ch
	}
	ch := newChannel(s, topic, payload)
	s.channels[topic] = ch
	return ch
}

// Push writes msg, registering onReply for the reply that carries msg.Ref.
func (s *Socket) Push(msg Message, onReply func(Reply)) error {
	s.mu.Lock()
	conn := s.conn
	if conn == nil || s.state != StateOpen {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if onReply != nil && msg.Ref != "" {
		s.pending[msg.Ref] = onReply
	}
	s.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		s.dropPending(msg.Ref)
		return err
	}
	if s.logger.DebugEnabled() {
		s.logger.Debug("socket push",
			logging.Field("topic", msg.Topic),
			logging.Field("event", msg.Event),
			logging.Field("ref", msg.Ref),
		)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.dropPending(msg.Ref)
		return err
	}
	return nil
}

func (s *Socket) dropPending(ref string) {
	if ref == "" {
		return
	}
	s.mu.Lock()
	delete(s.pending, ref)
	s.mu.Unlock()
}

func (s *Socket) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = s.opts.ReconnectInitial
	retry.MaxInterval = s.opts.ReconnectMax
	retry.Reset()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		opened, err := s.session(ctx)
		if opened {
			retry.Reset()
		}
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = ErrConnectionClosed
		}
		if IsUnauthorized(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(retry),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Debug("socket reconnect scheduled",
				logging.Field("error", err),
				logging.Field("next_retry", next.String()),
			)
		}),
	)

	s.mu.Lock()
	s.state = StateClosed
	cancel := s.cancel
	s.cancel = nil
	s.stopping = false
	if err != nil && !errors.Is(err, context.Canceled) {
		s.lastErr = err
	}
	if s.restart {
		s.startLocked()
	}
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("socket stopped", logging.Field("endpoint", s.endpoint), logging.Field("error", err))
	} else {
		s.logger.Debug("socket stopped", logging.Field("endpoint", s.endpoint))
	}
}

type frame struct {
	data []byte
	err  error
}

// session dials once and serves the connection until it drops. opened
// reports whether the upgrade succeeded.
func (s *Socket) session(ctx context.Context) (opened bool, err error) {
	s.setState(StateConnecting)
	s.dials.Add(1)

	dialCtx, cancelDial := context.WithTimeout(ctx, s.opts.DialTimeout)
	conn, resp, dialErr := s.dialer().DialContext(dialCtx, s.url, s.opts.Header.Clone())
	cancelDial()
	if dialErr != nil {
		if resp != nil && resp.StatusCode >= http.StatusBadRequest {
			dialErr = &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		}
		s.logger.Debug("socket dial failed", logging.Field("endpoint", s.endpoint), logging.Field("error", dialErr))
		s.setLastErr(dialErr)
		s.fireClose(dialErr)
		return false, dialErr
	}

	s.mu.Lock()
	s.conn = conn
	s.state = StateOpen
	s.lastErr = nil
	s.mu.Unlock()
	s.opens.Add(1)
	s.logger.Info("socket connected", logging.Field("endpoint", s.endpoint))

	stop := make(chan struct{})
	frames := make(chan frame, 16)
	go readFrames(conn, frames, stop)

	defer func() {
		close(stop)
		s.mu.Lock()
		s.conn = nil
		if s.state == StateOpen {
			s.state = StateConnecting
		}
		s.pending = make(map[string]func(Reply))
		channels := s.channelsLocked()
		if err != nil && !errors.Is(err, context.Canceled) {
			s.lastErr = err
		}
		s.mu.Unlock()
		_ = conn.Close()
		for _, ch := range channels {
			ch.socketClosed()
		}
		s.fireClose(err)
	}()

	s.fireOpen()
	s.rejoinChannels()

	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()
	pendingHeartbeat := ""

	for {
		select {
		case <-ctx.Done():
			s.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			s.writeMu.Unlock()
			return true, ctx.Err()
		case <-ticker.C:
			if pendingHeartbeat != "" {
				s.logger.Warn("socket heartbeat timeout", logging.Field("endpoint", s.endpoint))
				return true, ErrHeartbeatTimeout
			}
			ref := s.MakeRef()
			if pushErr := s.Push(Message{Ref: ref, Topic: TopicPhoenix, Event: EventHeartbeat}, nil); pushErr != nil {
				return true, pushErr
			}
			pendingHeartbeat = ref
		case f := <-frames:
			if f.err != nil {
				return true, f.err
			}
			var msg Message
			if decodeErr := json.Unmarshal(f.data, &msg); decodeErr != nil {
				s.logger.Warn("socket frame dropped",
					logging.Field("error", decodeErr),
					logging.Field("frame", logging.Truncate(string(f.data))),
				)
				continue
			}
			if msg.Topic == TopicPhoenix && msg.Event == EventReply && msg.Ref == pendingHeartbeat {
				pendingHeartbeat = ""
				continue
			}
			s.dispatch(msg)
		}
	}
}

func readFrames(conn *websocket.Conn, out chan<- frame, stop <-chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		select {
		case out <- frame{data: data, err: err}:
		case <-stop:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Socket) dispatch(msg Message) {
	if s.logger.DebugEnabled() {
		s.logger.Debug("socket receive",
			logging.Field("topic", msg.Topic),
			logging.Field("event", msg.Event),
			logging.Field("ref", msg.Ref),
			logging.Field("payload", logging.FormatPayload(msg.Payload)),
		)
	}
	if msg.Event == EventReply && msg.Ref != "" {
		s.mu.Lock()
		onReply := s.pending[msg.Ref]
		delete(s.pending, msg.Ref)
		s.mu.Unlock()
		if onReply != nil {
			reply, err := msg.Reply()
			if err != nil {
				s.logger.Warn("socket reply dropped", logging.Field("error", err))
			} else {
				onReply(reply)
			}
		}
	}

	s.mu.Lock()
	ch := s.channels[msg.Topic]
	s.mu.Unlock()
	if ch != nil {
		ch.handle(msg)
	}

	s.hooksMu.RLock()
	hooks := append([]func(Message){}, s.onMessage...)
	s.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(msg)
	}
}

func (s *Socket) rejoinChannels() {
	s.mu.Lock()
	channels := s.channelsLocked()
	s.mu.Unlock()
	for _, ch := range channels {
		ch.rejoin()
	}
}

func (s *Socket) channelsLocked() []*Channel {
	channels := make([]*Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		channels = append(channels, ch)
	}
	return channels
}

func (s *Socket) dialer() *websocket.Dialer {
	d := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: s.opts.DialTimeout,
	}
	if s.opts.Dialer != nil {
		d = *s.opts.Dialer
	}
	if s.opts.Jar != nil {
		d.Jar = s.opts.Jar
	}
	return &d
}

func (s *Socket) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Socket) setLastErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Socket) fireOpen() {
	s.hooksMu.RLock()
	hooks := append([]func(){}, s.onOpen...)
	s.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}

func (s *Socket) fireClose(err error) {
	s.hooksMu.RLock()
	hooks := append([]func(error){}, s.onClose...)
	s.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(err)
	}
}
