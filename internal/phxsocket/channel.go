package phxsocket

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"liveconnect/internal/logging"
)

type ChannelState string

const (
	ChannelClosed  ChannelState = "closed"
	ChannelJoining ChannelState = "joining"
	ChannelJoined  ChannelState = "joined"
	ChannelErrored ChannelState = "errored"
	ChannelLeaving ChannelState = "leaving"
)

const (
	rejoinDelay    = time.Second
	rejoinMaxDelay = 10 * time.Second
)

// Channel is one topic multiplexed over the socket. Once Join is called the
// channel stays joined across reconnects until Leave or a server phx_close.
type Channel struct {
	socket  *Socket
	topic   string
	payload func() any

	mu         sync.Mutex
	state      ChannelState
	joinRef    string
	wantJoined bool
	joins      int
	retry      *backoff.ExponentialBackOff
	rejoinTmr  *time.Timer
	onJoin     []func(Reply)
	bindings   map[string][]func(Message)
}

func newChannel(socket *Socket, topic string, payload func() any) *Channel {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = rejoinDelay
	retry.MaxInterval = rejoinMaxDelay
	retry.Reset()
	return &Channel{
		socket:   socket,
		topic:    topic,
		payload:  payload,
		state:    ChannelClosed,
		retry:    retry,
		bindings: make(map[string][]func(Message)),
	}
}

func (c *Channel) Topic() string { return c.topic }

func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Joins counts join attempts pushed to the server.
func (c *Channel) Joins() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joins
}

// OnJoin registers fn for every join reply, ok or error.
func (c *Channel) OnJoin(fn func(Reply)) {
	c.mu.Lock()
	c.onJoin = append(c.onJoin, fn)
	c.mu.Unlock()
}

// On registers fn for server pushes with the given event name.
func (c *Channel) On(event string, fn func(Message)) {
	c.mu.Lock()
	c.bindings[event] = append(c.bindings[event], fn)
	c.mu.Unlock()
}

// Join marks the channel as wanted and pushes phx_join when the socket is
// open. Otherwise the join goes out when the socket opens.
func (c *Channel) Join() {
	c.mu.Lock()
	c.wantJoined = true
	c.mu.Unlock()
	c.sendJoin()
}

// Leave pushes phx_leave and stops rejoining. The channel stays registered
// on the socket so a later Join reuses its hooks.
func (c *Channel) Leave() error {
	c.mu.Lock()
	c.wantJoined = false
	joinRef := c.joinRef
	c.state = ChannelLeaving
	c.stopRejoinLocked()
	c.mu.Unlock()

	err := c.socket.Push(Message{JoinRef: joinRef, Ref: c.socket.MakeRef(), Topic: c.topic, Event: EventLeave}, nil)

	c.mu.Lock()
	c.state = ChannelClosed
	c.mu.Unlock()
	if err == ErrNotConnected {
		return nil
	}
	return err
}

// Push sends event with payload on this channel.
func (c *Channel) Push(event string, payload any, onReply func(Reply)) error {
	c.mu.Lock()
	if c.state != ChannelJoined {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	joinRef := c.joinRef
	c.mu.Unlock()

	body, err := encodePayload(payload)
	if err != nil {
		return err
	}
	return c.socket.Push(Message{JoinRef: joinRef, Ref: c.socket.MakeRef(), Topic: c.topic, Event: event, Payload: body}, onReply)
}

func (c *Channel) sendJoin() {
	c.mu.Lock()
	if !c.wantJoined || c.state == ChannelJoining || c.state == ChannelJoined {
		c.mu.Unlock()
		return
	}
	if !c.socket.IsConnected() {
		c.mu.Unlock()
		return
	}
	ref := c.socket.MakeRef()
	c.joinRef = ref
	c.state = ChannelJoining
	c.joins++
	c.mu.Unlock()

	var raw any
	if c.payload != nil {
		raw = c.payload()
	}
	body, err := encodePayload(raw)
	if err != nil {
		c.socket.logger.Warn("channel join payload invalid", logging.Field("topic", c.topic), logging.Field("error", err))
		c.markErrored()
		return
	}
	c.socket.logger.Debug("channel joining", logging.Field("topic", c.topic), logging.Field("join_ref", ref))
	pushErr := c.socket.Push(Message{JoinRef: ref, Ref: ref, Topic: c.topic, Event: EventJoin, Payload: body}, func(reply Reply) {
		c.joinReplied(ref, reply)
	})
	if pushErr != nil {
		c.socket.logger.Debug("channel join push failed", logging.Field("topic", c.topic), logging.Field("error", pushErr))
		c.markErrored()
	}
}

func (c *Channel) joinReplied(ref string, reply Reply) {
	c.mu.Lock()
	if c.joinRef != ref {
		c.mu.Unlock()
		return
	}
	if reply.OK() {
		c.state = ChannelJoined
		c.retry.Reset()
	} else {
		c.state = ChannelErrored
		c.scheduleRejoinLocked()
	}
	hooks := append([]func(Reply){}, c.onJoin...)
	c.mu.Unlock()

	if reply.OK() {
		c.socket.logger.Info("channel joined", logging.Field("topic", c.topic))
	} else {
		c.socket.logger.Warn("channel join rejected",
			logging.Field("topic", c.topic),
			logging.Field("response", logging.FormatPayload(reply.Response)),
		)
	}
	for _, fn := range hooks {
		fn(reply)
	}
}

func (c *Channel) handle(msg Message) {
	c.mu.Lock()
	stale := msg.JoinRef != "" && c.joinRef != "" && msg.JoinRef != c.joinRef
	c.mu.Unlock()
	if stale && msg.Event != EventReply {
		return
	}

	switch msg.Event {
	case EventError:
		c.socket.logger.Warn("channel crashed", logging.Field("topic", c.topic))
		c.mu.Lock()
		if c.wantJoined {
			c.state = ChannelErrored
			c.scheduleRejoinLocked()
		}
		c.mu.Unlock()
	case EventClose:
		c.socket.logger.Debug("channel closed by server", logging.Field("topic", c.topic))
		c.mu.Lock()
		c.wantJoined = false
		c.state = ChannelClosed
		c.stopRejoinLocked()
		c.mu.Unlock()
	}

	c.mu.Lock()
	bound := append([]func(Message){}, c.bindings[msg.Event]...)
	c.mu.Unlock()
	for _, fn := range bound {
		fn(msg)
	}
}

// socketClosed resets a joined channel so the next open rejoins it.
func (c *Channel) socketClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopRejoinLocked()
	if c.wantJoined {
		c.state = ChannelErrored
	} else {
		c.state = ChannelClosed
	}
}

func (c *Channel) rejoin() {
	c.mu.Lock()
	if c.state == ChannelJoining || c.state == ChannelJoined {
		c.mu.Unlock()
		return
	}
	c.stopRejoinLocked()
	c.mu.Unlock()
	c.sendJoin()
}

func (c *Channel) markErrored() {
	c.mu.Lock()
	c.state = ChannelErrored
	c.mu.Unlock()
}

func (c *Channel) scheduleRejoinLocked() {
	c.stopRejoinLocked()
	delay := c.retry.NextBackOff()
	if delay == backoff.Stop {
		delay = rejoinMaxDelay
	}
	c.rejoinTmr = time.AfterFunc(delay, c.rejoin)
}

func (c *Channel) stopRejoinLocked() {
	if c.rejoinTmr != nil {
		c.rejoinTmr.Stop()
		c.rejoinTmr = nil
	}
}
