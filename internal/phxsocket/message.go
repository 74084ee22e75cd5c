package phxsocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	EventJoin      = "phx_join"
	EventLeave     = "phx_leave"
	EventReply     = "phx_reply"
	EventError     = "phx_error"
	EventClose     = "phx_close"
	EventHeartbeat = "heartbeat"

	TopicPhoenix = "phoenix"

	ReplyOK    = "ok"
	ReplyError = "error"
)

var errMalformedFrame = errors.New("malformed socket frame")

// Message is one v2 frame: [join_ref, ref, topic, event, payload].
type Message struct {
	JoinRef string
	Ref     string
	Topic   string
	Event   string
	Payload json.RawMessage
}

// Reply is the payload of a phx_reply frame.
type Reply struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

func (r Reply) OK() bool { return r.Status == ReplyOK }

func (m Message) MarshalJSON() ([]byte, error) {
	payload := m.Payload
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = json.RawMessage("{}")
	}
	return json.Marshal([]any{nullable(m.JoinRef), nullable(m.Ref), m.Topic, m.Event, payload})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("%w: %v", errMalformedFrame, err)
	}
	if len(parts) != 5 {
		return fmt.Errorf("%w: %d elements", errMalformedFrame, len(parts))
	}
	var joinRef, ref *string
	if err := json.Unmarshal(parts[0], &joinRef); err != nil {
		return fmt.Errorf("%w: join_ref: %v", errMalformedFrame, err)
	}
	if err := json.Unmarshal(parts[1], &ref); err != nil {
		return fmt.Errorf("%w: ref: %v", errMalformedFrame, err)
	}
	var topic, event string
	if err := json.Unmarshal(parts[2], &topic); err != nil {
		return fmt.Errorf("%w: topic: %v", errMalformedFrame, err)
	}
	if err := json.Unmarshal(parts[3], &event); err != nil {
		return fmt.Errorf("%w: event: %v", errMalformedFrame, err)
	}
	*m = Message{
		JoinRef: deref(joinRef),
		Ref:     deref(ref),
		Topic:   topic,
		Event:   event,
		Payload: append(json.RawMessage(nil), parts[4]...),
	}
	return nil
}

// Reply decodes the payload of a phx_reply frame.
func (m Message) Reply() (Reply, error) {
	if m.Event != EventReply {
		return Reply{}, fmt.Errorf("not a reply: %s", m.Event)
	}
	var reply Reply
	if err := json.Unmarshal(m.Payload, &reply); err != nil {
		return Reply{}, fmt.Errorf("decode reply: %w", err)
	}
	return reply, nil
}

func encodePayload(v any) (json.RawMessage, error) {
	switch p := v.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return json.RawMessage(p), nil
	default:
		return json.Marshal(v)
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
