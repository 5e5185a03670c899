package adapters

import (
	"encoding/json"
	"math"
	"time"

	"github.com/tidwall/gjson"

	"github.com/iksnae/chat-recorder/internal/message"
	"github.com/iksnae/chat-recorder/internal/session"
)

// Resolver turns an adapter's native notifications into recordable events
type Resolver interface {
	// DecodeEvent parses an inbound event payload. Payloads that are not
	// message events yield ErrNotMessageEvent.
	DecodeEvent(bot Bot, payload json.RawMessage) (Event, error)
	// ResolveCall inspects a completed outbound API call and reports the
	// message it sent, or false when the call is not a successful send.
	ResolveCall(bot Bot, call Call) (*Sent, bool)
}

// Event is an inbound message event
type Event interface {
	// Session derives the session tuple, false when the event has no scene.
	Session(bot Bot) (session.Session, bool)
	// Time is the event time, zero when the platform does not report one.
	Time() time.Time
	MessageID() string
	Message() message.Message
	// Fake marks synthetic traffic injected by the host.
	Fake() bool
}

// Call is a completed outbound API call as observed by the host
type Call struct {
	API    string          `json:"api"`
	Data   json.RawMessage `json:"data,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	// Err is non-nil when the call failed; nothing is recorded then.
	Err error `json:"-"`
}

// Sent describes a message the bot sent, resolved from a Call
type Sent struct {
	Session   session.Session
	Time      time.Time
	MessageID string
	Message   message.Message
}

// BasicEvent is an Event whose fields were extracted up front
type BasicEvent struct {
	Adapter  Key
	Scope    string
	Scene    session.Scene
	UserID   string
	At       time.Time
	ID       string
	Msg      message.Message
	IsFake   bool
	NoSender bool
}

func (e *BasicEvent) Session(bot Bot) (session.Session, bool) {
	if e.Scene.ID == "" || (e.UserID == "" && !e.NoSender) {
		return session.Session{}, false
	}
	return session.Session{
		SelfID:  bot.SelfID(),
		Adapter: string(e.Adapter),
		Scope:   e.Scope,
		Scene:   e.Scene,
		User:    e.UserID,
	}, true
}

func (e *BasicEvent) Time() time.Time { return e.At }

func (e *BasicEvent) MessageID() string { return e.ID }

func (e *BasicEvent) Message() message.Message { return e.Msg }

func (e *BasicEvent) Fake() bool { return e.IsFake }

// SelfSession builds the session of an outbound send, where the bot is the user
func SelfSession(bot Bot, key Key, scope string, scene session.Scene) session.Session {
	return session.Session{
		SelfID:  bot.SelfID(),
		Adapter: string(key),
		Scope:   scope,
		Scene:   scene,
		User:    bot.SelfID(),
	}
}

// Allowed reports whether api is in list
func Allowed(api string, list ...string) bool {
	for _, name := range list {
		if api == name {
			return true
		}
	}
	return false
}

// Field reads path from a raw JSON document
func Field(raw json.RawMessage, path string) gjson.Result {
	if len(raw) == 0 {
		return gjson.Result{}
	}
	return gjson.GetBytes(raw, path)
}

// ID renders an id field that may be a JSON string or number
func ID(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		return r.Raw
	case gjson.Null:
		return ""
	default:
		if !r.Exists() {
			return ""
		}
		return r.Raw
	}
}

// UnixTime converts a seconds timestamp, possibly fractional, to UTC
func UnixTime(seconds float64) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(seconds)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// UnixMilli converts a milliseconds timestamp to UTC
func UnixMilli(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// ValidResult reports whether a call carries a usable response document
func ValidResult(call Call) bool {
	return call.Err == nil && len(call.Result) > 0 && gjson.ValidBytes(call.Result)
}
