// Package kaiheila records traffic of Kaiheila (KOOK) bots.
package kaiheila

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/iksnae/chat-recorder/internal/adapters"
	"github.com/iksnae/chat-recorder/internal/message"
	"github.com/iksnae/chat-recorder/internal/session"
)

// Scope is the session scope of Kaiheila bots
const Scope = "kook"

// Message is a KOOK message; the platform sends one typed body per message
type Message []message.Segment

func (m Message) Segments() []message.Segment { return m }

// PlainText joins text and the raw form of kmarkdown segments
func (m Message) PlainText() string {
	var b strings.Builder
	for _, seg := range m {
		switch seg.Type {
		case "text":
			b.WriteString(message.String(seg.Data, "text"))
		case "kmarkdown":
			if raw := message.String(seg.Data, "raw_content"); raw != "" {
				b.WriteString(raw)
			} else {
				b.WriteString(message.String(seg.Data, "content"))
			}
		}
	}
	return b.String()
}

const segmentSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["type", "data"],
		"properties": {
			"type": {"enum": ["text", "image", "video", "file", "audio", "kmarkdown", "card", "unknown"]},
			"data": {"type": "object"}
		},
		"allOf": [
			{"if": {"properties": {"type": {"const": "text"}}}, "then": {"properties": {"data": {"required": ["text"]}}}},
			{"if": {"properties": {"type": {"enum": ["image", "video", "file", "audio"]}}}, "then": {"properties": {"data": {"required": ["file_key"]}}}},
			{"if": {"properties": {"type": {"enum": ["kmarkdown", "card", "unknown"]}}}, "then": {"properties": {"data": {"required": ["content"]}}}}
		]
	}
}`

// Codec stores KOOK messages verbatim
var Codec = adapters.MustSchemaCodec(adapters.Kaiheila, segmentSchema,
	func(segs []message.Segment) (Message, error) { return Message(segs), nil })

// Message type codes used by the KOOK API
const (
	typeText      = 1
	typeImage     = 2
	typeVideo     = 3
	typeFile      = 4
	typeAudio     = 8
	typeKMarkdown = 9
	typeCard      = 10
	typeSystem    = 255
)

// fromTypeCode builds the single-segment message a KOOK body describes
func fromTypeCode(code int64, content string) Message {
	var seg message.Segment
	switch code {
	case typeText:
		seg = message.Segment{Type: "text", Data: map[string]any{"text": content}}
	case typeImage:
		seg = message.Segment{Type: "image", Data: map[string]any{"file_key": content}}
	case typeVideo:
		seg = message.Segment{Type: "video", Data: map[string]any{"file_key": content}}
	case typeFile:
		seg = message.Segment{Type: "file", Data: map[string]any{"file_key": content}}
	case typeAudio:
		seg = message.Segment{Type: "audio", Data: map[string]any{"file_key": content}}
	case typeKMarkdown:
		seg = message.Segment{Type: "kmarkdown", Data: map[string]any{"content": content}}
	case typeCard:
		seg = message.Segment{Type: "card", Data: map[string]any{"content": content}}
	default:
		seg = message.Segment{Type: "unknown", Data: map[string]any{"content": content, "code": code}}
	}
	return Message{seg}
}

// Resolver derives sessions from KOOK events and message create calls
type Resolver struct{}

func (Resolver) DecodeEvent(bot adapters.Bot, payload json.RawMessage) (adapters.Event, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("invalid Kaiheila event payload")
	}
	root := gjson.ParseBytes(payload)
	// Unwrap a websocket signal frame.
	if d := root.Get("d"); d.Exists() && root.Get("s").Exists() {
		root = d
	}
	code := root.Get("type").Int()
	if code == 0 || code == typeSystem {
		return nil, adapters.ErrNotMessageEvent
	}

	author := adapters.ID(root.Get("author_id"))
	var scene session.Scene
	switch root.Get("channel_type").Str {
	case "GROUP":
		scene = session.Scene{ID: adapters.ID(root.Get("target_id")), Type: session.SceneChannel}
		if guild := adapters.ID(root.Get("extra.guild_id")); guild != "" {
			scene.Parent = &session.Scene{ID: guild, Type: session.SceneGuild}
		}
	case "PERSON":
		scene = session.Scene{ID: author, Type: session.ScenePrivate}
	default:
		return nil, adapters.ErrNotMessageEvent
	}

	msg := fromTypeCode(code, root.Get("content").Str)
	if code == typeKMarkdown {
		if raw := root.Get("extra.kmarkdown.raw_content"); raw.Exists() {
			msg[0].Data["raw_content"] = raw.Str
		}
	}
	return &adapters.BasicEvent{
		Adapter: adapters.Kaiheila,
		Scope:   Scope,
		Scene:   scene,
		UserID:  author,
		At:      adapters.UnixMilli(root.Get("msg_timestamp").Int()),
		ID:      root.Get("msg_id").Str,
		Msg:     msg,
		IsFake:  root.Get("_is_fake").Bool(),
	}, nil
}

func (Resolver) ResolveCall(bot adapters.Bot, call adapters.Call) (*adapters.Sent, bool) {
	if !adapters.ValidResult(call) {
		return nil, false
	}
	result := gjson.ParseBytes(call.Result)
	msgID := result.Get("msg_id").Str
	ts := result.Get("msg_timestamp").Int()
	if msgID == "" || ts == 0 {
		return nil, false
	}

	data := gjson.ParseBytes(call.Data)
	target := adapters.ID(data.Get("target_id"))
	var scene session.Scene
	switch call.API {
	case "message/create":
		scene = session.Scene{ID: target, Type: session.SceneChannel}
		if guild := adapters.ID(data.Get("guild_id")); guild != "" {
			scene.Parent = &session.Scene{ID: guild, Type: session.SceneGuild}
		}
	case "direct-message/create":
		scene = session.Scene{ID: target, Type: session.ScenePrivate}
	default:
		return nil, false
	}
	if target == "" {
		return nil, false
	}

	code := data.Get("type").Int()
	if code == 0 {
		code = typeText
	}
	return &adapters.Sent{
		Session:   adapters.SelfSession(bot, adapters.Kaiheila, Scope, scene),
		Time:      adapters.UnixMilli(ts),
		MessageID: msgID,
		Message:   fromTypeCode(code, data.Get("content").Str),
	}, true
}

func init() {
	adapters.MustRegister(Codec, Resolver{})
}
