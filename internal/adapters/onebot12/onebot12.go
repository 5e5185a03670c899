// Package onebot12 records traffic of OneBot V12 bots. One adapter serves
// many platforms, so the session scope is the bot's platform.
package onebot12

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/iksnae/chat-recorder/internal/adapters"
	"github.com/iksnae/chat-recorder/internal/message"
	"github.com/iksnae/chat-recorder/internal/session"
)

// Message is a OneBot V12 segment list
type Message []message.Segment

func (m Message) Segments() []message.Segment { return m }

func (m Message) PlainText() string {
	var b strings.Builder
	for _, seg := range m {
		if seg.Type == "text" {
			b.WriteString(message.String(seg.Data, "text"))
		}
	}
	return b.String()
}

// Standard segments are validated; extension segments ("qq.face") only need a type.
const segmentSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["type", "data"],
		"properties": {
			"type": {"type": "string"},
			"data": {"type": "object"}
		},
		"allOf": [
			{"if": {"properties": {"type": {"const": "text"}}}, "then": {"properties": {"data": {"required": ["text"]}}}},
			{"if": {"properties": {"type": {"const": "mention"}}}, "then": {"properties": {"data": {"required": ["user_id"]}}}},
			{"if": {"properties": {"type": {"enum": ["image", "voice", "audio", "video", "file"]}}}, "then": {"properties": {"data": {"required": ["file_id"]}}}},
			{"if": {"properties": {"type": {"const": "location"}}}, "then": {"properties": {"data": {"required": ["latitude", "longitude"]}}}},
			{"if": {"properties": {"type": {"const": "reply"}}}, "then": {"properties": {"data": {"required": ["message_id"]}}}}
		]
	}
}`

// Codec stores OneBot V12 messages verbatim
var Codec = adapters.MustSchemaCodec(adapters.OneBotV12, segmentSchema,
	func(segs []message.Segment) (Message, error) { return Message(segs), nil })

// Resolver derives sessions from OneBot V12 events and send_message calls
type Resolver struct{}

// scope is the bot's platform, or the self.platform an event or action
// request carries when the bot does not report one
func scope(bot adapters.Bot, r gjson.Result) string {
	if p := bot.Platform(); p != "" {
		return p
	}
	return r.Get("self.platform").Str
}

// sceneOf reads the detail_type addressing fields shared by events and send requests
func sceneOf(detailType string, r gjson.Result) (session.Scene, bool) {
	var scene session.Scene
	switch detailType {
	case "private":
		scene = session.Scene{ID: adapters.ID(r.Get("user_id")), Type: session.ScenePrivate}
	case "group":
		scene = session.Scene{ID: adapters.ID(r.Get("group_id")), Type: session.SceneGroup}
	case "channel":
		scene = session.Scene{ID: adapters.ID(r.Get("channel_id")), Type: session.SceneChannel}
		if guild := adapters.ID(r.Get("guild_id")); guild != "" {
			scene.Parent = &session.Scene{ID: guild, Type: session.SceneGuild}
		}
	default:
		return scene, false
	}
	return scene, scene.ID != ""
}

func decodeMessage(r gjson.Result) (Message, error) {
	if !r.IsArray() {
		if r.Type == gjson.String {
			return Message{{Type: "text", Data: map[string]any{"text": r.Str}}}, nil
		}
		return Message{}, nil
	}
	segs, err := message.Decode([]byte(r.Raw))
	if err != nil {
		return nil, err
	}
	return Message(segs), nil
}

func (Resolver) DecodeEvent(bot adapters.Bot, payload json.RawMessage) (adapters.Event, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("invalid OneBot V12 event payload")
	}
	root := gjson.ParseBytes(payload)
	if root.Get("type").Str != "message" {
		return nil, adapters.ErrNotMessageEvent
	}
	scene, ok := sceneOf(root.Get("detail_type").Str, root)
	if !ok {
		return nil, adapters.ErrNotMessageEvent
	}
	msg, err := decodeMessage(root.Get("message"))
	if err != nil {
		return nil, err
	}
	return &adapters.BasicEvent{
		Adapter: adapters.OneBotV12,
		Scope:   scope(bot, root),
		Scene:   scene,
		UserID:  adapters.ID(root.Get("user_id")),
		At:      adapters.UnixTime(root.Get("time").Float()),
		ID:      adapters.ID(root.Get("message_id")),
		Msg:     msg,
		IsFake:  root.Get("_is_fake").Bool(),
	}, nil
}

func (Resolver) ResolveCall(bot adapters.Bot, call adapters.Call) (*adapters.Sent, bool) {
	if call.API != "send_message" || !adapters.ValidResult(call) {
		return nil, false
	}
	result := gjson.ParseBytes(call.Result)
	messageID := adapters.ID(result.Get("message_id"))
	if messageID == "" {
		return nil, false
	}
	data := gjson.ParseBytes(call.Data)
	scene, ok := sceneOf(data.Get("detail_type").Str, data)
	if !ok {
		return nil, false
	}
	msg, err := decodeMessage(data.Get("message"))
	if err != nil {
		return nil, false
	}
	return &adapters.Sent{
		Session:   adapters.SelfSession(bot, adapters.OneBotV12, scope(bot, data), scene),
		Time:      adapters.UnixTime(result.Get("time").Float()),
		MessageID: messageID,
		Message:   msg,
	}, true
}

func init() {
	adapters.MustRegister(Codec, Resolver{})
}
