// Package telegram records traffic of Telegram bots.
package telegram

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/iksnae/chat-recorder/internal/adapters"
	"github.com/iksnae/chat-recorder/internal/message"
	"github.com/iksnae/chat-recorder/internal/session"
)

// Scope is the session scope of Telegram bots
const Scope = "telegram"

// Message is the segment form of one or more Telegram messages
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

const segmentSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["type", "data"],
		"properties": {
			"type": {"enum": ["text", "photo", "audio", "document", "video", "animation", "voice",
				"video_note", "sticker", "location", "venue", "contact", "poll", "dice", "invoice"]},
			"data": {"type": "object"}
		},
		"allOf": [
			{"if": {"properties": {"type": {"const": "text"}}}, "then": {"properties": {"data": {"required": ["text"]}}}},
			{"if": {"properties": {"type": {"enum": ["photo", "audio", "document", "video", "animation", "voice", "video_note", "sticker"]}}},
			 "then": {"properties": {"data": {"required": ["file_id"]}}}},
			{"if": {"properties": {"type": {"enum": ["location", "venue"]}}}, "then": {"properties": {"data": {"required": ["latitude", "longitude"]}}}}
		]
	}
}`

// Codec stores Telegram messages verbatim
var Codec = adapters.MustSchemaCodec(adapters.Telegram, segmentSchema,
	func(segs []message.Segment) (Message, error) { return Message(segs), nil })

var fileKinds = []string{"audio", "document", "video", "animation", "voice", "video_note", "sticker"}

// sendAPIs answer with a single Message object
var sendAPIs = []string{
	"send_message", "send_photo", "send_audio", "send_document", "send_video",
	"send_animation", "send_voice", "send_video_note", "send_location", "send_venue",
	"send_contact", "send_poll", "send_dice", "send_sticker", "send_invoice",
}

// segmentsOf projects a Telegram Message object onto segments
func segmentsOf(m gjson.Result) Message {
	msg := Message{}
	if text := m.Get("text"); text.Exists() {
		msg = append(msg, message.Segment{Type: "text", Data: map[string]any{"text": text.Str}})
	}
	if photos := m.Get("photo").Array(); len(photos) > 0 {
		largest := photos[len(photos)-1]
		msg = append(msg, message.Segment{Type: "photo", Data: map[string]any{
			"file_id": largest.Get("file_id").Str,
			"width":   largest.Get("width").Int(),
			"height":  largest.Get("height").Int(),
		}})
	}
	for _, kind := range fileKinds {
		if f := m.Get(kind); f.Exists() {
			msg = append(msg, message.Segment{Type: kind, Data: map[string]any{"file_id": f.Get("file_id").Str}})
		}
	}
	if v := m.Get("venue"); v.Exists() {
		msg = append(msg, message.Segment{Type: "venue", Data: map[string]any{
			"latitude":  v.Get("location.latitude").Float(),
			"longitude": v.Get("location.longitude").Float(),
			"title":     v.Get("title").Str,
			"address":   v.Get("address").Str,
		}})
	} else if l := m.Get("location"); l.Exists() {
		msg = append(msg, message.Segment{Type: "location", Data: map[string]any{
			"latitude":  l.Get("latitude").Float(),
			"longitude": l.Get("longitude").Float(),
		}})
	}
	if c := m.Get("contact"); c.Exists() {
		msg = append(msg, message.Segment{Type: "contact", Data: map[string]any{
			"phone_number": c.Get("phone_number").Str,
			"first_name":   c.Get("first_name").Str,
		}})
	}
	if p := m.Get("poll"); p.Exists() {
		msg = append(msg, message.Segment{Type: "poll", Data: map[string]any{"question": p.Get("question").Str}})
	}
	if d := m.Get("dice"); d.Exists() {
		msg = append(msg, message.Segment{Type: "dice", Data: map[string]any{
			"emoji": d.Get("emoji").Str,
			"value": d.Get("value").Int(),
		}})
	}
	if inv := m.Get("invoice"); inv.Exists() {
		msg = append(msg, message.Segment{Type: "invoice", Data: map[string]any{"title": inv.Get("title").Str}})
	}
	if caption := m.Get("caption"); caption.Exists() {
		msg = append(msg, message.Segment{Type: "text", Data: map[string]any{"text": caption.Str}})
	}
	return msg
}

// sceneOf maps the chat (and forum thread) onto a scene
func sceneOf(m gjson.Result) (session.Scene, bool) {
	chatID := adapters.ID(m.Get("chat.id"))
	if chatID == "" {
		return session.Scene{}, false
	}
	switch m.Get("chat.type").Str {
	case "private":
		return session.Scene{ID: chatID, Type: session.ScenePrivate}, true
	case "channel":
		return session.Scene{ID: chatID, Type: session.SceneChannel}, true
	default:
		group := session.Scene{ID: chatID, Type: session.SceneGroup}
		if thread := adapters.ID(m.Get("message_thread_id")); thread != "" && m.Get("is_topic_message").Bool() {
			return session.Scene{ID: thread, Type: session.SceneChannel, Parent: &group}, true
		}
		return group, true
	}
}

// Resolver derives sessions from Telegram updates and send calls
type Resolver struct{}

func (Resolver) DecodeEvent(bot adapters.Bot, payload json.RawMessage) (adapters.Event, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("invalid Telegram update payload")
	}
	root := gjson.ParseBytes(payload)
	m := root.Get("message")
	if !m.Exists() {
		m = root.Get("channel_post")
	}
	if !m.Exists() {
		return nil, adapters.ErrNotMessageEvent
	}
	scene, ok := sceneOf(m)
	if !ok {
		return nil, adapters.ErrNotMessageEvent
	}
	user := adapters.ID(m.Get("from.id"))
	if user == "" {
		user = adapters.ID(m.Get("sender_chat.id"))
	}
	return &adapters.BasicEvent{
		Adapter: adapters.Telegram,
		Scope:   Scope,
		Scene:   scene,
		UserID:  user,
		At:      adapters.UnixTime(m.Get("date").Float()),
		ID:      adapters.ID(m.Get("chat.id")) + "_" + adapters.ID(m.Get("message_id")),
		Msg:     segmentsOf(m),
		IsFake:  root.Get("_is_fake").Bool(),
	}, nil
}

func (Resolver) ResolveCall(bot adapters.Bot, call adapters.Call) (*adapters.Sent, bool) {
	if !adapters.ValidResult(call) {
		return nil, false
	}
	result := gjson.ParseBytes(call.Result)

	var results []gjson.Result
	switch {
	case adapters.Allowed(call.API, sendAPIs...) && result.IsObject():
		results = []gjson.Result{result}
	case call.API == "send_media_group" && result.IsArray():
		results = result.Array()
	default:
		return nil, false
	}
	if len(results) == 0 {
		return nil, false
	}

	first := results[0]
	scene, ok := sceneOf(first)
	if !ok {
		return nil, false
	}
	ids := make([]string, 0, len(results))
	msg := Message{}
	for _, r := range results {
		ids = append(ids, adapters.ID(r.Get("message_id")))
		msg = append(msg, segmentsOf(r)...)
	}
	return &adapters.Sent{
		Session:   adapters.SelfSession(bot, adapters.Telegram, Scope, scene),
		Time:      adapters.UnixTime(first.Get("date").Float()),
		MessageID: adapters.ID(first.Get("chat.id")) + "_" + strings.Join(ids, "_"),
		Message:   msg,
	}, true
}

func init() {
	adapters.MustRegister(Codec, Resolver{})
}
