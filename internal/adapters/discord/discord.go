// Package discord records traffic of Discord bots.
package discord

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/iksnae/chat-recorder/internal/adapters"
	"github.com/iksnae/chat-recorder/internal/message"
	"github.com/iksnae/chat-recorder/internal/session"
)

// Scope is the session scope of Discord bots
const Scope = "discord"

// Message is a Discord message split into text, mention, attachment and embed segments
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
			"type": {"enum": ["text", "mention_user", "mention_role", "mention_channel", "mention_everyone",
				"emoji", "attachment", "embed", "sticker", "reference"]},
			"data": {"type": "object"}
		},
		"allOf": [
			{"if": {"properties": {"type": {"const": "text"}}}, "then": {"properties": {"data": {"required": ["text"]}}}},
			{"if": {"properties": {"type": {"const": "mention_user"}}}, "then": {"properties": {"data": {"required": ["user_id"]}}}},
			{"if": {"properties": {"type": {"const": "mention_role"}}}, "then": {"properties": {"data": {"required": ["role_id"]}}}},
			{"if": {"properties": {"type": {"const": "mention_channel"}}}, "then": {"properties": {"data": {"required": ["channel_id"]}}}},
			{"if": {"properties": {"type": {"const": "attachment"}}}, "then": {"properties": {"data": {"required": ["url"]}}}},
			{"if": {"properties": {"type": {"const": "reference"}}}, "then": {"properties": {"data": {"required": ["message_id"]}}}}
		]
	}
}`

// Codec stores Discord messages verbatim
var Codec = adapters.MustSchemaCodec(adapters.Discord, segmentSchema,
	func(segs []message.Segment) (Message, error) { return Message(segs), nil })

var markupPattern = regexp.MustCompile(`<@!?(\d+)>|<@&(\d+)>|<#(\d+)>|<(a?):(\w+):(\d+)>|@everyone|@here`)

// parseContent splits message content on mention and custom emoji markup
func parseContent(content string) Message {
	msg := Message{}
	last := 0
	for _, loc := range markupPattern.FindAllStringSubmatchIndex(content, -1) {
		if loc[0] > last {
			msg = append(msg, text(content[last:loc[0]]))
		}
		sub := func(i int) string {
			if loc[2*i] < 0 {
				return ""
			}
			return content[loc[2*i]:loc[2*i+1]]
		}
		switch {
		case sub(1) != "":
			msg = append(msg, message.Segment{Type: "mention_user", Data: map[string]any{"user_id": sub(1)}})
		case sub(2) != "":
			msg = append(msg, message.Segment{Type: "mention_role", Data: map[string]any{"role_id": sub(2)}})
		case sub(3) != "":
			msg = append(msg, message.Segment{Type: "mention_channel", Data: map[string]any{"channel_id": sub(3)}})
		case sub(6) != "":
			msg = append(msg, message.Segment{Type: "emoji", Data: map[string]any{
				"id": sub(6), "name": sub(5), "animated": sub(4) == "a",
			}})
		default:
			msg = append(msg, message.Segment{Type: "mention_everyone", Data: map[string]any{}})
		}
		last = loc[1]
	}
	if last < len(content) {
		msg = append(msg, text(content[last:]))
	}
	return msg
}

func text(s string) message.Segment {
	return message.Segment{Type: "text", Data: map[string]any{"text": s}}
}

// segmentsOf projects a Discord message object onto segments
func segmentsOf(m gjson.Result) Message {
	msg := Message{}
	if ref := adapters.ID(m.Get("message_reference.message_id")); ref != "" {
		msg = append(msg, message.Segment{Type: "reference", Data: map[string]any{"message_id": ref}})
	}
	msg = append(msg, parseContent(m.Get("content").Str)...)
	for _, a := range m.Get("attachments").Array() {
		msg = append(msg, message.Segment{Type: "attachment", Data: map[string]any{
			"id":       adapters.ID(a.Get("id")),
			"filename": a.Get("filename").Str,
			"url":      a.Get("url").Str,
		}})
	}
	for _, s := range m.Get("sticker_items").Array() {
		msg = append(msg, message.Segment{Type: "sticker", Data: map[string]any{"id": adapters.ID(s.Get("id"))}})
	}
	for _, e := range m.Get("embeds").Array() {
		var data map[string]any
		if err := json.Unmarshal([]byte(e.Raw), &data); err == nil {
			msg = append(msg, message.Segment{Type: "embed", Data: data})
		}
	}
	return msg
}

func parseTimestamp(r gjson.Result) time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.Str)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// Resolver derives sessions from Discord gateway events and create_message calls
type Resolver struct{}

func (Resolver) DecodeEvent(bot adapters.Bot, payload json.RawMessage) (adapters.Event, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("invalid Discord event payload")
	}
	root := gjson.ParseBytes(payload)
	// Accept either a raw gateway frame or its MESSAGE_CREATE data.
	if t := root.Get("t"); t.Exists() {
		if t.Str != "MESSAGE_CREATE" {
			return nil, adapters.ErrNotMessageEvent
		}
		root = root.Get("d")
	}
	channelID := adapters.ID(root.Get("channel_id"))
	author := adapters.ID(root.Get("author.id"))
	if channelID == "" || author == "" {
		return nil, adapters.ErrNotMessageEvent
	}

	var scene session.Scene
	if guild := adapters.ID(root.Get("guild_id")); guild != "" {
		scene = session.Scene{ID: channelID, Type: session.SceneChannel,
			Parent: &session.Scene{ID: guild, Type: session.SceneGuild}}
	} else {
		scene = session.Scene{ID: author, Type: session.ScenePrivate}
	}
	return &adapters.BasicEvent{
		Adapter: adapters.Discord,
		Scope:   Scope,
		Scene:   scene,
		UserID:  author,
		At:      parseTimestamp(root.Get("timestamp")),
		ID:      adapters.ID(root.Get("id")),
		Msg:     segmentsOf(root),
		IsFake:  root.Get("_is_fake").Bool(),
	}, nil
}

// ResolveCall records create_message. The REST response omits guild_id, so
// the request may carry it (or recipient_id for direct messages).
func (Resolver) ResolveCall(bot adapters.Bot, call adapters.Call) (*adapters.Sent, bool) {
	if call.API != "create_message" || !adapters.ValidResult(call) {
		return nil, false
	}
	result := gjson.ParseBytes(call.Result)
	data := gjson.ParseBytes(call.Data)
	id := adapters.ID(result.Get("id"))
	channelID := adapters.ID(result.Get("channel_id"))
	if id == "" || channelID == "" {
		return nil, false
	}

	guild := adapters.ID(result.Get("guild_id"))
	if guild == "" {
		guild = adapters.ID(data.Get("guild_id"))
	}
	var scene session.Scene
	if guild != "" {
		scene = session.Scene{ID: channelID, Type: session.SceneChannel,
			Parent: &session.Scene{ID: guild, Type: session.SceneGuild}}
	} else {
		recipient := adapters.ID(data.Get("recipient_id"))
		if recipient == "" {
			recipient = channelID
		}
		scene = session.Scene{ID: recipient, Type: session.ScenePrivate}
	}
	return &adapters.Sent{
		Session:   adapters.SelfSession(bot, adapters.Discord, Scope, scene),
		Time:      parseTimestamp(result.Get("timestamp")),
		MessageID: id,
		Message:   segmentsOf(result),
	}, true
}

func init() {
	adapters.MustRegister(Codec, Resolver{})
}
