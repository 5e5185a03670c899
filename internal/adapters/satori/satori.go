// Package satori records traffic of Satori protocol bots.
package satori

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/iksnae/chat-recorder/internal/adapters"
	"github.com/iksnae/chat-recorder/internal/message"
	"github.com/iksnae/chat-recorder/internal/session"
)

const segmentSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["type", "data"],
		"properties": {
			"type": {"type": "string", "minLength": 1},
			"data": {"type": "object"}
		},
		"allOf": [
			{"if": {"properties": {"type": {"const": "text"}}}, "then": {"properties": {"data": {"required": ["text"]}}}},
			{"if": {"properties": {"type": {"enum": ["img", "audio", "video", "file"]}}}, "then": {"properties": {"data": {"required": ["src"]}}}},
			{"if": {"properties": {"type": {"const": "sharp"}}}, "then": {"properties": {"data": {"required": ["id"]}}}},
			{"if": {"properties": {"type": {"const": "at"}}}, "then": {"properties": {"data": {"anyOf": [
				{"required": ["id"]}, {"required": ["type"]}, {"required": ["role"]}
			]}}}}
		]
	}
}`

// Codec stores Satori messages as flat element lists
var Codec = adapters.MustSchemaCodec(adapters.Satori, segmentSchema,
	func(segs []message.Segment) (Message, error) { return Message(segs), nil })

// Satori channel types
const channelDirect = 1

var platformAliases = map[string]string{
	"chronocat": "qq",
	"red":       "qq",
	"onebot":    "qq",
	"qqguild":   "qq",
	"kook":      "kook",
	"kaiheila":  "kook",
}

// FormatPlatform normalizes the platform name a Satori login reports
func FormatPlatform(platform string) string {
	p := strings.ToLower(strings.TrimSpace(platform))
	if alias, ok := platformAliases[p]; ok {
		return alias
	}
	return p
}

// Resolver derives sessions from Satori events and message_create calls
type Resolver struct{}

func (Resolver) DecodeEvent(bot adapters.Bot, payload json.RawMessage) (adapters.Event, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("invalid Satori event payload")
	}
	root := gjson.ParseBytes(payload)
	if t := root.Get("type").Str; t != "message-created" && t != "message_created" {
		return nil, adapters.ErrNotMessageEvent
	}

	user := adapters.ID(root.Get("user.id"))
	channel := adapters.ID(root.Get("channel.id"))
	guild := adapters.ID(root.Get("guild.id"))
	var scene session.Scene
	switch {
	case root.Get("channel.type").Int() == channelDirect:
		scene = session.Scene{ID: user, Type: session.ScenePrivate}
	case guild != "" && guild != channel:
		scene = session.Scene{ID: channel, Type: session.SceneChannel,
			Parent: &session.Scene{ID: guild, Type: session.SceneGuild}}
	case channel != "" && (guild != "" || root.Get("member").IsObject()):
		scene = session.Scene{ID: channel, Type: session.SceneGroup}
	default:
		scene = session.Scene{ID: user, Type: session.ScenePrivate}
	}

	platform := bot.Platform()
	if platform == "" {
		platform = root.Get("platform").Str
	}
	return &adapters.BasicEvent{
		Adapter: adapters.Satori,
		Scope:   FormatPlatform(platform),
		Scene:   scene,
		UserID:  user,
		At:      adapters.UnixMilli(root.Get("timestamp").Int()),
		ID:      adapters.ID(root.Get("message.id")),
		Msg:     ParseContent(root.Get("message.content").Str),
		IsFake:  root.Get("_is_fake").Bool(),
	}, nil
}

// ResolveCall records message_create, whose result lists every message the
// content was split into; their ids are joined with "_".
func (Resolver) ResolveCall(bot adapters.Bot, call adapters.Call) (*adapters.Sent, bool) {
	if call.API != "message_create" || !adapters.ValidResult(call) {
		return nil, false
	}
	result := gjson.ParseBytes(call.Result)
	if !result.IsArray() {
		return nil, false
	}
	results := result.Array()
	if len(results) == 0 {
		return nil, false
	}
	for _, r := range results {
		if !r.IsObject() || adapters.ID(r.Get("id")) == "" {
			return nil, false
		}
	}

	first := results[0]
	channel := adapters.ID(first.Get("channel.id"))
	var scene session.Scene
	switch {
	case first.Get("guild").IsObject():
		scene = session.Scene{ID: channel, Type: session.SceneChannel,
			Parent: &session.Scene{ID: adapters.ID(first.Get("guild.id")), Type: session.SceneGuild}}
	case first.Get("member").IsObject():
		scene = session.Scene{ID: channel, Type: session.SceneGroup}
	default:
		scene = session.Scene{ID: adapters.ID(gjson.GetBytes(call.Data, "channel_id")), Type: session.ScenePrivate}
	}
	if scene.ID == "" {
		return nil, false
	}

	ids := make([]string, 0, len(results))
	msg := Message{}
	for _, r := range results {
		ids = append(ids, adapters.ID(r.Get("id")))
		msg = append(msg, ParseContent(r.Get("content").Str)...)
	}
	return &adapters.Sent{
		Session:   adapters.SelfSession(bot, adapters.Satori, FormatPlatform(bot.Platform()), scene),
		Time:      adapters.UnixMilli(first.Get("created_at").Int()),
		MessageID: strings.Join(ids, "_"),
		Message:   msg,
	}, true
}

func init() {
	adapters.MustRegister(Codec, Resolver{})
}
