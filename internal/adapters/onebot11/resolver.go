package onebot11

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/iksnae/chat-recorder/internal/adapters"
	"github.com/iksnae/chat-recorder/internal/session"
)

// Scope is the session scope of every OneBot V11 bot
const Scope = "qq_client"

var sendAPIs = []string{"send_msg", "send_private_msg", "send_group_msg"}

// Resolver derives sessions from OneBot V11 events and send calls
type Resolver struct{}

func (Resolver) DecodeEvent(bot adapters.Bot, payload json.RawMessage) (adapters.Event, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("invalid OneBot V11 event payload")
	}
	root := gjson.ParseBytes(payload)
	if root.Get("post_type").Str != "message" {
		return nil, adapters.ErrNotMessageEvent
	}

	userID := adapters.ID(root.Get("user_id"))
	var scene session.Scene
	switch root.Get("message_type").Str {
	case "group":
		scene = session.Scene{ID: adapters.ID(root.Get("group_id")), Type: session.SceneGroup}
	case "private":
		scene = session.Scene{ID: userID, Type: session.ScenePrivate}
	default:
		return nil, adapters.ErrNotMessageEvent
	}

	msg, err := decodeMessage(root.Get("message"))
	if err != nil {
		return nil, err
	}
	return &adapters.BasicEvent{
		Adapter: adapters.OneBotV11,
		Scope:   Scope,
		Scene:   scene,
		UserID:  userID,
		At:      adapters.UnixTime(root.Get("time").Float()),
		ID:      adapters.ID(root.Get("message_id")),
		Msg:     msg,
		IsFake:  root.Get("_is_fake").Bool(),
	}, nil
}

// ResolveCall records send_msg and friends. The response carries no time,
// so Sent.Time stays zero and the ingestion clock is used.
func (Resolver) ResolveCall(bot adapters.Bot, call adapters.Call) (*adapters.Sent, bool) {
	if !adapters.Allowed(call.API, sendAPIs...) || !adapters.ValidResult(call) {
		return nil, false
	}
	messageID := adapters.ID(adapters.Field(call.Result, "message_id"))
	if messageID == "" {
		return nil, false
	}

	data := gjson.ParseBytes(call.Data)
	messageType := data.Get("message_type").Str
	group := call.API == "send_group_msg" ||
		(call.API == "send_msg" && (messageType == "group" || (messageType == "" && data.Get("group_id").Exists())))

	var scene session.Scene
	if group {
		scene = session.Scene{ID: adapters.ID(data.Get("group_id")), Type: session.SceneGroup}
	} else {
		scene = session.Scene{ID: adapters.ID(data.Get("user_id")), Type: session.ScenePrivate}
	}
	if scene.ID == "" {
		return nil, false
	}

	msg, err := decodeMessage(data.Get("message"))
	if err != nil {
		return nil, false
	}
	return &adapters.Sent{
		Session:   adapters.SelfSession(bot, adapters.OneBotV11, Scope, scene),
		Time:      time.Time{},
		MessageID: messageID,
		Message:   msg,
	}, true
}
