package onebot12

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/iksnae/chat-recorder/internal/adapters"
	"github.com/iksnae/chat-recorder/internal/message"
	"github.com/iksnae/chat-recorder/internal/session"
)

var bot = adapters.BotInfo{AdapterName: "OneBot V12", ID: "2233", PlatformName: "qq"}

func TestDecodeChannelEvent(t *testing.T) {
	payload := `{"type":"message","detail_type":"channel","time":1700000000.5,
		"self":{"platform":"kook","user_id":"2233"},"message_id":"m1","user_id":"u1",
		"guild_id":"g1","channel_id":"c1",
		"message":[{"type":"text","data":{"text":"hello "}},{"type":"mention","data":{"user_id":"2233"}}]}`
	ev, err := Resolver{}.DecodeEvent(bot, json.RawMessage(payload))
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	sess, ok := ev.Session(bot)
	if !ok {
		t.Fatal("channel event has no session")
	}
	if sess.Scope != "qq" {
		t.Errorf("scope = %q, want the bot platform", sess.Scope)
	}
	if sess.Scene.Type != session.SceneChannel || sess.Scene.ID != "c1" {
		t.Errorf("scene = %+v", sess.Scene)
	}
	if sess.Scene.Parent == nil || sess.Scene.Parent.ID != "g1" || sess.Scene.Parent.Type != session.SceneGuild {
		t.Errorf("parent = %+v", sess.Scene.Parent)
	}
	if want := time.Unix(1700000000, 500_000_000); !ev.Time().Equal(want) {
		t.Errorf("Time() = %v, want %v", ev.Time(), want)
	}
	if ev.Message().PlainText() != "hello " {
		t.Errorf("PlainText() = %q", ev.Message().PlainText())
	}
}

func TestDecodeNonMessage(t *testing.T) {
	payload := `{"type":"meta","detail_type":"heartbeat"}`
	if _, err := (Resolver{}).DecodeEvent(bot, json.RawMessage(payload)); !errors.Is(err, adapters.ErrNotMessageEvent) {
		t.Errorf("DecodeEvent() error = %v", err)
	}
}

func TestResolveSendMessage(t *testing.T) {
	call := adapters.Call{
		API:    "send_message",
		Data:   json.RawMessage(`{"detail_type":"group","group_id":"g9","message":[{"type":"text","data":{"text":"yo"}}]}`),
		Result: json.RawMessage(`{"message_id":"s1","time":1700000100}`),
	}
	sent, ok := Resolver{}.ResolveCall(bot, call)
	if !ok {
		t.Fatal("ResolveCall() rejected a successful send")
	}
	if sent.Session.Scene.Type != session.SceneGroup || sent.Session.Scene.ID != "g9" {
		t.Errorf("scene = %+v", sent.Session.Scene)
	}
	if sent.Session.Scope != "qq" || sent.Session.User != "2233" {
		t.Errorf("session = %+v", sent.Session)
	}
	if !sent.Time.Equal(time.Unix(1700000100, 0)) {
		t.Errorf("Time = %v, want result time", sent.Time)
	}

	call.API = "get_self_info"
	if _, ok := (Resolver{}).ResolveCall(bot, call); ok {
		t.Error("non-send API should not resolve")
	}
}

func TestScopeMatchesAcrossDirections(t *testing.T) {
	tests := []struct {
		name string
		bot  adapters.BotInfo
		data string
		want string
	}{
		{
			name: "bot platform wins over self",
			bot:  bot,
			data: `{"detail_type":"group","group_id":"g1","message":[{"type":"text","data":{"text":"yo"}}]}`,
			want: "qq",
		},
		{
			name: "platform from self",
			bot:  adapters.BotInfo{AdapterName: "OneBot V12", ID: "2233"},
			data: `{"detail_type":"group","group_id":"g1","self":{"platform":"kook","user_id":"2233"},"message":[{"type":"text","data":{"text":"yo"}}]}`,
			want: "kook",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `{"type":"message","detail_type":"group","time":1700000000,
				"self":{"platform":"kook","user_id":"2233"},"message_id":"m1","user_id":"u1","group_id":"g1",
				"message":[{"type":"text","data":{"text":"hi"}}]}`
			ev, err := Resolver{}.DecodeEvent(tt.bot, json.RawMessage(payload))
			if err != nil {
				t.Fatalf("DecodeEvent() error = %v", err)
			}
			in, ok := ev.Session(tt.bot)
			if !ok {
				t.Fatal("event has no session")
			}
			sent, ok := Resolver{}.ResolveCall(tt.bot, adapters.Call{
				API:    "send_message",
				Data:   json.RawMessage(tt.data),
				Result: json.RawMessage(`{"message_id":"s1","time":1700000100}`),
			})
			if !ok {
				t.Fatal("ResolveCall() rejected a successful send")
			}
			if in.Scope != tt.want || sent.Session.Scope != tt.want {
				t.Errorf("scopes = %q inbound, %q outbound, want %q", in.Scope, sent.Session.Scope, tt.want)
			}
		})
	}
}

func TestCodecAcceptsExtensionSegments(t *testing.T) {
	stored := message.JSONMsg{
		{Type: "qq.face", Data: map[string]any{"id": "1"}},
		{Type: "image", Data: map[string]any{"file_id": "f"}},
		{Type: "face", Data: map[string]any{"id": "2"}},
	}
	if _, err := Codec.Deserialize(stored); err != nil {
		t.Errorf("Deserialize() error = %v", err)
	}
	bad := message.JSONMsg{{Type: "image", Data: map[string]any{"url": "x"}}}
	var drift *adapters.SchemaDriftError
	if _, err := Codec.Deserialize(bad); !errors.As(err, &drift) {
		t.Errorf("Deserialize(image without file_id) error = %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	native := Message{
		{Type: "text", Data: map[string]any{"text": "a"}},
		{Type: "location", Data: map[string]any{"latitude": "31.0", "longitude": "121.0", "title": "t"}},
		{Type: "text", Data: map[string]any{"text": "b"}},
	}
	stored, err := adapters.Default.Serialize(context.Background(), adapters.OneBotV12, native)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	back, err := adapters.Default.Deserialize(bot, stored)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if back.PlainText() != "ab" || len(back.Segments()) != 3 {
		t.Errorf("round trip = %+v", back.Segments())
	}
}
