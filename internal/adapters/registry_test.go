package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/iksnae/chat-recorder/internal/message"
)

// testMessage is a minimal native message for exercising the generic codec
type testMessage []message.Segment

func (m testMessage) Segments() []message.Segment { return m }

func (m testMessage) PlainText() string {
	var b strings.Builder
	for _, seg := range m {
		if seg.Type == "text" {
			b.WriteString(message.String(seg.Data, "text"))
		}
	}
	return b.String()
}

const testSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["type", "data"],
		"properties": {
			"type": {"enum": ["text", "image"]},
			"data": {"type": "object"}
		},
		"allOf": [
			{"if": {"properties": {"type": {"const": "text"}}}, "then": {"properties": {"data": {"required": ["text"]}}}}
		]
	}
}`

func buildTestMessage(segs []message.Segment) (testMessage, error) {
	return testMessage(segs), nil
}

func newTestCodec(t *testing.T, key Key) *SchemaCodec[testMessage] {
	t.Helper()
	codec, err := NewSchemaCodec(key, testSchema, buildTestMessage)
	if err != nil {
		t.Fatalf("NewSchemaCodec() error = %v", err)
	}
	return codec
}

type nopResolver struct{}

func (nopResolver) DecodeEvent(Bot, json.RawMessage) (Event, error) { return nil, ErrNotMessageEvent }

func (nopResolver) ResolveCall(Bot, Call) (*Sent, bool) { return nil, false }

func TestParseKey(t *testing.T) {
	tests := []struct {
		in   string
		want Key
		ok   bool
	}{
		{"OneBot V11", OneBotV11, true},
		{"onebotv11", OneBotV11, true},
		{"  telegram ", Telegram, true},
		{"DoDo", DoDo, true},
		{"Matrix", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseKey(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseKey(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRegistryErrorDistinction(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newTestCodec(t, OneBotV11)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err := r.Serialize(context.Background(), "Matrix", testMessage{})
	var notSupported *AdapterNotSupportedError
	if !errors.As(err, &notSupported) || !errors.Is(err, ErrAdapterNotSupported) {
		t.Errorf("unknown adapter: got %v, want AdapterNotSupportedError", err)
	}
	if errors.Is(err, ErrAdapterNotInstalled) {
		t.Error("unknown adapter must not read as not installed")
	}

	_, err = r.Deserialize(Console, message.JSONMsg{})
	var notInstalled *AdapterNotInstalledError
	if !errors.As(err, &notInstalled) || !errors.Is(err, ErrAdapterNotInstalled) {
		t.Errorf("known, uninstalled adapter: got %v, want AdapterNotInstalledError", err)
	}
	if notInstalled != nil && notInstalled.Adapter != Console {
		t.Errorf("AdapterNotInstalledError.Adapter = %q", notInstalled.Adapter)
	}

	if _, err := r.ResolverFor(OneBotV11); !errors.Is(err, ErrAdapterNotInstalled) {
		t.Errorf("missing resolver: got %v", err)
	}
}

func TestRegistryResolveBot(t *testing.T) {
	r := NewRegistry()
	key, err := r.Resolve(BotInfo{AdapterName: "Telegram", ID: "1"})
	if err != nil || key != Telegram {
		t.Errorf("Resolve(bot) = %q, %v", key, err)
	}
	if _, err := r.Resolve(Key("Matrix")); !errors.Is(err, ErrAdapterNotSupported) {
		t.Errorf("Resolve(unknown key) error = %v", err)
	}
	if _, err := r.Resolve(42); !errors.Is(err, ErrAdapterNotSupported) {
		t.Errorf("Resolve(int) error = %v", err)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newTestCodec(t, Satori)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(newTestCodec(t, Satori)); err == nil {
		t.Error("second Register() should fail")
	}
	if err := r.RegisterResolver(Satori, nopResolver{}); err != nil {
		t.Fatalf("RegisterResolver() error = %v", err)
	}
	r.Unregister(Satori)
	if r.IsInstalled(Satori) {
		t.Error("Unregister() left the codec installed")
	}
}

func TestRegistryInstalledOrder(t *testing.T) {
	r := NewRegistry()
	for _, key := range []Key{Satori, OneBotV11, Telegram} {
		if err := r.Register(newTestCodec(t, key)); err != nil {
			t.Fatalf("Register(%s) error = %v", key, err)
		}
	}
	got := r.Installed()
	want := []Key{OneBotV11, Telegram, Satori}
	if len(got) != len(want) {
		t.Fatalf("Installed() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Installed()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSchemaCodecDrift(t *testing.T) {
	codec := newTestCodec(t, OneBotV11)

	tests := []struct {
		name   string
		stored message.JSONMsg
	}{
		{"unknown segment type", message.JSONMsg{{Type: "sticker", Data: map[string]any{}}}},
		{"text without text field", message.JSONMsg{{Type: "text", Data: map[string]any{"content": "x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Deserialize(tt.stored)
			var drift *SchemaDriftError
			if !errors.As(err, &drift) {
				t.Fatalf("Deserialize() error = %v, want SchemaDriftError", err)
			}
			if drift.Adapter != OneBotV11 {
				t.Errorf("SchemaDriftError.Adapter = %s", drift.Adapter)
			}
		})
	}
}

func TestSchemaCodecEmptyMessage(t *testing.T) {
	codec := newTestCodec(t, OneBotV11)
	stored, err := codec.Serialize(context.Background(), testMessage{})
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	data, _ := json.Marshal(stored)
	if string(data) != "[]" {
		t.Errorf("empty message encoded as %s, want []", data)
	}
	msg, err := codec.Deserialize(stored)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if len(msg.Segments()) != 0 {
		t.Errorf("Deserialize() = %v", msg.Segments())
	}
}

func TestSchemaCodecRejectsForeignMessage(t *testing.T) {
	codec := newTestCodec(t, OneBotV11)
	if _, err := codec.Serialize(context.Background(), nil); err == nil {
		t.Error("Serialize(nil) should fail")
	}
}

func TestSchemaCodecHook(t *testing.T) {
	codec, err := NewSchemaCodec(OneBotV11, testSchema, buildTestMessage,
		WithSerializeHook(func(ctx context.Context, segs []message.Segment) ([]message.Segment, error) {
			for i := range segs {
				if segs[i].Type == "image" {
					segs[i].Data["file"] = "file:///cache/x"
				}
			}
			return segs, nil
		}))
	if err != nil {
		t.Fatalf("NewSchemaCodec() error = %v", err)
	}
	native := testMessage{{Type: "image", Data: map[string]any{"file": "base64://AAAA"}}}
	stored, err := codec.Serialize(context.Background(), native)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if got := message.String(stored[0].Data, "file"); got != "file:///cache/x" {
		t.Errorf("hooked file = %q", got)
	}
	if got := message.String(native[0].Data, "file"); got != "base64://AAAA" {
		t.Errorf("hook mutated the native message: %q", got)
	}
}

func TestSchemaCodecRoundTripProperty(t *testing.T) {
	codec := newTestCodec(t, OneBotV11)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	segGen := gen.SliceOf(gen.AlphaString()).Map(func(texts []string) testMessage {
		msg := make(testMessage, 0, len(texts))
		for i, text := range texts {
			if i%3 == 2 {
				msg = append(msg, message.Segment{Type: "image", Data: map[string]any{"file": text}})
				continue
			}
			msg = append(msg, message.Segment{Type: "text", Data: map[string]any{"text": text}})
		}
		return msg
	})

	properties.Property("deserialize(serialize(m)) preserves segments", prop.ForAll(
		func(native testMessage) bool {
			stored, err := codec.Serialize(context.Background(), native)
			if err != nil {
				return false
			}
			encoded, err := message.Encode(stored)
			if err != nil {
				return false
			}
			decoded, err := message.Decode(encoded)
			if err != nil {
				return false
			}
			back, err := codec.Deserialize(decoded)
			if err != nil {
				return false
			}
			segs := back.Segments()
			if len(segs) != len(native) {
				return false
			}
			for i := range segs {
				if segs[i].Type != native[i].Type {
					return false
				}
				for k := range native[i].Data {
					if message.String(segs[i].Data, k) != message.String(native[i].Data, k) {
						return false
					}
				}
			}
			return back.PlainText() == native.PlainText()
		},
		segGen,
	))

	properties.TestingRun(t)
}
