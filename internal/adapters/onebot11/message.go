// Package onebot11 records traffic of OneBot V11 (go-cqhttp style) bots.
package onebot11

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/iksnae/chat-recorder/internal/message"
)

// Message is a OneBot V11 message: a list of {type, data} segments
type Message []message.Segment

func (m Message) Segments() []message.Segment { return m }

// PlainText joins the text segments
func (m Message) PlainText() string {
	var b strings.Builder
	for _, seg := range m {
		if seg.Type == "text" {
			b.WriteString(message.String(seg.Data, "text"))
		}
	}
	return b.String()
}

// Text builds a text segment
func Text(text string) message.Segment {
	return message.Segment{Type: "text", Data: map[string]any{"text": text}}
}

var (
	textUnescaper  = strings.NewReplacer("&#91;", "[", "&#93;", "]", "&amp;", "&")
	paramUnescaper = strings.NewReplacer("&#91;", "[", "&#93;", "]", "&#44;", ",", "&amp;", "&")
)

// ParseCQ parses the CQ-code string form, e.g. "hi[CQ:face,id=1]"
func ParseCQ(s string) Message {
	msg := Message{}
	for len(s) > 0 {
		start := strings.Index(s, "[CQ:")
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start:], ']')
		if end < 0 {
			break
		}
		end += start
		if start > 0 {
			msg = append(msg, Text(textUnescaper.Replace(s[:start])))
		}
		msg = append(msg, parseCode(s[start+len("[CQ:"):end]))
		s = s[end+1:]
	}
	if s != "" {
		msg = append(msg, Text(textUnescaper.Replace(s)))
	}
	return msg
}

func parseCode(body string) message.Segment {
	parts := strings.Split(body, ",")
	seg := message.Segment{Type: strings.TrimSpace(parts[0]), Data: map[string]any{}}
	for _, kv := range parts[1:] {
		k, v, _ := strings.Cut(kv, "=")
		seg.Data[k] = paramUnescaper.Replace(v)
	}
	return seg
}

// decodeMessage accepts either wire form of a message field
func decodeMessage(r gjson.Result) (Message, error) {
	switch {
	case !r.Exists() || r.Type == gjson.Null:
		return Message{}, nil
	case r.Type == gjson.String:
		return ParseCQ(r.Str), nil
	case r.IsArray():
		segs, err := message.Decode([]byte(r.Raw))
		if err != nil {
			return nil, err
		}
		return Message(segs), nil
	case r.IsObject():
		segs, err := message.Decode([]byte("[" + r.Raw + "]"))
		if err != nil {
			return nil, err
		}
		return Message(segs), nil
	default:
		return ParseCQ(r.String()), nil
	}
}
