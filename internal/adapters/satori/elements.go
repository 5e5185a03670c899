package satori

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/iksnae/chat-recorder/internal/message"
)

// Message is a Satori message as a flat element list
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

// Formatting elements contribute only their children.
var inlineElements = map[string]bool{
	"b": true, "strong": true, "i": true, "em": true, "u": true, "ins": true,
	"s": true, "del": true, "spl": true, "code": true, "sup": true, "sub": true,
	"message": true, "p": true,
}

// Elements whose children are captured into the segment instead of flattened.
var containerElements = map[string]bool{"a": true, "quote": true, "author": true, "button": true}

// ParseContent parses Satori element markup into segments
func ParseContent(content string) Message {
	msg := Message{}
	z := html.NewTokenizer(strings.NewReader(content))
	var container *message.Segment
	var containerText strings.Builder
	depth := 0

	appendText := func(text string) {
		if text == "" {
			return
		}
		if container != nil {
			containerText.WriteString(text)
			return
		}
		if n := len(msg); n > 0 && msg[n-1].Type == "text" {
			msg[n-1].Data["text"] = message.String(msg[n-1].Data, "text") + text
			return
		}
		msg = append(msg, message.Segment{Type: "text", Data: map[string]any{"text": text}})
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				appendText(string(z.Raw()))
			}
			if container != nil {
				msg = append(msg, closeContainer(*container, containerText.String()))
			}
			return msg
		case html.TextToken:
			appendText(string(z.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			attrs := readAttrs(z, hasAttr)
			switch {
			case tag == "br":
				appendText("\n")
			case inlineElements[tag]:
			case container != nil:
				if containerElements[tag] && tt == html.StartTagToken {
					depth++
				}
			case containerElements[tag] && tt == html.StartTagToken:
				container = &message.Segment{Type: elementType(tag), Data: attrs}
				containerText.Reset()
				depth = 1
			default:
				msg = append(msg, message.Segment{Type: elementType(tag), Data: attrs})
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "p" && container == nil {
				appendText("\n")
			}
			if container != nil && containerElements[tag] {
				depth--
				if depth == 0 {
					msg = append(msg, closeContainer(*container, containerText.String()))
					container = nil
				}
			}
		}
	}
}

func closeContainer(seg message.Segment, text string) message.Segment {
	if text != "" {
		seg.Data["text"] = text
	}
	return seg
}

func elementType(tag string) string {
	switch tag {
	case "a":
		return "link"
	case "image":
		return "img"
	default:
		return tag
	}
}

func readAttrs(z *html.Tokenizer, more bool) map[string]any {
	attrs := map[string]any{}
	for more {
		var key, val []byte
		key, val, more = z.TagAttr()
		attrs[string(key)] = string(val)
	}
	return attrs
}
