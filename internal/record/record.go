// Package record persists and queries the message log: one immutable row per
// recorded message, joined to its session tuple on read.
package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/iksnae/chat-recorder/internal/message"
	"github.com/iksnae/chat-recorder/internal/session"
)

// Kind tells inbound messages from bot sends and synthetic traffic
type Kind string

const (
	KindMessage     Kind = "message"
	KindMessageSent Kind = "message_sent"
	KindFake        Kind = "fake"
)

// Kinds lists every record kind
var Kinds = []Kind{KindMessage, KindMessageSent, KindFake}

// Valid reports whether k is a defined kind
func (k Kind) Valid() bool {
	switch k {
	case KindMessage, KindMessageSent, KindFake:
		return true
	}
	return false
}

// ParseKind accepts "message", "message_sent" or "fake" ("sent" is an alias)
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == "sent" {
		k = KindMessageSent
	}
	if !k.Valid() {
		return "", fmt.Errorf("unknown record kind: %q", s)
	}
	return k, nil
}

// MessageRecord is one recorded message
type MessageRecord struct {
	ID         int64           `json:"id" yaml:"id"`
	SessionRef int64           `json:"session_ref" yaml:"session_ref"`
	Session    session.Session `json:"session" yaml:"session"`
	Time       time.Time       `json:"time" yaml:"time"`
	Kind       Kind            `json:"kind" yaml:"kind"`
	MessageID  string          `json:"message_id" yaml:"message_id"`
	Message    message.JSONMsg `json:"message" yaml:"message"`
	PlainText  string          `json:"plain_text" yaml:"plain_text"`
}

// TimeLayout is the stored form of record times: UTC, no zone suffix,
// fixed width so that text comparison orders like time.
const TimeLayout = "2006-01-02 15:04:05.000000"

// NaiveUTC converts t to UTC at the precision records keep
func NaiveUTC(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// FormatTime renders t in TimeLayout after converting it to UTC
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime reads a stored record time
func ParseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid record time %q: %w", s, err)
	}
	return t, nil
}
