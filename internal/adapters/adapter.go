// Package adapters holds the adapter-agnostic half of recording: the set of
// known adapters, the codec and resolver contracts every adapter package
// implements, and the registry that dispatches to them.
package adapters

import (
	"strings"
)

// Key is the canonical name of a chat adapter
type Key string

const (
	OneBotV11   Key = "OneBot V11"
	OneBotV12   Key = "OneBot V12"
	Console     Key = "Console"
	Kaiheila    Key = "Kaiheila"
	Telegram    Key = "Telegram"
	Feishu      Key = "Feishu"
	RedProtocol Key = "RedProtocol"
	Discord     Key = "Discord"
	QQ          Key = "QQ"
	Satori      Key = "Satori"
	DoDo        Key = "DoDo"
	Villa       Key = "Villa"
	Mirai       Key = "Mirai"
	Kritor      Key = "Kritor"
	Dingtalk    Key = "Dingtalk"
	Minecraft   Key = "Minecraft"
)

// Known lists every adapter the recorder can name, installed or not
var Known = []Key{
	OneBotV11, OneBotV12, Console, Kaiheila, Telegram, Feishu, RedProtocol,
	Discord, QQ, Satori, DoDo, Villa, Mirai, Kritor, Dingtalk, Minecraft,
}

func (k Key) String() string { return string(k) }

// IsKnown reports whether k is a member of Known
func (k Key) IsKnown() bool {
	for _, known := range Known {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKey matches s against Known, ignoring case and spaces ("onebotv11")
func ParseKey(s string) (Key, bool) {
	want := normalizeKey(s)
	if want == "" {
		return "", false
	}
	for _, known := range Known {
		if normalizeKey(string(known)) == want {
			return known, true
		}
	}
	return "", false
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

// Bot is the host-side bot instance a notification arrived on
type Bot interface {
	// Adapter is the adapter name as reported by the host.
	Adapter() string
	SelfID() string
	// Platform is the platform the bot is connected to, used as session scope
	// by adapters that serve several platforms.
	Platform() string
}

// BotInfo is a plain Bot value, as carried by replayed notifications
type BotInfo struct {
	AdapterName  string `json:"adapter" yaml:"adapter"`
	ID           string `json:"self_id" yaml:"self_id"`
	PlatformName string `json:"platform,omitempty" yaml:"platform,omitempty"`
}

func (b BotInfo) Adapter() string { return b.AdapterName }

func (b BotInfo) SelfID() string { return b.ID }

func (b BotInfo) Platform() string { return b.PlatformName }
