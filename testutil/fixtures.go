package testutil

import (
	"fmt"
	"strings"
	"testing"
)

// OneBotV11GroupMessage returns an inbound OneBot V11 group message event
func OneBotV11GroupMessage(groupID, userID string, messageID int, unix int64, text string) string {
	return fmt.Sprintf(`{"post_type":"message","message_type":"group","time":%d,"self_id":10001,`+
		`"group_id":%q,"user_id":%q,"message_id":%d,"message":[{"type":"text","data":{"text":%q}}]}`,
		unix, groupID, userID, messageID, text)
}

// EventLine wraps an event payload into a spool notification line
func EventLine(adapter, selfID, payload string) string {
	return fmt.Sprintf(`{"kind":"event","bot":{"adapter":%q,"self_id":%q},"payload":%s}`, adapter, selfID, payload)
}

// CallLine wraps a completed outbound call into a spool notification line
func CallLine(adapter, selfID, api, data, result string) string {
	return fmt.Sprintf(`{"kind":"call","bot":{"adapter":%q,"self_id":%q},"api":%q,"data":%s,"result":%s}`,
		adapter, selfID, api, data, result)
}

// SampleSpool returns a small conversation in a OneBot V11 group: two inbound
// messages and one reply sent by the bot
func SampleSpool() []string {
	return []string{
		EventLine("OneBot V11", "10001", OneBotV11GroupMessage("G1", "U1", 101, 1714527000, "hello")),
		EventLine("OneBot V11", "10001", OneBotV11GroupMessage("G1", "U2", 102, 1714527005, "anyone here?")),
		CallLine("OneBot V11", "10001", "send_group_msg", `{"group_id":"G1","message":"pong"}`, `{"message_id":103}`),
	}
}

// WriteSpool writes lines as a JSONL spool file under dir and returns its path
func WriteSpool(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	return WriteFile(t, dir, name, []byte(strings.Join(lines, "\n")+"\n"))
}
