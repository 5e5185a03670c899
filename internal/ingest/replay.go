package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/iksnae/chat-recorder/internal"
	"github.com/iksnae/chat-recorder/internal/adapters"
)

// Notification kinds
const (
	KindEvent = "event"
	KindCall  = "call"
)

// Notification is one host notification as captured to JSONL:
// an inbound event payload, or a completed outbound call.
type Notification struct {
	Kind    string           `json:"kind"`
	Bot     adapters.BotInfo `json:"bot"`
	Payload json.RawMessage  `json:"payload,omitempty"`
	API     string           `json:"api,omitempty"`
	Data    json.RawMessage  `json:"data,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Dispatch feeds n to the matching path and reports whether a record was written
func (r *Recorder) Dispatch(ctx context.Context, n Notification) (bool, error) {
	switch n.Kind {
	case KindEvent:
		return r.eventPayload(ctx, n.Bot, n.Payload)
	case KindCall:
		var callErr error
		if n.Error != "" {
			callErr = errors.New(n.Error)
		}
		return r.calledAPI(ctx, n.Bot, adapters.Call{API: n.API, Data: n.Data, Result: n.Result, Err: callErr})
	default:
		return false, &internal.ParseError{Source: n.Bot.Adapter(), Key: "kind", Err: fmt.Errorf("unknown notification kind %q", n.Kind)}
	}
}

// Stats summarizes a replay
type Stats struct {
	Lines    int
	Recorded int
	Skipped  int
	Failed   int
}

// Add accumulates o into s
func (s *Stats) Add(o Stats) {
	s.Lines += o.Lines
	s.Recorded += o.Recorded
	s.Skipped += o.Skipped
	s.Failed += o.Failed
}

const maxLineSize = 16 << 20

// Replay dispatches every JSONL notification read from rd. Bad lines and
// failed attempts are logged and counted; only read errors and cancellation
// stop the replay.
func (r *Recorder) Replay(ctx context.Context, rd io.Reader, source string) (Stats, error) {
	var stats Stats
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		stats.Lines++

		var n Notification
		if err := json.Unmarshal(line, &n); err != nil {
			stats.Failed++
			internal.LogWarn("%v", &internal.ParseError{Source: source, Key: fmt.Sprintf("line %d", stats.Lines), Err: err})
			continue
		}
		recorded, err := r.Dispatch(ctx, n)
		switch {
		case err != nil:
			stats.Failed++
			internal.LogWarn("%s line %d: %v", source, stats.Lines, err)
		case recorded:
			stats.Recorded++
		default:
			stats.Skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, &internal.ParseError{Source: source, Key: "read", Err: err}
	}
	return stats, nil
}

// ReplayFile replays a JSONL file
func (r *Recorder) ReplayFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return r.Replay(ctx, f, path)
}
