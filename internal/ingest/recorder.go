// Package ingest turns host notifications into message records. Inbound
// events and completed outbound calls are two separate paths sharing the
// same stages: resolve the session, serialize the message, build the record
// and persist it.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"

	"github.com/iksnae/chat-recorder/internal"
	"github.com/iksnae/chat-recorder/internal/adapters"
	"github.com/iksnae/chat-recorder/internal/blobcache"
	"github.com/iksnae/chat-recorder/internal/message"
	"github.com/iksnae/chat-recorder/internal/record"
	"github.com/iksnae/chat-recorder/internal/session"
)

// RecordWriter persists a single record
type RecordWriter interface {
	Insert(ctx context.Context, rec *record.MessageRecord) error
}

// Recorder records messages observed by the host. It holds no per-message
// state and is safe for concurrent use.
type Recorder struct {
	registry   *adapters.Registry
	sessions   session.Store
	records    RecordWriter
	blobs      blobcache.Store
	recordSent bool
	now        func() time.Time

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tel            *telemetry
}

// Option configures a Recorder
type Option func(*Recorder)

// WithRegistry replaces adapters.Default
func WithRegistry(r *adapters.Registry) Option {
	return func(rec *Recorder) { rec.registry = r }
}

// WithBlobStore sets where codecs cache binary segments
func WithBlobStore(store blobcache.Store) Option {
	return func(rec *Recorder) { rec.blobs = store }
}

// WithRecordSent toggles the outbound path (on by default)
func WithRecordSent(enabled bool) Option {
	return func(rec *Recorder) { rec.recordSent = enabled }
}

// WithClock replaces time.Now as the fallback record time
func WithClock(now func() time.Time) Option {
	return func(rec *Recorder) { rec.now = now }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(rec *Recorder) { rec.tracerProvider = tp }
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(rec *Recorder) { rec.meterProvider = mp }
}

// New creates a Recorder writing sessions and records to the given stores
func New(sessions session.Store, records RecordWriter, opts ...Option) *Recorder {
	r := &Recorder{
		registry:       adapters.Default,
		sessions:       sessions,
		records:        records,
		recordSent:     true,
		now:            time.Now,
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.tel = newTelemetry(r.tracerProvider, r.meterProvider)
	return r
}

// RecordSent reports whether outbound calls are recorded
func (r *Recorder) RecordSent() bool { return r.recordSent }

// OnEventPayload decodes a native inbound payload with the bot adapter's
// resolver and records it. Non-message events are skipped.
func (r *Recorder) OnEventPayload(ctx context.Context, bot adapters.Bot, payload json.RawMessage) error {
	_, err := r.eventPayload(ctx, bot, payload)
	return err
}

func (r *Recorder) eventPayload(ctx context.Context, bot adapters.Bot, payload json.RawMessage) (bool, error) {
	ctx, done := r.tel.track(ctx, "inbound", bot.Adapter())
	recorded, err := func() (bool, error) {
		resolver, err := r.registry.ResolverFor(bot)
		if err != nil {
			return false, &internal.IngestError{Stage: "resolve", Adapter: bot.Adapter(), Err: err}
		}
		ev, err := resolver.DecodeEvent(bot, payload)
		if errors.Is(err, adapters.ErrNotMessageEvent) {
			internal.LogDebug("skipping non-message event from %s bot %s", bot.Adapter(), bot.SelfID())
			return false, nil
		}
		if err != nil {
			return false, &internal.IngestError{Stage: "resolve", Adapter: bot.Adapter(),
				Err: &internal.ParseError{Source: bot.Adapter(), Key: "event", Err: err}}
		}
		return r.event(ctx, bot, ev)
	}()
	done(outcome(recorded, err), err)
	return recorded, err
}

// OnEvent records an already decoded inbound event
func (r *Recorder) OnEvent(ctx context.Context, bot adapters.Bot, ev adapters.Event) error {
	ctx, done := r.tel.track(ctx, "inbound", bot.Adapter())
	recorded, err := r.event(ctx, bot, ev)
	done(outcome(recorded, err), err)
	return err
}

func (r *Recorder) event(ctx context.Context, bot adapters.Bot, ev adapters.Event) (bool, error) {
	sess, ok := ev.Session(bot)
	if !ok {
		internal.LogDebug("no session for %s event %q", bot.Adapter(), ev.MessageID())
		return false, nil
	}
	if err := sess.Validate(); err != nil {
		internal.LogDebug("skipping %s event %q: %v", bot.Adapter(), ev.MessageID(), err)
		return false, nil
	}
	kind := record.KindMessage
	if ev.Fake() {
		kind = record.KindFake
	}
	return true, r.persist(ctx, bot, sess, ev.Time(), kind, ev.MessageID(), ev.Message())
}

// OnCalledAPI records a completed outbound call if it sent a message. Failed
// calls, unlisted APIs and unusable responses are skipped.
func (r *Recorder) OnCalledAPI(ctx context.Context, bot adapters.Bot, callErr error, api string, request, response json.RawMessage) error {
	_, err := r.calledAPI(ctx, bot, adapters.Call{API: api, Data: request, Result: response, Err: callErr})
	return err
}

func (r *Recorder) calledAPI(ctx context.Context, bot adapters.Bot, call adapters.Call) (bool, error) {
	if !r.recordSent {
		return false, nil
	}
	ctx, done := r.tel.track(ctx, "outbound", bot.Adapter())
	recorded, err := func() (bool, error) {
		resolver, err := r.registry.ResolverFor(bot)
		if err != nil {
			return false, &internal.IngestError{Stage: "resolve", Adapter: bot.Adapter(), Err: err}
		}
		sent, ok := resolver.ResolveCall(bot, call)
		if !ok {
			internal.LogDebug("call %s by %s bot %s is not a recordable send", call.API, bot.Adapter(), bot.SelfID())
			return false, nil
		}
		if err := sent.Session.Validate(); err != nil {
			internal.LogDebug("skipping call %s by %s bot %s: %v", call.API, bot.Adapter(), bot.SelfID(), err)
			return false, nil
		}
		return true, r.persist(ctx, bot, sent.Session, sent.Time, record.KindMessageSent, sent.MessageID, sent.Message)
	}()
	done(outcome(recorded, err), err)
	return recorded, err
}

func (r *Recorder) persist(ctx context.Context, bot adapters.Bot, sess session.Session, at time.Time, kind record.Kind, messageID string, msg message.Message) error {
	if r.blobs != nil {
		ctx = blobcache.WithStore(ctx, r.blobs)
	}
	stored, err := r.registry.Serialize(ctx, bot, msg)
	if err != nil {
		return &internal.IngestError{Stage: "serialize", Adapter: bot.Adapter(), Err: err}
	}

	ref, err := r.sessions.ResolveOrCreate(ctx, sess)
	if err != nil {
		return &internal.IngestError{Stage: "session", Adapter: bot.Adapter(), Err: err}
	}

	if at.IsZero() {
		at = r.now()
	}
	rec := &record.MessageRecord{
		SessionRef: ref,
		Session:    sess,
		Time:       record.NaiveUTC(at),
		Kind:       kind,
		MessageID:  messageID,
		Message:    stored,
		PlainText:  norm.NFC.String(msg.PlainText()),
	}
	if err := r.records.Insert(ctx, rec); err != nil {
		return &internal.IngestError{Stage: "persist", Adapter: bot.Adapter(), Err: err}
	}
	internal.LogDebug("recorded %s %d (%s %s/%s user %s)", kind, rec.ID, sess.Adapter, sess.Scene.Type, sess.Scene.ID, sess.User)
	return nil
}

func outcome(recorded bool, err error) string {
	switch {
	case err != nil:
		return outcomeFailed
	case recorded:
		return outcomeRecorded
	default:
		return outcomeSkipped
	}
}
