package record

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/chat-recorder/internal"
	"github.com/iksnae/chat-recorder/internal/adapters"
	_ "github.com/iksnae/chat-recorder/internal/adapters/onebot12"
	_ "github.com/iksnae/chat-recorder/internal/adapters/telegram"
	"github.com/iksnae/chat-recorder/internal/message"
	"github.com/iksnae/chat-recorder/internal/session"
	"github.com/iksnae/chat-recorder/testutil"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *Store
	sessions *session.SQLStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.CreateInMemoryDB(t)
	sessions, err := session.NewSQLStore(ctx, db)
	require.NoError(t, err)
	store, err := NewStore(ctx, db)
	require.NoError(t, err)
	return &fixture{store: store, sessions: sessions}
}

func (f *fixture) add(t *testing.T, sess session.Session, at time.Time, kind Kind, text string) MessageRecord {
	t.Helper()
	ref, err := f.sessions.ResolveOrCreate(context.Background(), sess)
	require.NoError(t, err)
	rec := MessageRecord{
		SessionRef: ref,
		Time:       at,
		Kind:       kind,
		MessageID:  text,
		Message:    message.JSONMsg{{Type: "text", Data: map[string]any{"text": text}}},
		PlainText:  text,
	}
	require.NoError(t, f.store.Insert(context.Background(), &rec))
	return rec
}

func sess(adapter adapters.Key, scope string, scene session.Scene, user string) session.Session {
	return session.Session{SelfID: "bot", Adapter: string(adapter), Scope: scope, Scene: scene, User: user}
}

func group(id string) session.Scene { return session.Scene{ID: id, Type: session.SceneGroup} }

// seed inserts five records across two adapters and three scopes, one second apart
func (f *fixture) seed(t *testing.T) []MessageRecord {
	t.Helper()
	channel := session.Scene{ID: "C1", Type: session.SceneChannel, Parent: &session.Scene{ID: "K", Type: session.SceneGuild}}
	return []MessageRecord{
		f.add(t, sess(adapters.OneBotV12, "qq", group("G1"), "A"), t0, KindMessage, "a0"),
		f.add(t, sess(adapters.OneBotV12, "qq", group("X"), "A"), t0.Add(1*time.Second), KindMessage, "a1"),
		f.add(t, sess(adapters.OneBotV12, "kook", channel, "B"), t0.Add(2*time.Second), KindMessage, "b2"),
		f.add(t, sess(adapters.Telegram, "telegram", session.Scene{ID: "A", Type: session.ScenePrivate}, "A"), t0.Add(3*time.Second), KindMessageSent, "a3"),
		f.add(t, sess(adapters.Telegram, "telegram", group("X"), "C"), t0.Add(4*time.Second), KindFake, "c4"),
	}
}

func (f *fixture) texts(t *testing.T, filter Filter) []string {
	t.Helper()
	spec, err := filter.Build()
	require.NoError(t, err)
	texts, err := f.store.PlainTexts(context.Background(), spec)
	require.NoError(t, err)
	return texts
}

func TestInsertAssignsIDAndNormalizesTime(t *testing.T) {
	f := newFixture(t)
	local := time.FixedZone("UTC+8", 8*3600)
	first := f.add(t, sess(adapters.OneBotV12, "qq", group("G1"), "A"), time.Date(2024, 3, 1, 20, 0, 0, 123456789, local), KindMessage, "x")
	second := f.add(t, sess(adapters.OneBotV12, "qq", group("G1"), "A"), t0, KindMessage, "y")

	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, time.UTC, first.Time.Location())

	records, err := f.store.Records(context.Background(), Spec{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].Time.Equal(time.Date(2024, 3, 1, 12, 0, 0, 123456000, time.UTC)), "time = %v", records[0].Time)
	assert.Equal(t, "G1", records[0].Session.Scene.ID)
	assert.Equal(t, records[0].SessionRef, records[1].SessionRef)
}

func TestInsertRejectsMissingSession(t *testing.T) {
	f := newFixture(t)
	err := f.store.Insert(context.Background(), &MessageRecord{Kind: KindMessage, Time: t0})
	var storageErr *internal.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "insert", storageErr.Op)

	err = f.store.Insert(context.Background(), &MessageRecord{SessionRef: 9999, Kind: KindMessage, Time: t0})
	assert.Error(t, err, "foreign key should reject unknown session")
}

func TestEmptyMessageStoredAsArray(t *testing.T) {
	f := newFixture(t)
	ref, err := f.sessions.ResolveOrCreate(context.Background(), sess(adapters.Telegram, "telegram", group("G"), "U"))
	require.NoError(t, err)
	require.NoError(t, f.store.Insert(context.Background(), &MessageRecord{SessionRef: ref, Time: t0, Kind: KindMessage}))

	var raw string
	require.NoError(t, f.store.db.QueryRow(`SELECT message FROM message_records`).Scan(&raw))
	assert.Equal(t, "[]", raw)
}

func TestTimeBoundsInclusive(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	got := f.texts(t, Filter{TimeStart: t0.Add(1 * time.Second), TimeStop: t0.Add(3 * time.Second)})
	assert.Equal(t, []string{"a1", "b2", "a3"}, got)

	// The same instant expressed in another zone selects the same rows.
	tokyo := time.FixedZone("JST", 9*3600)
	got = f.texts(t, Filter{TimeStart: t0.Add(1 * time.Second).In(tokyo), TimeStop: t0.Add(3 * time.Second).In(tokyo)})
	assert.Equal(t, []string{"a1", "b2", "a3"}, got)
}

func TestTimeBoundsSubMicrosecond(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"start just after a record", Filter{TimeStart: t0.Add(time.Second + 500*time.Nanosecond), TimeStop: t0.Add(2 * time.Second)}, []string{"b2"}},
		{"start on a record", Filter{TimeStart: t0.Add(time.Second), TimeStop: t0.Add(2 * time.Second)}, []string{"a1", "b2"}},
		{"stop just after a record", Filter{TimeStart: t0.Add(time.Second), TimeStop: t0.Add(2*time.Second + 500*time.Nanosecond)}, []string{"a1", "b2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.texts(t, tt.filter))
		})
	}
}

func TestFilterComposition(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"no filter", Filter{}, []string{"a0", "a1", "b2", "a3", "c4"}},
		{"user", Filter{UserIDs: []string{"A"}}, []string{"a0", "a1", "a3"}},
		{"exclude scene", Filter{ExcludeSceneIDs: []string{"X"}}, []string{"a0", "b2", "a3"}},
		{"user minus scene", Filter{UserIDs: []string{"A"}, ExcludeSceneIDs: []string{"X"}}, []string{"a0", "a3"}},
		{"adapter alias", Filter{Adapters: []string{"telegram"}}, []string{"a3", "c4"}},
		{"typed adapters", Filter{Adapters: Values(adapters.OneBotV12)}, []string{"a0", "a1", "b2"}},
		{"exclude adapter", Filter{ExcludeAdapters: []string{"OneBot V12"}}, []string{"a3", "c4"}},
		{"scopes", Filter{Scopes: []string{"kook", "telegram"}}, []string{"b2", "a3", "c4"}},
		{"exclude scopes", Filter{ExcludeScopes: []string{"qq", "kook"}}, []string{"a3", "c4"}},
		{"scene types", Filter{SceneTypes: []session.SceneType{session.SceneChannel, session.ScenePrivate}}, []string{"b2", "a3"}},
		{"exclude scene type", Filter{ExcludeSceneTypes: []session.SceneType{session.SceneGroup}}, []string{"b2", "a3"}},
		{"kinds", Filter{Kinds: []Kind{KindMessageSent, KindFake}}, []string{"a3", "c4"}},
		{"exclude kind", Filter{ExcludeKinds: []Kind{KindFake}}, []string{"a0", "a1", "b2", "a3"}},
		{"exclude users", Filter{ExcludeUserIDs: []string{"A", "B"}}, []string{"c4"}},
		{"self id", Filter{SelfIDs: []string{"other"}}, []string{}},
		{"exclude self id", Filter{ExcludeSelfIDs: []string{"other"}}, []string{"a0", "a1", "b2", "a3", "c4"}},
		{"where", Filter{Where: `plain_text.startsWith("a") && scene_type == "group"`}, []string{"a0", "a1"}},
		{"where parent", Filter{Where: `parent_scene_id == "K"`}, []string{"b2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.texts(t, tt.filter))
		})
	}
}

func TestSessionSeededDefaults(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ref := sess(adapters.OneBotV12, "qq", group("X"), "A")

	assert.Equal(t, []string{"a1"}, f.texts(t, Filter{Session: &ref}))
	assert.Equal(t, []string{"a0", "a1"}, f.texts(t, Filter{Session: &ref, SkipScene: true}))
	assert.Equal(t, []string{"a1", "c4"}, f.texts(t, Filter{Session: &ref, SkipAdapter: true, SkipScope: true, SkipUser: true}))

	// Explicit axes still apply on top of the seeded ones.
	assert.Empty(t, f.texts(t, Filter{Session: &ref, SkipScene: true, Kinds: []Kind{KindMessageSent}}))

	// A channel scene only matches with its parent.
	channel := sess(adapters.OneBotV12, "kook", session.Scene{ID: "C1", Type: session.SceneChannel, Parent: &session.Scene{ID: "K", Type: session.SceneGuild}}, "B")
	assert.Equal(t, []string{"b2"}, f.texts(t, Filter{Session: &channel}))
	channel.Scene.Parent = &session.Scene{ID: "other", Type: session.SceneGuild}
	assert.Empty(t, f.texts(t, Filter{Session: &channel}))
}

func TestMaterializersAgree(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	filters := []Filter{
		{},
		{UserIDs: []string{"A"}},
		{Adapters: []string{"Telegram"}},
		{SelfIDs: []string{"nobody"}},
		{Where: `kind != "fake"`},
	}
	for _, filter := range filters {
		spec, err := filter.Build()
		require.NoError(t, err)

		records, err := f.store.Records(ctx, spec)
		require.NoError(t, err)
		messages, err := f.store.Messages(ctx, spec)
		require.NoError(t, err)
		texts, err := f.store.PlainTexts(ctx, spec)
		require.NoError(t, err)

		require.Len(t, messages, len(records), "spec %s", spec)
		require.Len(t, texts, len(records), "spec %s", spec)
		for i := range records {
			assert.Equal(t, records[i].PlainText, texts[i])
			assert.Equal(t, records[i].PlainText, messages[i].PlainText())
		}
	}
}

func TestMessagesUseEachRecordsAdapter(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	messages, err := f.store.Messages(context.Background(), Spec{})
	require.NoError(t, err)
	require.Len(t, messages, 5)

	v12, err := adapters.Default.Codec(adapters.OneBotV12)
	require.NoError(t, err)
	tg, err := adapters.Default.Codec(adapters.Telegram)
	require.NoError(t, err)
	want, _ := v12.Deserialize(message.JSONMsg{{Type: "text", Data: map[string]any{"text": "a0"}}})
	assert.IsType(t, want, messages[0])
	want, _ = tg.Deserialize(message.JSONMsg{{Type: "text", Data: map[string]any{"text": "a3"}}})
	assert.IsType(t, want, messages[3])
}

func TestMessagesReportSchemaDrift(t *testing.T) {
	f := newFixture(t)
	ref, err := f.sessions.ResolveOrCreate(context.Background(), sess(adapters.OneBotV12, "qq", group("G1"), "A"))
	require.NoError(t, err)
	rec := MessageRecord{
		SessionRef: ref,
		Time:       t0,
		Kind:       KindMessage,
		Message:    message.JSONMsg{{Type: "text", Data: map[string]any{"content": "renamed field"}}},
	}
	require.NoError(t, f.store.Insert(context.Background(), &rec))

	_, err = f.store.Messages(context.Background(), Spec{})
	var drift *adapters.SchemaDriftError
	require.ErrorAs(t, err, &drift)

	texts, err := f.store.PlainTexts(context.Background(), Spec{})
	require.NoError(t, err)
	assert.Len(t, texts, 1)
}

func TestMessagesAdapterNotInstalled(t *testing.T) {
	f := newFixture(t)
	reg := adapters.NewRegistry()
	f.store.registry = reg
	f.seed(t)

	_, err := f.store.Messages(context.Background(), Spec{})
	assert.True(t, errors.Is(err, adapters.ErrAdapterNotInstalled), "err = %v", err)
}

func TestCount(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	spec, err := Filter{UserIDs: []string{"A"}}.Build()
	require.NoError(t, err)
	n, err := f.store.Count(context.Background(), spec)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func mockStore(t *testing.T, dialect internal.Dialect) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Store{db: &internal.DB{DB: db, Dialect: dialect}, registry: adapters.Default}, mock
}

func TestInsertFailureRollsBack(t *testing.T) {
	store, mock := mockStore(t, internal.DialectSQLite)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO message_records").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	rec := &MessageRecord{SessionRef: 1, Time: t0, Kind: KindMessage}
	err := store.Insert(context.Background(), rec)
	var storageErr *internal.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "insert", storageErr.Op)
	assert.Zero(t, rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertCommitFailure(t *testing.T) {
	store, mock := mockStore(t, internal.DialectSQLite)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO message_records").
		WithArgs(int64(1), "2024-03-01 12:00:00.000000", "message_sent", "m1", "[]", "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	rec := &MessageRecord{SessionRef: 1, Time: t0, Kind: KindMessageSent, MessageID: "m1"}
	err := store.Insert(context.Background(), rec)
	require.Error(t, err)
	assert.Zero(t, rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordsQueryFailure(t *testing.T) {
	store, mock := mockStore(t, internal.DialectSQLite)
	mock.ExpectQuery("SELECT r.id").WillReturnError(errors.New("connection lost"))

	_, err := store.Records(context.Background(), Spec{})
	var storageErr *internal.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "select", storageErr.Op)
}

func TestPostgresPlaceholders(t *testing.T) {
	store, mock := mockStore(t, internal.DialectPostgres)
	spec, err := Filter{SelfIDs: []string{"bot"}, Scopes: []string{"qq", "kook"}}.Build()
	require.NoError(t, err)

	mock.ExpectQuery(`WHERE s\.self_id = \$1 AND s\.scope IN \(\$2, \$3\)`).
		WithArgs("bot", "qq", "kook").
		WillReturnRows(sqlmock.NewRows([]string{"plain_text"}).AddRow("hello"))

	texts, err := store.PlainTexts(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, texts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
