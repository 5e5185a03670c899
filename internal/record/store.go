package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iksnae/chat-recorder/internal"
	"github.com/iksnae/chat-recorder/internal/adapters"
	"github.com/iksnae/chat-recorder/internal/message"
	"github.com/iksnae/chat-recorder/internal/session"
)

// TableName is the table holding message records
const TableName = "message_records"

// Store appends records and materializes filtered views of them
type Store struct {
	db       *internal.DB
	registry *adapters.Registry
}

// Option configures a Store
type Option func(*Store)

// WithRegistry deserializes messages with r instead of adapters.Default
func WithRegistry(r *adapters.Registry) Option {
	return func(s *Store) { s.registry = r }
}

// NewStore creates a Store on db. The session table must exist first
// (session.NewSQLStore), since records reference it.
func NewStore(ctx context.Context, db *internal.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, registry: adapters.Default}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.db.Dialect == internal.DialectPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + TableName + ` (
			` + idColumn + `,
			session_id BIGINT NOT NULL REFERENCES ` + session.TableName + ` (id),
			time TEXT NOT NULL,
			kind TEXT NOT NULL,
			message_id TEXT NOT NULL,
			message TEXT NOT NULL,
			plain_text TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + TableName + `_session ON ` + TableName + ` (session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + TableName + `_time ON ` + TableName + ` (time)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &internal.StorageError{Table: TableName, Op: "migrate", Err: err}
		}
	}
	return nil
}

// Insert appends rec in its own transaction and sets rec.ID. The time is
// normalized to naive UTC before it is written.
func (s *Store) Insert(ctx context.Context, rec *MessageRecord) error {
	if rec.SessionRef == 0 {
		return &internal.StorageError{Table: TableName, Op: "insert", Err: errors.New("record has no session reference")}
	}
	if !rec.Kind.Valid() {
		return &internal.StorageError{Table: TableName, Op: "insert", Err: fmt.Errorf("unknown record kind: %q", rec.Kind)}
	}
	rec.Time = NaiveUTC(rec.Time)
	if rec.Message == nil {
		rec.Message = message.JSONMsg{}
	}
	data, err := message.Encode(rec.Message)
	if err != nil {
		return &internal.StorageError{Table: TableName, Op: "insert", Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &internal.StorageError{Table: TableName, Op: "insert", Err: err}
	}
	defer tx.Rollback()

	query := s.db.Dialect.Rebind(`INSERT INTO ` + TableName + `
		(session_id, time, kind, message_id, message, plain_text)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)
	var id int64
	err = tx.QueryRowContext(ctx, query,
		rec.SessionRef, FormatTime(rec.Time), string(rec.Kind), rec.MessageID, string(data), rec.PlainText,
	).Scan(&id)
	if err != nil {
		return &internal.StorageError{Table: TableName, Op: "insert", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &internal.StorageError{Table: TableName, Op: "insert", Err: err}
	}
	rec.ID = id
	return nil
}

const joinedColumns = `r.id, r.session_id, r.time, r.kind, r.message_id, r.message, r.plain_text,
	s.self_id, s.adapter, s.scope, s.scene_type, s.scene_id, s.parent_scene_type, s.parent_scene_id, s.user_id`

func (s *Store) selectQuery(columns string, spec Spec) (string, []any) {
	clause, args := spec.SQL()
	query := `SELECT ` + columns + `
		FROM ` + TableName + ` r
		JOIN ` + session.TableName + ` s ON s.id = r.session_id
		WHERE ` + clause + `
		ORDER BY r.id`
	return s.db.Dialect.Rebind(query), args
}

// Records returns the records matching spec in storage order
func (s *Store) Records(ctx context.Context, spec Spec) ([]MessageRecord, error) {
	query, args := s.selectQuery(joinedColumns, spec)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &internal.StorageError{Table: TableName, Op: "select", Err: err}
	}
	defer rows.Close()

	records := make([]MessageRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &internal.StorageError{Table: TableName, Op: "select", Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &internal.StorageError{Table: TableName, Op: "select", Err: err}
	}

	if spec.Where == nil {
		return records, nil
	}
	kept := records[:0]
	for i := range records {
		ok, err := spec.Where.Match(&records[i])
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, records[i])
		}
	}
	return kept, nil
}

func scanRecord(rows *sql.Rows) (MessageRecord, error) {
	var (
		rec        MessageRecord
		at         string
		kind       string
		data       string
		sceneType  int
		sceneID    string
		parentType int
		parentID   string
	)
	err := rows.Scan(
		&rec.ID, &rec.SessionRef, &at, &kind, &rec.MessageID, &data, &rec.PlainText,
		&rec.Session.SelfID, &rec.Session.Adapter, &rec.Session.Scope,
		&sceneType, &sceneID, &parentType, &parentID, &rec.Session.User,
	)
	if err != nil {
		return rec, err
	}
	if rec.Time, err = ParseTime(at); err != nil {
		return rec, err
	}
	if rec.Message, err = message.Decode([]byte(data)); err != nil {
		return rec, fmt.Errorf("record %d: %w", rec.ID, err)
	}
	rec.Kind = Kind(kind)
	rec.Session.Scene = session.ScanScene(sceneType, sceneID, parentType, parentID)
	return rec, nil
}

// Messages returns the native message of every matching record, each
// deserialized by the codec of its own adapter
func (s *Store) Messages(ctx context.Context, spec Spec) ([]message.Message, error) {
	type stored struct {
		adapter string
		msg     message.JSONMsg
	}
	var rows []stored

	if spec.Where != nil {
		records, err := s.Records(ctx, spec)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			rows = append(rows, stored{adapter: rec.Session.Adapter, msg: rec.Message})
		}
	} else {
		query, args := s.selectQuery("s.adapter, r.message", spec)
		err := s.queryRows(ctx, query, args, func(r *sql.Rows) error {
			var adapter, data string
			if err := r.Scan(&adapter, &data); err != nil {
				return err
			}
			msg, err := message.Decode([]byte(data))
			if err != nil {
				return err
			}
			rows = append(rows, stored{adapter: adapter, msg: msg})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	messages := make([]message.Message, 0, len(rows))
	for _, row := range rows {
		msg, err := s.registry.Deserialize(row.adapter, row.msg)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// PlainTexts returns the stored plain text of every matching record
func (s *Store) PlainTexts(ctx context.Context, spec Spec) ([]string, error) {
	if spec.Where != nil {
		records, err := s.Records(ctx, spec)
		if err != nil {
			return nil, err
		}
		texts := make([]string, len(records))
		for i, rec := range records {
			texts[i] = rec.PlainText
		}
		return texts, nil
	}

	texts := make([]string, 0)
	query, args := s.selectQuery("r.plain_text", spec)
	err := s.queryRows(ctx, query, args, func(r *sql.Rows) error {
		var text string
		if err := r.Scan(&text); err != nil {
			return err
		}
		texts = append(texts, text)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return texts, nil
}

// Count returns the number of rows matching the SQL part of spec
func (s *Store) Count(ctx context.Context, spec Spec) (int64, error) {
	clause, args := spec.SQL()
	query := s.db.Dialect.Rebind(`SELECT COUNT(*) FROM ` + TableName + ` r
		JOIN ` + session.TableName + ` s ON s.id = r.session_id
		WHERE ` + clause)
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, &internal.StorageError{Table: TableName, Op: "count", Err: err}
	}
	return n, nil
}

// queryRows runs query and hands each row to fn; rows are closed before it returns
func (s *Store) queryRows(ctx context.Context, query string, args []any, fn func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return &internal.StorageError{Table: TableName, Op: "select", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return &internal.StorageError{Table: TableName, Op: "select", Err: err}
		}
	}
	if err := rows.Err(); err != nil {
		return &internal.StorageError{Table: TableName, Op: "select", Err: err}
	}
	return nil
}
