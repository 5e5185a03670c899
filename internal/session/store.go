package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iksnae/chat-recorder/internal"
)

// Store assigns and resolves stable integer references for sessions
type Store interface {
	// ResolveOrCreate returns the reference for s, creating it on first sight.
	ResolveOrCreate(ctx context.Context, s Session) (int64, error)
	// Lookup returns the session stored under ref.
	Lookup(ctx context.Context, ref int64) (Session, error)
}

// ErrNotFound is returned by Lookup for unknown references
var ErrNotFound = errors.New("session not found")

// TableName is the table holding session tuples
const TableName = "sessions"

// SQLStore keeps sessions in the relational store next to the records
type SQLStore struct {
	db *internal.DB
}

// NewSQLStore creates a SQLStore and ensures its table exists
func NewSQLStore(ctx context.Context, db *internal.DB) (*SQLStore, error) {
	s := &SQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.db.Dialect == internal.DialectPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}
	query := `
	CREATE TABLE IF NOT EXISTS ` + TableName + ` (
		` + idColumn + `,
		self_id TEXT NOT NULL,
		adapter TEXT NOT NULL,
		scope TEXT NOT NULL,
		scene_type INTEGER NOT NULL,
		scene_id TEXT NOT NULL,
		parent_scene_type INTEGER NOT NULL DEFAULT -1,
		parent_scene_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL,
		UNIQUE (self_id, adapter, scope, scene_type, scene_id, parent_scene_type, parent_scene_id, user_id)
	)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return &internal.StorageError{Table: TableName, Op: "migrate", Err: err}
	}
	return nil
}

// ResolveOrCreate upserts the tuple and returns its id
func (s *SQLStore) ResolveOrCreate(ctx context.Context, sess Session) (int64, error) {
	if err := sess.Validate(); err != nil {
		return 0, err
	}
	parentType, parentID := parentColumns(sess.Scene)
	args := []any{
		sess.SelfID, sess.Adapter, sess.Scope,
		int(sess.Scene.Type), sess.Scene.ID, parentType, parentID,
		sess.User,
	}

	insert := s.db.Dialect.Rebind(`INSERT INTO ` + TableName + `
		(self_id, adapter, scope, scene_type, scene_id, parent_scene_type, parent_scene_id, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`)
	if _, err := s.db.ExecContext(ctx, insert, args...); err != nil {
		return 0, &internal.StorageError{Table: TableName, Op: "upsert", Err: err}
	}

	query := s.db.Dialect.Rebind(`SELECT id FROM ` + TableName + `
		WHERE self_id = ? AND adapter = ? AND scope = ?
		AND scene_type = ? AND scene_id = ? AND parent_scene_type = ? AND parent_scene_id = ?
		AND user_id = ?`)
	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, &internal.StorageError{Table: TableName, Op: "select", Err: err}
	}
	return id, nil
}

// Lookup loads a session by reference
func (s *SQLStore) Lookup(ctx context.Context, ref int64) (Session, error) {
	query := s.db.Dialect.Rebind(`SELECT self_id, adapter, scope, scene_type, scene_id,
		parent_scene_type, parent_scene_id, user_id
		FROM ` + TableName + ` WHERE id = ?`)

	var (
		sess       Session
		sceneType  int
		sceneID    string
		parentType int
		parentID   string
	)
	err := s.db.QueryRowContext(ctx, query, ref).Scan(
		&sess.SelfID, &sess.Adapter, &sess.Scope,
		&sceneType, &sceneID, &parentType, &parentID,
		&sess.User,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %d", ErrNotFound, ref)
	}
	if err != nil {
		return Session{}, &internal.StorageError{Table: TableName, Op: "select", Err: err}
	}
	sess.Scene = sceneFromColumns(sceneType, sceneID, parentType, parentID)
	return sess, nil
}

// ScanScene rebuilds a scene from the flattened columns of a joined row
func ScanScene(sceneType int, sceneID string, parentType int, parentID string) Scene {
	return sceneFromColumns(sceneType, sceneID, parentType, parentID)
}
