package internal

import "fmt"

// StorageError represents errors talking to the relational store
type StorageError struct {
	Table string
	Op    string // "open", "migrate", "insert", "select", "upsert"
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ParseError represents errors decoding an adapter payload
type ParseError struct {
	Source string // adapter name
	Key    string // api name, event kind or file path
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error [%s] %s: %v", e.Source, e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IngestError represents a failed ingestion attempt at a given stage
type IngestError struct {
	Stage   string // "resolve", "serialize", "persist"
	Adapter string
	Err     error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest error [%s] %s: %v", e.Adapter, e.Stage, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
