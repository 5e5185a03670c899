package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/iksnae/chat-recorder/internal/message"
)

// Codec converts between an adapter's native message and the stored JSONMsg
type Codec interface {
	Adapter() Key
	Serialize(ctx context.Context, msg message.Message) (message.JSONMsg, error)
	Deserialize(stored message.JSONMsg) (message.Message, error)
}

// SerializeHook rewrites native segments before they are projected for storage
type SerializeHook func(ctx context.Context, segs []message.Segment) ([]message.Segment, error)

// CodecOption configures a SchemaCodec
type CodecOption func(*codecOptions)

type codecOptions struct {
	hook SerializeHook
}

// WithSerializeHook installs a hook that runs on every Serialize
func WithSerializeHook(hook SerializeHook) CodecOption {
	return func(o *codecOptions) { o.hook = hook }
}

// SchemaCodec is the default codec: it stores segments verbatim and, on the
// way back, validates them against the adapter's segment schema before
// building the native message type M.
type SchemaCodec[M message.Message] struct {
	key    Key
	schema *jsonschema.Schema
	build  func([]message.Segment) (M, error)
	hook   SerializeHook
}

// NewSchemaCodec compiles schemaJSON (draft 2020-12) for adapter key
func NewSchemaCodec[M message.Message](key Key, schemaJSON string, build func([]message.Segment) (M, error), opts ...CodecOption) (*SchemaCodec[M], error) {
	var o codecOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := "https://chat-recorder.local/adapters/" + strings.ReplaceAll(strings.ToLower(string(key)), " ", "-") + ".schema.json"
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("%s segment schema load failed: %w", key, err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("%s segment schema compile failed: %w", key, err)
	}
	return &SchemaCodec[M]{key: key, schema: schema, build: build, hook: o.hook}, nil
}

// MustSchemaCodec is NewSchemaCodec for package init, panicking on a bad schema
func MustSchemaCodec[M message.Message](key Key, schemaJSON string, build func([]message.Segment) (M, error), opts ...CodecOption) *SchemaCodec[M] {
	codec, err := NewSchemaCodec(key, schemaJSON, build, opts...)
	if err != nil {
		panic(err)
	}
	return codec
}

func (c *SchemaCodec[M]) Adapter() Key { return c.key }

// Serialize projects the native segments, after the hook if one is set
func (c *SchemaCodec[M]) Serialize(ctx context.Context, msg message.Message) (message.JSONMsg, error) {
	if _, ok := msg.(M); !ok {
		return nil, fmt.Errorf("%s codec cannot serialize %T", c.key, msg)
	}
	segs := msg.Segments()
	if c.hook != nil {
		var err error
		if segs, err = c.hook(ctx, message.FromSegments(segs)); err != nil {
			return nil, fmt.Errorf("%s serialize hook: %w", c.key, err)
		}
	}
	return message.FromSegments(segs), nil
}

// Deserialize validates stored against the schema and rebuilds the native message
func (c *SchemaCodec[M]) Deserialize(stored message.JSONMsg) (message.Message, error) {
	if err := c.Validate(stored); err != nil {
		return nil, err
	}
	msg, err := c.build(message.FromSegments(stored))
	if err != nil {
		return nil, &SchemaDriftError{Adapter: c.key, Err: err}
	}
	return msg, nil
}

// Validate checks stored against the segment schema
func (c *SchemaCodec[M]) Validate(stored message.JSONMsg) error {
	data, err := json.Marshal(stored)
	if err != nil {
		return &SchemaDriftError{Adapter: c.key, Err: err}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return &SchemaDriftError{Adapter: c.key, Err: err}
	}
	if err := c.schema.Validate(doc); err != nil {
		return &SchemaDriftError{Adapter: c.key, Err: err}
	}
	return nil
}
