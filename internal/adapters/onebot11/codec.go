package onebot11

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/iksnae/chat-recorder/internal/adapters"
	"github.com/iksnae/chat-recorder/internal/blobcache"
	"github.com/iksnae/chat-recorder/internal/message"
)

const segmentSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["type", "data"],
		"properties": {
			"type": {"type": "string"},
			"data": {"type": "object"}
		},
		"allOf": [
			{"if": {"properties": {"type": {"const": "text"}}}, "then": {"properties": {"data": {"required": ["text"]}}}},
			{"if": {"properties": {"type": {"enum": ["image", "record", "video"]}}}, "then": {"properties": {"data": {"required": ["file"]}}}},
			{"if": {"properties": {"type": {"enum": ["face", "reply", "forward"]}}}, "then": {"properties": {"data": {"required": ["id"]}}}},
			{"if": {"properties": {"type": {"const": "at"}}}, "then": {"properties": {"data": {"required": ["qq"]}}}}
		]
	}
}`

var binaryKinds = map[string]blobcache.Kind{
	"image":  blobcache.Images,
	"record": blobcache.Records,
	"video":  blobcache.Videos,
}

const base64Scheme = "base64://"

// Codec stores OneBot V11 messages, moving inline base64 media into the blob cache
var Codec = adapters.MustSchemaCodec(adapters.OneBotV11, segmentSchema, buildMessage,
	adapters.WithSerializeHook(cacheBinary))

func buildMessage(segs []message.Segment) (Message, error) {
	return Message(segs), nil
}

// cacheBinary replaces base64:// payloads with blob cache references
func cacheBinary(ctx context.Context, segs []message.Segment) ([]message.Segment, error) {
	var store blobcache.Store
	for i, seg := range segs {
		kind, ok := binaryKinds[seg.Type]
		if !ok {
			continue
		}
		file := message.String(seg.Data, "file")
		if !strings.HasPrefix(file, base64Scheme) {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(file, base64Scheme))
		if err != nil {
			return nil, fmt.Errorf("invalid base64 %s segment: %w", seg.Type, err)
		}
		if store == nil {
			if store, err = blobcache.FromContext(ctx); err != nil {
				return nil, err
			}
		}
		ref, err := store.Put(ctx, kind, data)
		if err != nil {
			return nil, fmt.Errorf("failed to cache %s segment: %w", seg.Type, err)
		}
		segs[i].Data["file"] = ref
	}
	return segs, nil
}
