package adapters

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/iksnae/chat-recorder/internal/message"
)

// Registry maps adapters to their codecs and session resolvers
type Registry struct {
	mu        sync.RWMutex
	codecs    map[Key]Codec
	resolvers map[Key]Resolver
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		codecs:    make(map[Key]Codec),
		resolvers: make(map[Key]Resolver),
	}
}

// Default is populated by the init functions of the linked adapter packages
var Default = NewRegistry()

// MustRegister adds an adapter's codec and resolver to Default
func MustRegister(codec Codec, resolver Resolver) {
	if err := Default.Register(codec); err != nil {
		panic(err)
	}
	if err := Default.RegisterResolver(codec.Adapter(), resolver); err != nil {
		panic(err)
	}
}

// Register installs codec under its adapter key
func (r *Registry) Register(codec Codec) error {
	key := codec.Adapter()
	if !key.IsKnown() {
		return &AdapterNotSupportedError{Adapter: string(key)}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.codecs[key]; dup {
		return fmt.Errorf("codec for %s registered twice", key)
	}
	r.codecs[key] = codec
	return nil
}

// RegisterResolver installs the session resolver for key
func (r *Registry) RegisterResolver(key Key, resolver Resolver) error {
	if !key.IsKnown() {
		return &AdapterNotSupportedError{Adapter: string(key)}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.resolvers[key]; dup {
		return fmt.Errorf("resolver for %s registered twice", key)
	}
	r.resolvers[key] = resolver
	return nil
}

// Unregister removes everything registered for key
func (r *Registry) Unregister(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codecs, key)
	delete(r.resolvers, key)
}

// Resolve maps a Bot, Key or adapter name onto a known Key
func (r *Registry) Resolve(v any) (Key, error) {
	var name string
	switch t := v.(type) {
	case Key:
		if t.IsKnown() {
			return t, nil
		}
		name = string(t)
	case string:
		name = t
	case Bot:
		name = t.Adapter()
	case nil:
		return "", &AdapterNotSupportedError{Adapter: "<nil>"}
	default:
		return "", &AdapterNotSupportedError{Adapter: fmt.Sprintf("%T", v)}
	}
	key, ok := ParseKey(name)
	if !ok {
		return "", &AdapterNotSupportedError{Adapter: name}
	}
	return key, nil
}

// Codec returns the codec installed for v
func (r *Registry) Codec(v any) (Codec, error) {
	key, err := r.Resolve(v)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	codec, ok := r.codecs[key]
	r.mu.RUnlock()
	if !ok {
		return nil, &AdapterNotInstalledError{Adapter: key, Component: "codec"}
	}
	return codec, nil
}

// ResolverFor returns the session resolver installed for v
func (r *Registry) ResolverFor(v any) (Resolver, error) {
	key, err := r.Resolve(v)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	resolver, ok := r.resolvers[key]
	r.mu.RUnlock()
	if !ok {
		return nil, &AdapterNotInstalledError{Adapter: key, Component: "resolver"}
	}
	return resolver, nil
}

// Serialize encodes msg with the codec of adapter v
func (r *Registry) Serialize(ctx context.Context, v any, msg message.Message) (message.JSONMsg, error) {
	codec, err := r.Codec(v)
	if err != nil {
		return nil, err
	}
	return codec.Serialize(ctx, msg)
}

// Deserialize decodes stored with the codec of adapter v
func (r *Registry) Deserialize(v any, stored message.JSONMsg) (message.Message, error) {
	codec, err := r.Codec(v)
	if err != nil {
		return nil, err
	}
	return codec.Deserialize(stored)
}

// Installed lists adapters with a codec, in Known order
func (r *Registry) Installed() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]Key, 0, len(r.codecs))
	for key := range r.codecs {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return knownIndex(keys[i]) < knownIndex(keys[j]) })
	return keys
}

// IsInstalled reports whether a codec is registered for key
func (r *Registry) IsInstalled(key Key) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.codecs[key]
	return ok
}

func knownIndex(key Key) int {
	for i, known := range Known {
		if known == key {
			return i
		}
	}
	return len(Known)
}
