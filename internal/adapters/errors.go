package adapters

import (
	"errors"
	"fmt"
)

var (
	// ErrAdapterNotSupported matches values outside the known adapter set.
	ErrAdapterNotSupported = errors.New("adapter not supported")
	// ErrAdapterNotInstalled matches known adapters with no registered codec.
	ErrAdapterNotInstalled = errors.New("adapter not installed")
	// ErrNotMessageEvent is returned by resolvers for payloads that carry no message.
	ErrNotMessageEvent = errors.New("not a message event")
)

// AdapterNotSupportedError reports an input that names no known adapter
type AdapterNotSupportedError struct {
	Adapter string
}

func (e *AdapterNotSupportedError) Error() string {
	return fmt.Sprintf("adapter not supported: %q", e.Adapter)
}

func (e *AdapterNotSupportedError) Is(target error) bool {
	return target == ErrAdapterNotSupported
}

// AdapterNotInstalledError reports a known adapter whose package is not linked in
type AdapterNotInstalledError struct {
	Adapter Key
	// What is missing, "codec" or "resolver".
	Component string
}

func (e *AdapterNotInstalledError) Error() string {
	component := e.Component
	if component == "" {
		component = "codec"
	}
	return fmt.Sprintf("adapter not installed: no %s for %s", component, e.Adapter)
}

func (e *AdapterNotInstalledError) Is(target error) bool {
	return target == ErrAdapterNotInstalled
}

// SchemaDriftError is returned when a stored message no longer matches its
// adapter's segment schema
type SchemaDriftError struct {
	Adapter Key
	Err     error
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("stored message does not match %s schema: %v", e.Adapter, e.Err)
}

func (e *SchemaDriftError) Unwrap() error {
	return e.Err
}
