package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/printhub/vendor-ledger/pkg/enums"
)

// ErrNoDecoder is returned for an event type and version nobody registered.
var ErrNoDecoder = errors.New("no decoder registered")

// Decoder turns an envelope's data document into a typed payload.
type Decoder func(payload json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps (event type, version) to payload decoders so a
// consumer can accept several schema versions side by side.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[decoderKey]Decoder
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[decoderKey]Decoder)}
}

// Register adds a decoder. Versions start at 1 and each pair registers once.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder Decoder) error {
	if version < 1 || decoder == nil {
		return fmt.Errorf("invalid decoder registration for %s@v%d", eventType, version)
	}
	key := decoderKey{eventType: eventType, version: version}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.decoders[key]; taken {
		return fmt.Errorf("decoder for %s@v%d already registered", eventType, version)
	}
	r.decoders[key] = decoder
	return nil
}

// MustRegister is Register for static wiring at startup.
func (r *DecoderRegistry) MustRegister(eventType enums.OutboxEventType, version int, decoder Decoder) {
	if err := r.Register(eventType, version, decoder); err != nil {
		panic(err)
	}
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decoder, ok := r.decoders[decoderKey{eventType: eventType, version: version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for %s@v%d", ErrNoDecoder, eventType, version)
	}
	return decoder(payload)
}

// JSONDecoder decodes the payload into a T value.
func JSONDecoder[T any]() Decoder {
	return func(payload json.RawMessage) (any, error) {
		var out T
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// DecodeAs decodes through r and asserts the result is a T.
func DecodeAs[T any](r *DecoderRegistry, eventType enums.OutboxEventType, version int, payload json.RawMessage) (T, error) {
	var zero T
	decoded, err := r.Decode(eventType, version, payload)
	if err != nil {
		return zero, err
	}
	typed, ok := decoded.(T)
	if !ok {
		return zero, fmt.Errorf("decoder for %s@v%d returned %T", eventType, version, decoded)
	}
	return typed, nil
}
