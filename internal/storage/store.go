// Package storage is the best-effort key-value persistence layer behind every quiz feature.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Persisted keys. Callers pass these bare; the Store applies its namespace prefix.
const (
	KeyUser            = "user"
	KeySessionState    = "session-state"
	KeyLeaderboard     = "leaderboard"
	KeyDarkMode        = "dark-mode"
	KeyCustomQuestions = "custom-questions"
	KeyLastSettings    = "last-settings"
)

// ErrStorageUnavailable marks a durable backend that could not be reached. It is logged,
// never returned from Store methods.
var ErrStorageUnavailable = errors.New("durable storage unavailable")

// Backend is a raw byte-oriented key-value store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Options configures a Store.
type Options struct {
	KeyPrefix string
	// OnFailure is invoked with the failing operation name ("get", "set", "remove", "ping").
	OnFailure func(op string)
}

// Store serializes values as JSON on top of a Backend. Every operation is best-effort:
// failures are logged and swallowed, and an unreachable backend is replaced by memory.
type Store struct {
	backend   Backend
	memory    *MemoryBackend
	degraded  atomic.Bool
	warnOnce  sync.Once
	prefix    string
	onFailure func(op string)
	logger    zerolog.Logger
}

// New probes backend and returns a Store. A nil or unreachable backend degrades the Store
// to an in-memory map for its whole lifetime.
func New(ctx context.Context, backend Backend, logger zerolog.Logger, opts Options) *Store {
	s := &Store{
		backend:   backend,
		memory:    NewMemoryBackend(),
		prefix:    opts.KeyPrefix,
		onFailure: opts.OnFailure,
		logger:    logger.With().Str("component", "storage").Logger(),
	}
	if backend == nil {
		s.degrade(ErrStorageUnavailable)
		return s
	}
	if err := backend.Ping(ctx); err != nil {
		s.fail("ping")
		s.degrade(fmt.Errorf("%w: %v", ErrStorageUnavailable, err))
	}
	return s
}

// Degraded reports whether the Store fell back to memory.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (Value, bool) {
	data, ok, err := s.active().Get(ctx, s.prefix+key)
	if err != nil {
		s.fail("get")
		s.logger.Warn().Err(err).Str("key", key).Msg("storage read failed")
		return Value{}, false
	}
	if !ok {
		return Value{}, false
	}
	return Value{raw: data}, true
}

// Load decodes the value under key into dst. It reports false when the key is absent or
// the stored bytes do not decode into dst.
func (s *Store) Load(ctx context.Context, key string, dst any) bool {
	val, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	if err := val.Decode(dst); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("stored value is not decodable")
		return false
	}
	return true
}

// LoadString returns the text under key. A value that is not a JSON string comes back raw.
func (s *Store) LoadString(ctx context.Context, key string) (string, bool) {
	val, ok := s.Get(ctx, key)
	if !ok {
		return "", false
	}
	return val.String(), true
}

// Set stores value as JSON under key.
func (s *Store) Set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		s.fail("set")
		s.logger.Warn().Err(err).Str("key", key).Msg("storage encode failed")
		return
	}
	if err := s.active().Set(ctx, s.prefix+key, data); err != nil {
		s.fail("set")
		s.logger.Warn().Err(err).Str("key", key).Msg("storage write failed")
	}
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) {
	if err := s.active().Delete(ctx, s.prefix+key); err != nil {
		s.fail("remove")
		s.logger.Warn().Err(err).Str("key", key).Msg("storage remove failed")
	}
}

// Ping checks the backend currently in use.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.active().Ping(ctx); err != nil {
		s.fail("ping")
		return err
	}
	return nil
}

func (s *Store) active() Backend {
	if s.degraded.Load() {
		return s.memory
	}
	return s.backend
}

func (s *Store) degrade(err error) {
	s.degraded.Store(true)
	s.warnOnce.Do(func() {
		s.logger.Warn().Err(err).Msg("durable storage not available, using memory storage")
	})
}

func (s *Store) fail(op string) {
	if s.onFailure != nil {
		s.onFailure(op)
	}
}

// Value is a stored payload as read back from a Backend.
type Value struct {
	raw []byte
}

// Raw returns the stored bytes.
func (v Value) Raw() []byte {
	return v.raw
}

// Decode unmarshals the JSON payload into dst.
func (v Value) Decode(dst any) error {
	return json.Unmarshal(v.raw, dst)
}

// String returns the payload as text. A JSON string is unquoted; any other payload,
// including one that is not JSON at all, is returned unchanged.
func (v Value) String() string {
	var s string
	if err := json.Unmarshal(v.raw, &s); err == nil {
		return s
	}
	return string(v.raw)
}
