package pagestate

import (
	"go.uber.org/zap"
)

// DefaultMaxBytes is the ceiling on an encoded envelope.
const DefaultMaxBytes = 5 << 20

// Slot is a single string value under one fixed key.
type Slot interface {
	Read() (string, bool, error)
	Write(value string) error
	Remove() error
}

// Store mirrors the cache into a Slot, refusing payloads over the ceiling.
// Slot and codec failures are logged and swallowed: remembered UI state is a
// convenience, so losing it must never surface to callers.
type Store struct {
	slot       Slot
	maxBytes   int
	logger     *zap.Logger
	onOversize func()
}

// NewStore wraps slot. A non-positive maxBytes uses DefaultMaxBytes.
// onOversize runs once for every write rejected as too large.
func NewStore(slot Slot, maxBytes int, logger *zap.Logger, onOversize func()) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		slot:       slot,
		maxBytes:   maxBytes,
		logger:     logger,
		onOversize: onOversize,
	}
}

// Persist encodes c and writes it unless it exceeds the ceiling.
// It reports whether the slot was written.
func (s *Store) Persist(c Cache) bool {
	encoded := Encode(c)
	if len(encoded) > s.maxBytes {
		s.logger.Warn("page state exceeds storage ceiling, skipping write",
			zap.Int("bytes", len(encoded)),
			zap.Int("max_bytes", s.maxBytes),
			zap.Int("pages", len(c)),
		)
		if s.onOversize != nil {
			s.onOversize()
		}
		return false
	}
	if err := s.slot.Write(encoded); err != nil {
		s.logger.Warn("persist page state", zap.Error(err))
		return false
	}
	return true
}

// Load reads the slot back. Missing or undecodable data yields an empty cache.
func (s *Store) Load() Cache {
	value, ok, err := s.slot.Read()
	if err != nil {
		s.logger.Warn("read page state", zap.Error(err))
		return Cache{}
	}
	if !ok {
		return Cache{}
	}
	c, ok := Decode(value)
	if !ok {
		s.logger.Warn("discarding undecodable page state", zap.Int("bytes", len(value)))
		return Cache{}
	}
	return c
}

// Clear removes the slot entirely.
func (s *Store) Clear() {
	if err := s.slot.Remove(); err != nil {
		s.logger.Warn("remove page state", zap.Error(err))
	}
}

// Size returns the encoded size of c in bytes.
func (s *Store) Size(c Cache) int {
	return len(Encode(c))
}
