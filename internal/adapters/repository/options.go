package repository

import (
	"time"

	"github.com/google/uuid"
)

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithClock sets the time source used for creation dates.
func WithClock(now func() time.Time) Option {
	return func(s *MemStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the uuid-based id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *MemStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithChatHistory seeds user chat records.
func WithChatHistory(records ...ChatRecord) Option {
	return func(s *MemStore) {
		s.chats = append(s.chats, records...)
	}
}

func newUUID() string {
	return uuid.NewString()
}
