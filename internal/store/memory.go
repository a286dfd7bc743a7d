package store

import (
	"context"
	"sync"
	"time"

	"github.com/zhouzirui/gemini-chat/backend/internal/model/chat"
)

// Memory keeps archived transcripts in process. It outlives individual
// sessions but not the process; Prune bounds its size.
type Memory struct {
	mu       sync.RWMutex
	turns    map[string][]chat.Turn
	lastSeen map[string]time.Time
}

// NewMemory returns an empty in-memory archive.
func NewMemory() *Memory {
	return &Memory{
		turns:    make(map[string][]chat.Turn),
		lastSeen: make(map[string]time.Time),
	}
}

// Append stores turn at the end of the session's transcript.
func (s *Memory) Append(_ context.Context, sessionID string, turn chat.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[sessionID] = append(s.turns[sessionID], turn)
	if turn.CreatedAt.After(s.lastSeen[sessionID]) {
		s.lastSeen[sessionID] = turn.CreatedAt
	}
	return nil
}

// Load returns a copy of the session's transcript.
func (s *Memory) Load(_ context.Context, sessionID string) ([]chat.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[sessionID]
	entries := make([]chat.Entry, 0, len(turns))
	for _, turn := range turns {
		entries = append(entries, turn)
	}
	return entries, nil
}

// Prune drops every transcript whose newest turn is older than before and
// returns how many were dropped.
func (s *Memory) Prune(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, seen := range s.lastSeen {
		if seen.Before(before) {
			delete(s.turns, id)
			delete(s.lastSeen, id)
			dropped++
		}
	}
	return dropped
}

// Sessions returns the number of archived transcripts.
func (s *Memory) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Close is a no-op.
func (s *Memory) Close() error {
	return nil
}
