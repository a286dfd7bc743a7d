package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultSweepInterval = time.Minute

// Registry hands out one Manager per browser session.
type Registry struct {
	connector Connector
	cfg       SessionConfig
	archive   Archive
	idleTTL   time.Duration
	retention time.Duration

	mu       sync.RWMutex
	managers map[string]*Manager
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithArchive persists every turn to a and hydrates new Managers from it.
func WithArchive(a Archive) RegistryOption {
	return func(r *Registry) {
		r.archive = a
	}
}

// WithIdleTTL evicts Managers idle for longer than ttl. Zero disables eviction.
func WithIdleTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		r.idleTTL = ttl
	}
}

// WithArchiveRetention makes Sweep prune archived transcripts untouched for
// longer than d, for archives implementing Pruner. Zero keeps them forever.
func WithArchiveRetention(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.retention = d
	}
}

// NewRegistry builds an empty registry. Every Manager it creates shares
// connector and cfg but nothing else.
func NewRegistry(connector Connector, cfg SessionConfig, opts ...RegistryOption) *Registry {
	r := &Registry{
		connector: connector,
		cfg:       cfg,
		managers:  make(map[string]*Manager),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the Manager for sessionID, creating it on first use. Every call
// counts as activity for idle eviction.
func (r *Registry) Get(ctx context.Context, sessionID string) *Manager {
	r.mu.RLock()
	m, ok := r.managers[sessionID]
	r.mu.RUnlock()
	if ok {
		m.Touch()
		return m
	}

	fresh := NewManager(sessionID, r.connector, r.cfg)
	fresh.archive = r.archive
	if r.archive != nil {
		entries, err := r.archive.Load(ctx, sessionID)
		if err != nil {
			log.Warn().Err(err).Str("session", sessionID).Msg("failed to load archived transcript, starting empty")
		} else if len(entries) > 0 {
			fresh.hydrate(entries)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.managers[sessionID]; ok {
		existing.Touch()
		return existing
	}
	r.managers[sessionID] = fresh
	log.Debug().Str("session", sessionID).Int("entries", fresh.Len()).Msg("session created")
	return fresh
}

// Len returns the number of live Managers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.managers)
}

// Sweep drops Managers idle since before now minus the idle TTL and returns
// how many were removed. Archived transcripts are pruned only when a
// retention is set.
func (r *Registry) Sweep(now time.Time) int {
	r.pruneArchive(now)

	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, m := range r.managers {
		if m.LastActive().Before(cutoff) {
			delete(r.managers, id)
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Int("remaining", len(r.managers)).Msg("evicted idle sessions")
	}
	return removed
}

func (r *Registry) pruneArchive(now time.Time) {
	if r.retention <= 0 {
		return
	}
	p, ok := r.archive.(Pruner)
	if !ok {
		return
	}
	if dropped := p.Prune(now.Add(-r.retention)); dropped > 0 {
		log.Info().Int("dropped", dropped).Msg("pruned archived transcripts")
	}
}

// Run sweeps periodically until ctx is done.
func (r *Registry) Run(ctx context.Context) error {
	if r.idleTTL <= 0 {
		<-ctx.Done()
		return nil
	}

	interval := r.idleTTL / 4
	if interval > defaultSweepInterval || interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			r.Sweep(t)
		}
	}
}
