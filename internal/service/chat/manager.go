package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/gemini-chat/backend/internal/model/chat"
)

// Manager owns one user's transcript and the lazily created remote session.
// Submissions on one Manager run one at a time.
type Manager struct {
	id        string
	connector Connector
	cfg       SessionConfig
	archive   Archive

	// work serializes Submit; mu guards the fields below it.
	work       sync.Mutex
	mu         sync.RWMutex
	entries    []chat.Entry
	remote     RemoteSession
	lastActive time.Time
}

// NewManager creates an uninitialized Manager with an empty transcript.
func NewManager(id string, connector Connector, cfg SessionConfig) *Manager {
	return &Manager{
		id:         id,
		connector:  connector,
		cfg:        cfg,
		entries:    make([]chat.Entry, 0, 16),
		lastActive: time.Now(),
	}
}

// ID returns the session identifier.
func (m *Manager) ID() string {
	return m.id
}

// Initialized reports whether a remote session is active.
func (m *Manager) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.remote != nil
}

// Len returns the number of transcript entries, malformed ones included.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// LastActive returns the time the session was last used.
func (m *Manager) LastActive() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastActive
}

// Submit records userText, forwards it to the remote session and records the
// reply. The user turn is kept even when the call fails.
func (m *Manager) Submit(ctx context.Context, userText string) (string, error) {
	appended, err := m.submit(ctx, userText)
	if err != nil {
		return "", err
	}
	return appended[len(appended)-1].Text, nil
}

// SubmitTurns is Submit returning the turns this call appended, in display
// form. Turns appended by concurrent submissions are never included. On
// failure after the user turn was recorded it returns that turn with the error.
func (m *Manager) SubmitTurns(ctx context.Context, userText string) ([]chat.Turn, error) {
	appended, err := m.submit(ctx, userText)
	for i, turn := range appended {
		if turn.Role == chat.RoleAssistant {
			appended[i].Text = FormatReply(turn.Text)
		}
	}
	return appended, err
}

func (m *Manager) submit(ctx context.Context, userText string) ([]chat.Turn, error) {
	userTurn, err := chat.NewTurn(chat.RoleUser, userText)
	if err != nil {
		return nil, ErrEmptyMessage
	}

	m.work.Lock()
	defer m.work.Unlock()

	m.Touch()
	m.appendTurn(ctx, userTurn)
	appended := []chat.Turn{userTurn}

	remote, err := m.ensureRemote(ctx)
	if err != nil {
		log.Warn().Err(err).Str("session", m.id).Msg("remote session unavailable")
		return appended, err
	}

	reply, err := remote.Send(ctx, userText)
	if err != nil {
		log.Error().Err(err).Str("session", m.id).Msg("send failed")
		return appended, &ServiceError{Op: "send", Err: err}
	}

	assistantTurn, err := chat.NewTurn(chat.RoleAssistant, reply)
	if err != nil {
		return appended, &ServiceError{Op: "send", Err: errors.New("remote returned an empty reply")}
	}
	m.appendTurn(ctx, assistantTurn)

	log.Debug().Str("session", m.id).Int("turns", m.Len()).Int("reply_len", len(reply)).Msg("turn completed")
	return append(appended, assistantTurn), nil
}

// Render returns a restartable view of the transcript as it is at call time.
// Malformed entries are skipped; onSkip, if set, sees each of them.
func (m *Manager) Render(onSkip func(chat.MalformedTurn)) iter.Seq[chat.Turn] {
	m.mu.RLock()
	snapshot := slices.Clone(m.entries)
	m.mu.RUnlock()

	return func(yield func(chat.Turn) bool) {
		for _, entry := range snapshot {
			switch v := entry.(type) {
			case chat.Turn:
				if !yield(v) {
					return
				}
			case chat.MalformedTurn:
				log.Warn().Str("session", m.id).Int("position", v.Position).Str("reason", v.Reason).Msg("skipping malformed transcript entry")
				if onSkip != nil {
					onSkip(v)
				}
			}
		}
	}
}

// Turns collects Render with malformed entries dropped.
func (m *Manager) Turns() []chat.Turn {
	return slices.Collect(m.Render(nil))
}

// Transcript is a display-ready copy of a session's transcript.
type Transcript struct {
	SessionID string      `json:"sessionId"`
	Turns     []chat.Turn `json:"turns"`
	Warnings  []string    `json:"warnings,omitempty"`
}

// Snapshot renders the transcript with assistant replies formatted and one
// warning per skipped entry.
func (m *Manager) Snapshot() Transcript {
	t := Transcript{SessionID: m.id, Turns: []chat.Turn{}}
	for turn := range m.Render(func(mt chat.MalformedTurn) {
		t.Warnings = append(t.Warnings, fmt.Sprintf("Skipped chat entry %d: %s.", mt.Position, mt.Reason))
	}) {
		if turn.Role == chat.RoleAssistant {
			turn.Text = FormatReply(turn.Text)
		}
		t.Turns = append(t.Turns, turn)
	}
	return t
}

// FormatReply prepares assistant text for display.
func FormatReply(text string) string {
	return strings.TrimSpace(text)
}

func (m *Manager) ensureRemote(ctx context.Context) (RemoteSession, error) {
	m.mu.RLock()
	remote := m.remote
	m.mu.RUnlock()
	if remote != nil {
		return remote, nil
	}

	remote, err := m.initialize(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.remote = remote
	m.mu.Unlock()
	return remote, nil
}

func (m *Manager) initialize(ctx context.Context) (RemoteSession, error) {
	if strings.TrimSpace(m.cfg.APIKey) == "" {
		return nil, &ConfigError{Reason: "missing credential"}
	}
	if m.connector == nil {
		return nil, &ConfigError{Reason: "no remote service configured"}
	}

	remote, err := m.connector.Connect(ctx, m.cfg)
	if err != nil {
		return nil, &ServiceError{Op: "initialize", Err: err}
	}

	if m.cfg.PrimingPrompt != "" {
		if _, err := remote.Send(ctx, m.cfg.PrimingPrompt); err != nil {
			return nil, &ServiceError{Op: "initialize", Err: err}
		}
	}

	log.Info().Str("session", m.id).Str("model", m.cfg.Model).Msg("remote session initialized")
	return remote, nil
}

func (m *Manager) appendTurn(ctx context.Context, turn chat.Turn) {
	m.mu.Lock()
	m.entries = append(m.entries, turn)
	m.mu.Unlock()

	if m.archive == nil {
		return
	}
	if err := m.archive.Append(ctx, m.id, turn); err != nil {
		log.Warn().Err(err).Str("session", m.id).Str("turn", turn.ID).Msg("failed to archive turn")
	}
}

// Touch marks the session as active now.
func (m *Manager) Touch() {
	m.mu.Lock()
	m.lastActive = time.Now()
	m.mu.Unlock()
}

func (m *Manager) hydrate(entries []chat.Entry) {
	m.mu.Lock()
	m.entries = append(m.entries[:0], entries...)
	m.mu.Unlock()
}
