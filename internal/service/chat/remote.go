package chat

import (
	"context"
	"time"

	"github.com/zhouzirui/gemini-chat/backend/internal/model/chat"
)

// DefaultPrimingPrompt is sent once on every fresh remote session. Its reply
// is discarded.
const DefaultPrimingPrompt = "You are an assistant that answers questions and provides information based on given text"

// GenerationParams are the sampling settings applied to every remote session.
type GenerationParams struct {
	Temperature     float32
	TopP            float32
	TopK            int32
	MaxOutputTokens int32
}

// DefaultGenerationParams returns temperature 1.0, top-p 0.95, top-k 40 and
// 4096 output tokens.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		Temperature:     1.0,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 4096,
	}
}

// SessionConfig describes the remote session a Manager opens on first use.
type SessionConfig struct {
	APIKey        string
	Model         string
	PrimingPrompt string
	Params        GenerationParams
}

// RemoteSession is an established conversational context on the provider.
type RemoteSession interface {
	Send(ctx context.Context, text string) (string, error)
}

// Connector opens remote sessions.
type Connector interface {
	Connect(ctx context.Context, cfg SessionConfig) (RemoteSession, error)
}

// Archive keeps a durable copy of transcripts. Load may return
// chat.MalformedTurn entries for records that no longer validate.
type Archive interface {
	Append(ctx context.Context, sessionID string, turn chat.Turn) error
	Load(ctx context.Context, sessionID string) ([]chat.Entry, error)
}

// Pruner is implemented by archives that can drop transcripts whose newest
// turn is older than before.
type Pruner interface {
	Prune(before time.Time) int
}
