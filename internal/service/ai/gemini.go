package ai

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	chatservice "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
)

// Gemini opens chat sessions on the Gemini API. One client is built per API
// key and reused by every session.
type Gemini struct {
	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewGemini returns a connector with no clients yet.
func NewGemini() *Gemini {
	return &Gemini{clients: make(map[string]*genai.Client)}
}

// Connect creates a Gemini chat configured with cfg.Params.
func (g *Gemini) Connect(ctx context.Context, cfg chatservice.SessionConfig) (chatservice.RemoteSession, error) {
	client, err := g.client(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}

	chat, err := client.Chats.Create(ctx, cfg.Model, generateConfig(cfg.Params), nil)
	if err != nil {
		return nil, errors.Wrap(err, "create gemini chat")
	}

	log.Debug().Str("model", cfg.Model).Msg("gemini chat created")
	return &geminiSession{chat: chat}, nil
}

func (g *Gemini) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[apiKey]; ok {
		return c, nil
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}
	g.clients[apiKey] = c
	return c, nil
}

func generateConfig(p chatservice.GenerationParams) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.Temperature),
		TopP:            genai.Ptr(p.TopP),
		TopK:            genai.Ptr(float32(p.TopK)),
		MaxOutputTokens: p.MaxOutputTokens,
	}
}

type geminiSession struct {
	chat *genai.Chat
}

func (s *geminiSession) Send(ctx context.Context, text string) (string, error) {
	resp, err := s.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", errors.Wrap(err, "gemini send message")
	}
	return replyText(resp)
}

// replyText joins the text parts of the first candidate, skipping thoughts.
func replyText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	if b.Len() == 0 {
		return "", errors.New("gemini response had no text parts")
	}
	return b.String(), nil
}
