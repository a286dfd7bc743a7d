package ai

import (
	"context"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	chatservice "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
)

// Ark opens sessions on a Volcengine Ark model through an eino chain. Ark is
// stateless, so each session keeps its own history.
type Ark struct {
	baseURL  string
	region   string
	newModel func(ctx context.Context, cfg chatservice.SessionConfig) (model.BaseChatModel, error)
}

// NewArk returns a connector for the Ark endpoint at baseURL.
func NewArk(baseURL, region string) *Ark {
	a := &Ark{baseURL: baseURL, region: region}
	a.newModel = a.chatModel
	return a
}

// Connect compiles a history-aware chain over a fresh Ark chat model.
func (a *Ark) Connect(ctx context.Context, cfg chatservice.SessionConfig) (chatservice.RemoteSession, error) {
	chatModel, err := a.newModel(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create ark chat model")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "compile ark chat chain")
	}
	return &arkSession{chain: runnable}, nil
}

func (a *Ark) chatModel(ctx context.Context, cfg chatservice.SessionConfig) (model.BaseChatModel, error) {
	temperature := cfg.Params.Temperature
	topP := cfg.Params.TopP
	maxTokens := int(cfg.Params.MaxOutputTokens)

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     a.baseURL,
		Region:      a.region,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		TopP:        &topP,
	})
	if err != nil {
		return nil, err
	}
	return chatModel, nil
}

type arkSession struct {
	chain   compose.Runnable[map[string]any, *schema.Message]
	history []*schema.Message
}

func (s *arkSession) Send(ctx context.Context, text string) (string, error) {
	reply, err := s.chain.Invoke(ctx, map[string]any{
		"history": s.history,
		"query":   text,
	})
	if err != nil {
		return "", errors.Wrap(err, "run ark chat chain")
	}
	if reply == nil {
		return "", errors.New("ark returned no message")
	}

	s.history = append(s.history, schema.UserMessage(text), schema.AssistantMessage(reply.Content, nil))
	return reply.Content, nil
}
