// Package ai implements remote chat sessions on top of provider SDKs.
package ai

import (
	"fmt"

	"github.com/zhouzirui/gemini-chat/backend/internal/config"
	chatservice "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
)

// NewConnector returns the connector for cfg.Provider.
func NewConnector(cfg config.AIConfig) (chatservice.Connector, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGemini(), nil
	case config.ProviderArk:
		return NewArk(cfg.ArkBaseURL, cfg.ArkRegion), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}

// SessionConfig assembles the settings every Manager opens its remote
// session with. The credential may be empty; Managers report that on first
// use.
func SessionConfig(aiCfg config.AIConfig, chatCfg config.ChatConfig) chatservice.SessionConfig {
	return chatservice.SessionConfig{
		APIKey:        aiCfg.Credential(),
		Model:         aiCfg.ModelName(),
		PrimingPrompt: chatCfg.PrimingPrompt,
		Params: chatservice.GenerationParams{
			Temperature:     float32(chatCfg.Temperature),
			TopP:            float32(chatCfg.TopP),
			TopK:            int32(chatCfg.TopK),
			MaxOutputTokens: int32(chatCfg.MaxOutputTokens),
		},
	}
}
