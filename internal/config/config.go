package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	chatservice "github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
)

const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Chat    ChatConfig
	Store   StoreConfig
	Session SessionConfig
	Log     LogConfig
}

// Load 从环境变量加载配置，CHAT_CONFIG_FILE 指向的 YAML 文件可覆盖 chat 部分。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}
	if store.Retention > 0 && session.IdleTTL > 0 && store.Retention < session.IdleTTL {
		return nil, fmt.Errorf("STORE_RETENTION %s must not be shorter than SESSION_IDLE_TTL %s", store.Retention, session.IdleTTL)
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Chat:    chat,
		Store:   store,
		Session: session,
		Log:     loadLogConfig(),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。凭证缺失不会导致启动失败。
type AIConfig struct {
	Provider     string
	GoogleAPIKey string
	GeminiModel  string
	ArkAPIKey    string
	ArkModel     string
	ArkBaseURL   string
	ArkRegion    string
}

// Credential 返回当前 provider 使用的密钥。
func (c AIConfig) Credential() string {
	if c.Provider == ProviderArk {
		return c.ArkAPIKey
	}
	return c.GoogleAPIKey
}

// ModelName 返回当前 provider 使用的模型。
func (c AIConfig) ModelName() string {
	if c.Provider == ProviderArk {
		return c.ArkModel
	}
	return c.GeminiModel
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Credential() != ""
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderGemini))
	if provider != ProviderGemini && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid LLM_PROVIDER value %q", provider)
	}

	return AIConfig{
		Provider:     provider,
		GoogleAPIKey: strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")),
		GeminiModel:  getEnvOrDefault("GEMINI_MODEL_NAME", "gemini-1.5-flash"),
		ArkAPIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		ArkModel:     strings.TrimSpace(os.Getenv("ARK_MODEL")),
		ArkBaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		ArkRegion:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
	}, nil
}

// ChatConfig 描述页面文案、预热提示词和生成参数。
type ChatConfig struct {
	Title           string  `yaml:"title"`
	Placeholder     string  `yaml:"placeholder"`
	PrimingPrompt   string  `yaml:"priming_prompt"`
	Temperature     float64 `yaml:"temperature"`
	TopP            float64 `yaml:"top_p"`
	TopK            int     `yaml:"top_k"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
}

// DefaultChatConfig 返回默认的聊天配置。
func DefaultChatConfig() ChatConfig {
	params := chatservice.DefaultGenerationParams()
	return ChatConfig{
		Title:           "Chatbot Assistant",
		Placeholder:     "Ask a question or paste some text...",
		PrimingPrompt:   chatservice.DefaultPrimingPrompt,
		Temperature:     float64(params.Temperature),
		TopP:            float64(params.TopP),
		TopK:            int(params.TopK),
		MaxOutputTokens: int(params.MaxOutputTokens),
	}
}

type chatFile struct {
	Chat ChatConfig `yaml:"chat"`
}

func loadChatConfig() (ChatConfig, error) {
	cfg := DefaultChatConfig()

	if path := strings.TrimSpace(os.Getenv("CHAT_CONFIG_FILE")); path != "" {
		if err := applyChatFile(&cfg, path); err != nil {
			return ChatConfig{}, err
		}
	}

	if title := strings.TrimSpace(os.Getenv("CHAT_TITLE")); title != "" {
		cfg.Title = title
	}

	temperature, err := parseOptionalFloatEnv("CHAT_TEMPERATURE")
	if err != nil {
		return ChatConfig{}, err
	}
	if temperature != nil {
		cfg.Temperature = *temperature
	}

	topP, err := parseOptionalFloatEnv("CHAT_TOP_P")
	if err != nil {
		return ChatConfig{}, err
	}
	if topP != nil {
		cfg.TopP = *topP
	}

	topK, err := parseOptionalIntEnv("CHAT_TOP_K")
	if err != nil {
		return ChatConfig{}, err
	}
	if topK != nil {
		cfg.TopK = *topK
	}

	maxTokens, err := parseOptionalIntEnv("CHAT_MAX_OUTPUT_TOKENS")
	if err != nil {
		return ChatConfig{}, err
	}
	if maxTokens != nil {
		cfg.MaxOutputTokens = *maxTokens
	}

	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return ChatConfig{}, fmt.Errorf("temperature %.2f out of range [0, 2]", cfg.Temperature)
	}
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		return ChatConfig{}, fmt.Errorf("top_p %.2f out of range (0, 1]", cfg.TopP)
	}
	if cfg.TopK < 1 {
		return ChatConfig{}, fmt.Errorf("top_k must be positive, got %d", cfg.TopK)
	}
	if cfg.MaxOutputTokens < 1 {
		return ChatConfig{}, fmt.Errorf("max_output_tokens must be positive, got %d", cfg.MaxOutputTokens)
	}

	return cfg, nil
}

// applyChatFile 用 YAML 文件中出现的字段覆盖 cfg。
func applyChatFile(cfg *ChatConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read CHAT_CONFIG_FILE: %w", err)
	}

	file := chatFile{Chat: *cfg}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse CHAT_CONFIG_FILE %s: %w", path, err)
	}
	*cfg = file.Chat
	return nil
}

// StoreConfig 描述会话记录的持久化方式。Retention 只对内存存储生效，0 表示永久保留。
type StoreConfig struct {
	Driver    string
	DSN       string
	Retention time.Duration
}

func loadStoreConfig() (StoreConfig, error) {
	retention := 7 * 24 * time.Hour
	if raw := strings.TrimSpace(os.Getenv("STORE_RETENTION")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return StoreConfig{}, fmt.Errorf("invalid STORE_RETENTION value %q: %w", raw, err)
		}
		retention = parsed
	}

	return StoreConfig{
		Driver:    strings.ToLower(getEnvOrDefault("STORE_DRIVER", "memory")),
		DSN:       getEnvOrDefault("STORE_DSN", "file:chat.db"),
		Retention: retention,
	}, nil
}

// SessionConfig 描述浏览器会话的生命周期。
type SessionConfig struct {
	CookieName string
	IdleTTL    time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	ttl := 24 * time.Hour
	if raw := strings.TrimSpace(os.Getenv("SESSION_IDLE_TTL")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return SessionConfig{}, fmt.Errorf("invalid SESSION_IDLE_TTL value %q: %w", raw, err)
		}
		ttl = parsed
	}

	return SessionConfig{
		CookieName: getEnvOrDefault("SESSION_COOKIE_NAME", "chat_session"),
		IdleTTL:    ttl,
	}, nil
}

// LogConfig 描述日志级别和输出格式。
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "console")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
