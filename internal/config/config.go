// Package config handles shopadvisor configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/shopadvisor/config.yaml, /etc/shopadvisor/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "shopadvisor", "config.yaml"))
	}

	paths = append(paths, "/etc/shopadvisor/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all shopadvisor configuration. Everything is read-only
// after startup; changing the active provider requires a restart.
type Config struct {
	Telegram     TelegramConfig   `yaml:"telegram"`
	Provider     string           `yaml:"provider"` // yandexgpt, openai, ollama, or "" for fallback-only
	YandexGPT    YandexGPTConfig  `yaml:"yandexgpt"`
	OpenAI       OpenAIConfig     `yaml:"openai"`
	Ollama       OllamaConfig     `yaml:"ollama"`
	Generation   GenerationConfig `yaml:"generation"`
	Context      ContextConfig    `yaml:"context"`
	Fallback     FallbackConfig   `yaml:"fallback"`
	SystemPrompt string           `yaml:"system_prompt"`
	DatabasePath string           `yaml:"database_path"`
	LogLevel     string           `yaml:"log_level"`
}

// TelegramConfig defines the bot transport settings.
type TelegramConfig struct {
	Token string `yaml:"token"`
	// PollTimeoutSec is the long-poll timeout for getUpdates (default 30).
	PollTimeoutSec int `yaml:"poll_timeout_sec"`
}

// YandexGPTConfig defines Yandex Foundation Models API settings.
type YandexGPTConfig struct {
	APIKey   string `yaml:"api_key"`
	FolderID string `yaml:"folder_id"`
	Model    string `yaml:"model"`    // model name inside the folder, e.g. "yandexgpt"
	Endpoint string `yaml:"endpoint"` // override for tests; default is the public completion URL
}

// OpenAIConfig defines OpenAI-compatible chat completions settings.
type OpenAIConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"` // any /v1/chat/completions-compatible URL
}

// OllamaConfig defines the local model settings.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// GenerationConfig holds provider-independent generation parameters.
type GenerationConfig struct {
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	// TimeoutSec bounds a single provider call, enforced by the adapter.
	TimeoutSec int `yaml:"timeout_sec"`
}

// Timeout returns the per-call deadline as a duration.
func (g GenerationConfig) Timeout() time.Duration {
	if g.TimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(g.TimeoutSec) * time.Second
}

// ContextConfig bounds the conversation window sent to providers.
type ContextConfig struct {
	// MaxTurns is how many recent history turns to include (oldest dropped first).
	MaxTurns int `yaml:"max_turns"`
	// MaxTurnChars caps each history turn's text.
	MaxTurnChars int `yaml:"max_turn_chars"`
	// MaxMessageChars caps the current inbound message's text.
	MaxMessageChars int `yaml:"max_message_chars"`
}

// FallbackConfig defines the keyword-matched canned responder.
type FallbackConfig struct {
	Rules []FallbackRule `yaml:"rules"`
	// Generic is returned when no rule matches. Must be non-empty;
	// the default apology is used otherwise.
	Generic string `yaml:"generic"`
}

// FallbackRule maps message keywords to one canned reply.
type FallbackRule struct {
	Keywords []string `yaml:"keywords"`
	Reply    string   `yaml:"reply"`
}

// Load reads configuration from a YAML file. Environment variables in
// the file (e.g. ${YANDEX_API_KEY}) are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Default returns a configuration with working defaults for everything
// except credentials.
func Default() *Config {
	cfg := &Config{
		Provider: "yandexgpt",
		YandexGPT: YandexGPTConfig{
			Model: "yandexgpt",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama2",
		},
		Generation: GenerationConfig{
			Temperature: 0.3,
			MaxTokens:   500,
			TimeoutSec:  15,
		},
		Context: ContextConfig{
			MaxTurns:        6,
			MaxTurnChars:    500,
			MaxMessageChars: 1000,
		},
		DatabasePath: "shop_bot.db",
		SystemPrompt: DefaultSystemPrompt,
	}
	cfg.applyDefaults()
	return cfg
}

// DefaultSystemPrompt establishes the advisor persona. It is fixed per
// process and never user-controllable.
const DefaultSystemPrompt = `Ты - консультант интернет-магазина электроники.
Отвечай вежливо и помогай клиентам с выбором товаров.
Вежливо отклоняй вопросы, не связанные с магазином и электроникой.
Отвечай на русском языке.`

func (c *Config) applyDefaults() {
	if c.Telegram.PollTimeoutSec <= 0 {
		c.Telegram.PollTimeoutSec = 30
	}
	if c.Context.MaxTurns <= 0 {
		c.Context.MaxTurns = 6
	}
	if c.Context.MaxTurnChars <= 0 {
		c.Context.MaxTurnChars = 500
	}
	if c.Context.MaxMessageChars <= 0 {
		c.Context.MaxMessageChars = 1000
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "shop_bot.db"
	}
	if c.Fallback.Generic == "" {
		c.Fallback.Generic = "Извините, в данный момент сервис консультаций временно недоступен. " +
			"Вы можете задать вопрос по телефону +7 (999) 123-45-67 или написать на shop@example.com"
	}
	if len(c.Fallback.Rules) == 0 {
		c.Fallback.Rules = DefaultFallbackRules()
	}
}

// DefaultFallbackRules returns the built-in keyword table used when the
// config file does not define its own.
func DefaultFallbackRules() []FallbackRule {
	return []FallbackRule{
		{
			Keywords: []string{"привет", "здравствуй", "hello"},
			Reply:    "Здравствуйте! Чем могу помочь с выбором электроники?",
		},
		{
			Keywords: []string{"телефон", "смартфон"},
			Reply:    "У нас есть широкий выбор смартфонов. Какие характеристики вас интересуют: бюджет, камера, производитель?",
		},
		{
			Keywords: []string{"ноутбук", "компьютер"},
			Reply:    "Для подбора ноутбука важно знать: для каких задач (работа, игры, учеба), бюджет и предпочитаемый размер экрана.",
		},
		{
			Keywords: []string{"доставка", "доставить"},
			Reply:    "Доставка осуществляется в течение 1-3 дней по городу. Есть самовывоз.",
		},
		{
			Keywords: []string{"оплата", "заплатить"},
			Reply:    "Принимаем оплату картой, наличными и онлайн. Есть рассрочка.",
		},
		{
			Keywords: []string{"гарантия", "возврат"},
			Reply:    "Гарантия на технику от 1 года. Возврат в течение 14 дней.",
		},
	}
}
