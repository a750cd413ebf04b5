// Shopadvisor is a Telegram shop assistant bot for an electronics store.
//
// It answers product questions through a configurable LLM provider
// (Yandex GPT, an OpenAI-compatible API, or a local Ollama model) with a
// keyword-matched canned responder as the degraded mode when no provider
// is configured or a provider call fails. Conversation history is kept
// in SQLite. Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	shopadvisor serve            Start the Telegram bot
//	shopadvisor ask <question>   Ask a single question (for testing)
//	shopadvisor check            Verify the configured provider is reachable
//	shopadvisor version          Print version and build information
//	shopadvisor -o json version  Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/elkhov/shopadvisor/internal/buildinfo"
	"github.com/elkhov/shopadvisor/internal/config"
	"github.com/elkhov/shopadvisor/internal/dispatch"
	"github.com/elkhov/shopadvisor/internal/fallback"
	"github.com/elkhov/shopadvisor/internal/llm"
	"github.com/elkhov/shopadvisor/internal/store"
	"github.com/elkhov/shopadvisor/internal/telegram"
	"github.com/elkhov/shopadvisor/internal/window"
)

// main constructs the OS-level environment (context, stdio, argv) and
// delegates immediately to [run]. This keeps os.Exit, os.Stdout, and
// os.Args out of the application logic so the full lifecycle can be
// driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the shopadvisor command. Arguments are
// parsed by hand rather than with the flag package: flag relies on
// package-level globals, which makes it impossible to call run()
// concurrently from tests, and the argument surface here is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: shopadvisor ask <question>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "check":
		return runCheck(ctx, stdout, configPath)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Shopadvisor - Telegram shop assistant bot")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: shopadvisor [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the Telegram bot")
	fmt.Fprintln(w, "  ask          Ask a single question (for testing)")
	fmt.Fprintln(w, "  check        Verify the configured provider is reachable")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/shopadvisor/config.yaml, /etc/shopadvisor/config.yaml")
	return nil
}

// runServe is the primary operating mode: loads config, opens the
// history database, builds the provider and dispatcher, and long-polls
// Telegram until SIGINT or SIGTERM.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting shopadvisor", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure the logger now that the desired level is known. The
	// Info-level logger above covers only the startup banner.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}
	logger.Info("config loaded", "path", cfgPath, "provider", cfg.Provider, "database", cfg.DatabasePath)

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is not configured")
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open history database %s: %w", cfg.DatabasePath, err)
	}
	defer st.Close()
	logger.Info("history database opened", "path", cfg.DatabasePath)

	dispatcher := newDispatcher(cfg, st, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pollTimeout := time.Duration(cfg.Telegram.PollTimeoutSec) * time.Second
	botAPI := telegram.NewClient("https://api.telegram.org/bot"+cfg.Telegram.Token, pollTimeout, logger)
	bridge := telegram.NewBridge(botAPI, dispatcher, st, pollTimeout, logger)

	if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bridge failed: %w", err)
	}

	logger.Info("shopadvisor stopped")
	return nil
}

// runAsk handles "shopadvisor ask <question>". It routes one question
// through the same dispatcher the bot uses, under a reserved CLI user,
// and prints the reply. Useful for smoke tests without a Telegram token.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelWarn)

	question := strings.Join(args, " ")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open history database %s: %w", cfg.DatabasePath, err)
	}
	defer st.Close()

	dispatcher := newDispatcher(cfg, st, logger)

	reply, err := dispatcher.Handle(ctx, 0, dispatch.UserMeta{Username: "cli"}, question)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, reply)
	return nil
}

// runCheck verifies that the configured provider is reachable and
// actually answers: a ping first, then one real generation.
func runCheck(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelWarn)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "config: %s\n", cfgPath)

	provider := buildProvider(cfg, logger)
	if provider == nil {
		return fmt.Errorf("no provider configured (provider=%q); the bot would run in fallback-only mode", cfg.Provider)
	}
	fmt.Fprintf(stdout, "provider: %s\n", provider.Name())

	if err := provider.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	fmt.Fprintln(stdout, "ping: ok")

	reply, err := provider.Generate(ctx, []llm.Message{
		{Role: "system", Content: cfg.SystemPrompt},
		{Role: "user", Content: "Привет! Какие смартфоны ты можешь посоветовать?"},
	})
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	fmt.Fprintf(stdout, "response: %s\n", reply.Text)
	return nil
}

// newLogger creates a structured text logger writing to w.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty, that exact path is used (and must exist). Returns the
// parsed config, the path that was loaded, and any error.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// newDispatcher assembles the dispatcher from configuration: provider,
// context window, and the keyword fallback responder.
func newDispatcher(cfg *config.Config, st *store.Store, logger *slog.Logger) *dispatch.Dispatcher {
	provider := buildProvider(cfg, logger)
	if provider == nil {
		logger.Warn("no provider configured, running in fallback-only mode", "provider", cfg.Provider)
	}

	builder := window.Builder{
		MaxTurns:        cfg.Context.MaxTurns,
		MaxTurnChars:    cfg.Context.MaxTurnChars,
		MaxMessageChars: cfg.Context.MaxMessageChars,
	}

	rules := make([]fallback.Rule, 0, len(cfg.Fallback.Rules))
	for _, r := range cfg.Fallback.Rules {
		rules = append(rules, fallback.Rule{Keywords: r.Keywords, Reply: r.Reply})
	}
	responder := fallback.New(rules, cfg.Fallback.Generic)

	return dispatch.New(logger, st, builder, provider, responder, cfg.SystemPrompt)
}

// buildProvider creates the LLM client selected by cfg.Provider. Returns
// nil when the provider is unset or its credentials are missing; the
// dispatcher then serves canned fallback replies only.
func buildProvider(cfg *config.Config, logger *slog.Logger) llm.Client {
	switch cfg.Provider {
	case "yandexgpt":
		if cfg.YandexGPT.APIKey == "" || cfg.YandexGPT.FolderID == "" {
			return nil
		}
		return llm.NewYandexGPTClient(llm.YandexGPTOptions{
			APIKey:      cfg.YandexGPT.APIKey,
			FolderID:    cfg.YandexGPT.FolderID,
			Model:       cfg.YandexGPT.Model,
			Endpoint:    cfg.YandexGPT.Endpoint,
			Temperature: cfg.Generation.Temperature,
			MaxTokens:   cfg.Generation.MaxTokens,
			Timeout:     cfg.Generation.Timeout(),
		}, logger)
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil
		}
		return llm.NewOpenAIClient(llm.OpenAIOptions{
			APIKey:      cfg.OpenAI.APIKey,
			Model:       cfg.OpenAI.Model,
			Endpoint:    cfg.OpenAI.Endpoint,
			Temperature: cfg.Generation.Temperature,
			MaxTokens:   cfg.Generation.MaxTokens,
			Timeout:     cfg.Generation.Timeout(),
		}, logger)
	case "ollama":
		return llm.NewOllamaClient(llm.OllamaOptions{
			BaseURL:     cfg.Ollama.BaseURL,
			Model:       cfg.Ollama.Model,
			Temperature: cfg.Generation.Temperature,
			MaxTokens:   cfg.Generation.MaxTokens,
			Timeout:     cfg.Generation.Timeout(),
		}, logger)
	default:
		return nil
	}
}
