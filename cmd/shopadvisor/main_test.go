package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/elkhov/shopadvisor/internal/config"
	"github.com/elkhov/shopadvisor/internal/llm"
)

func TestRunVersionText(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), &stdout, &stderr, []string{"version"}); err != nil {
		t.Fatalf("run version: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "shopadvisor") {
		t.Errorf("version output missing program name: %q", out)
	}
	if !strings.Contains(out, "go_version:") {
		t.Errorf("version output missing go_version: %q", out)
	}
}

func TestRunVersionJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), &stdout, &stderr, []string{"-o", "json", "version"}); err != nil {
		t.Fatalf("run version: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		t.Fatalf("version output is not JSON: %v\n%s", err, stdout.String())
	}
	if info["version"] == "" {
		t.Errorf("version field missing: %v", info)
	}
}

func TestRunNoArgsPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), &stdout, &stderr, nil); err != nil {
		t.Fatalf("run with no args: %v", err)
	}
	if !strings.Contains(stdout.String(), "Usage:") {
		t.Errorf("usage not printed: %q", stdout.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), &stdout, &stderr, []string{"frobnicate"})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("err = %v, want unknown command", err)
	}
}

func TestRunUnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), &stdout, &stderr, []string{"-frobnicate"})
	if err == nil || !strings.Contains(err.Error(), "unknown flag") {
		t.Errorf("err = %v, want unknown flag", err)
	}
}

func TestRunBadOutputFormat(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), &stdout, &stderr, []string{"-o", "yaml", "version"})
	if err == nil || !strings.Contains(err.Error(), "output format") {
		t.Errorf("err = %v, want output format error", err)
	}
}

func TestRunAskRequiresQuestion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), &stdout, &stderr, []string{"ask"})
	if err == nil || !strings.Contains(err.Error(), "usage: shopadvisor ask") {
		t.Errorf("err = %v, want ask usage error", err)
	}
}

func TestBuildProvider(t *testing.T) {
	logger := newLogger(&bytes.Buffer{}, 0)

	cfg := config.Default()
	if got := buildProvider(cfg, logger); got != nil {
		t.Errorf("yandexgpt without credentials should yield nil, got %T", got)
	}

	cfg.YandexGPT.APIKey = "key"
	cfg.YandexGPT.FolderID = "folder"
	if got := buildProvider(cfg, logger); got == nil || got.Name() != "yandexgpt" {
		t.Errorf("buildProvider = %v, want yandexgpt client", got)
	}

	cfg.Provider = "openai"
	if got := buildProvider(cfg, logger); got != nil {
		t.Errorf("openai without key should yield nil, got %T", got)
	}
	cfg.OpenAI.APIKey = "key"
	if got := buildProvider(cfg, logger); got == nil || got.Name() != "openai" {
		t.Errorf("buildProvider = %v, want openai client", got)
	}

	cfg.Provider = "ollama"
	var client llm.Client = buildProvider(cfg, logger)
	if client == nil || client.Name() != "ollama" {
		t.Errorf("buildProvider = %v, want ollama client", client)
	}

	cfg.Provider = ""
	if got := buildProvider(cfg, logger); got != nil {
		t.Errorf("empty provider should yield nil, got %T", got)
	}
}
