package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"snag/src/config"
)

func TestSetupExitImmediately(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	if err := runSetup(strings.NewReader("6\n"), &out); err != nil {
		t.Fatalf("runSetup failed: %v", err)
	}
	if !strings.Contains(out.String(), "Setup complete!") {
		t.Error("Expected completion message on exit")
	}
}

func TestSetupEOFCancels(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	if err := runSetup(strings.NewReader(""), &out); err != nil {
		t.Fatalf("runSetup failed: %v", err)
	}
	if !strings.Contains(out.String(), "Setup cancelled.") {
		t.Error("Expected cancellation message on EOF")
	}
}

func TestSetupSavesAPIKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "")

	var out bytes.Buffer
	input := "1\nmy-gemini-key\n6\n"
	if err := runSetup(strings.NewReader(input), &out); err != nil {
		t.Fatalf("runSetup failed: %v", err)
	}

	data, err := os.ReadFile(config.EnvFile())
	if err != nil {
		t.Fatalf("Expected .env to be written: %v", err)
	}
	if !strings.Contains(string(data), "GEMINI_API_KEY") || !strings.Contains(string(data), "my-gemini-key") {
		t.Errorf(".env missing saved key, got:\n%s", data)
	}

	// The full key must never be echoed back.
	if strings.Contains(out.String(), "my-gemini-key") {
		t.Error("Setup output must not echo the full API key")
	}
}

func TestPromptSecretScriptedInput(t *testing.T) {
	// Non-terminal input (as in these tests) must fall back to line reads
	// rather than failing.
	in := strings.NewReader("  sk-secret-value  \n")
	var out bytes.Buffer
	s := &setupSession{
		in:  bufio.NewScanner(in),
		raw: in,
		out: func(format string, a ...any) { fmt.Fprintf(&out, format, a...) },
	}

	got, ok := s.promptSecret("Enter key: ")
	if !ok {
		t.Fatal("Expected scripted read to succeed")
	}
	if got != "sk-secret-value" {
		t.Errorf("Got %q, want trimmed key", got)
	}
}

func TestSetupSetsDefaultProvider(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	input := "4\n2\n6\n"
	if err := runSetup(strings.NewReader(input), &out); err != nil {
		t.Fatalf("runSetup failed: %v", err)
	}

	cfg := config.Load()
	if cfg.Provider != "openrouter" {
		t.Errorf("Got provider %q, want openrouter", cfg.Provider)
	}
	if !strings.Contains(out.String(), "Default provider set to: openrouter") {
		t.Error("Expected provider confirmation in output")
	}
}

func TestSetupSetsGoogleModelByNumber(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	input := "5\n1\n6\n"
	if err := runSetup(strings.NewReader(input), &out); err != nil {
		t.Fatalf("runSetup failed: %v", err)
	}

	cfg := config.Load()
	if cfg.Model != "gemini-2.5-flash" {
		t.Errorf("Got model %q, want gemini-2.5-flash", cfg.Model)
	}
}

func TestSetupCustomModelName(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	// Provider stays google; a non-numeric entry is taken as a model name.
	input := "5\ngemini-9000\n6\n"
	if err := runSetup(strings.NewReader(input), &out); err != nil {
		t.Fatalf("runSetup failed: %v", err)
	}

	cfg := config.Load()
	if cfg.Model != "gemini-9000" {
		t.Errorf("Got model %q, want gemini-9000", cfg.Model)
	}
}

func TestSetupZaiModelIsFixed(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := config.Save(&config.Config{Provider: "zai", Model: config.DefaultModel}); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	input := "5\n6\n"
	if err := runSetup(strings.NewReader(input), &out); err != nil {
		t.Fatalf("runSetup failed: %v", err)
	}
	if !strings.Contains(out.String(), "Model is fixed") {
		t.Error("Expected fixed-model notice for zai provider")
	}
	if got := config.Load().Model; got != config.DefaultModel {
		t.Errorf("Model changed unexpectedly to %q", got)
	}
}

func TestSetupInvalidOption(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	input := "9\n6\n"
	if err := runSetup(strings.NewReader(input), &out); err != nil {
		t.Fatalf("runSetup failed: %v", err)
	}
	if !strings.Contains(out.String(), "Invalid option") {
		t.Error("Expected invalid-option message")
	}
}

func TestRunMissingKeyFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SNAG_DEBUG_LOG", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("Z_AI_API_KEY", "")

	opts := cliOptions{provider: "google"}
	err := runCapture(context.Background(), opts)
	if err == nil {
		t.Fatal("Expected error when no API key is configured")
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("Error must name the missing variable, got: %v", err)
	}
	if !strings.Contains(err.Error(), "snag setup") {
		t.Errorf("Error must point at setup, got: %v", err)
	}
}
