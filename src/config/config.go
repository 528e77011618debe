package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultProvider = "google"
	DefaultModel    = "gemini-2.5-flash"
)

// Config holds the user's persisted defaults.
type Config struct {
	Provider string
	Model    string
}

type fileConfig struct {
	Defaults struct {
		Provider string `toml:"provider"`
		Model    string `toml:"model"`
	} `toml:"defaults"`
}

// Dir is the snag configuration directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".snag")
	}
	return filepath.Join(home, ".config", "snag")
}

// File is the TOML defaults file path.
func File() string { return filepath.Join(Dir(), "config.toml") }

// EnvFile is the credentials file inside the config directory.
func EnvFile() string { return filepath.Join(Dir(), ".env") }

// envSearchPaths lists .env locations in priority order; first match wins.
func envSearchPaths() []string {
	paths := []string{EnvFile()}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".snag.env"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}
	return paths
}

// LoadEnv loads credentials from the first .env file found. Non-empty file
// values take priority over already-exported variables; empty placeholder
// entries are ignored.
func LoadEnv() {
	for _, path := range envSearchPaths() {
		values, err := godotenv.Read(path)
		if err != nil {
			continue
		}
		for k, v := range values {
			if strings.TrimSpace(v) != "" {
				os.Setenv(k, v)
			}
		}
		return
	}
}

// Load reads persisted defaults, falling back to built-in defaults when the
// file is absent or unreadable.
func Load() *Config {
	cfg := &Config{Provider: DefaultProvider, Model: DefaultModel}

	var fc fileConfig
	if _, err := toml.DecodeFile(File(), &fc); err != nil {
		return cfg
	}
	if fc.Defaults.Provider != "" {
		cfg.Provider = fc.Defaults.Provider
	}
	if fc.Defaults.Model != "" {
		cfg.Model = fc.Defaults.Model
	}
	return cfg
}

// Save persists defaults to the TOML config file, creating the directory as
// needed.
func Save(cfg *Config) error {
	if err := os.MkdirAll(Dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}

	var fc fileConfig
	fc.Defaults.Provider = cfg.Provider
	fc.Defaults.Model = cfg.Model

	f, err := os.Create(File())
	if err != nil {
		return fmt.Errorf("failed to write config: %v", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(fc); err != nil {
		return fmt.Errorf("failed to encode config: %v", err)
	}
	return nil
}

// EnsureConfigFiles creates the config directory and a placeholder .env on
// first run so users have a file to edit.
func EnsureConfigFiles() error {
	if err := os.MkdirAll(Dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}
	if _, err := os.Stat(EnvFile()); err == nil {
		return nil
	}
	placeholder := "# API Keys for Snag\n" +
		"# Google Gemini: https://aistudio.google.com/apikey\n" +
		"GEMINI_API_KEY=\"\"\n" +
		"# OpenRouter: https://openrouter.ai/keys\n" +
		"OPENROUTER_API_KEY=\"\"\n" +
		"# Z.AI (GLM-4.6V): https://open.bigmodel.cn/\n" +
		"Z_AI_API_KEY=\"\"\n"
	if err := os.WriteFile(EnvFile(), []byte(placeholder), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %v", EnvFile(), err)
	}
	return nil
}

type keyInfo struct {
	EnvVar string
	Hint   string
}

var providerKeys = map[string]keyInfo{
	"google":     {EnvVar: "GEMINI_API_KEY", Hint: "https://aistudio.google.com/apikey"},
	"openrouter": {EnvVar: "OPENROUTER_API_KEY", Hint: "https://openrouter.ai/keys"},
	"zai":        {EnvVar: "Z_AI_API_KEY", Hint: "https://open.bigmodel.cn/"},
}

// KeyVarFor returns the credential variable name for a provider.
func KeyVarFor(provider string) (string, bool) {
	info, ok := providerKeys[provider]
	return info.EnvVar, ok
}

// KeyHintFor returns the URL where a key for the provider can be obtained.
func KeyHintFor(provider string) (string, bool) {
	info, ok := providerKeys[provider]
	return info.Hint, ok
}

// APIKeyFor resolves a provider credential from the environment (after
// LoadEnv has applied any .env file). A missing key is an error naming the
// variable and how to remediate.
func APIKeyFor(provider string) (string, error) {
	info, ok := providerKeys[provider]
	if !ok {
		return "", fmt.Errorf("no credential mapping for provider %q", provider)
	}
	if key := strings.TrimSpace(os.Getenv(info.EnvVar)); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%s not found.\nGet an API key at: %s\nThen either:\n  export %s='your-key'\n  or add to %s: %s=your-key",
		info.EnvVar, info.Hint, info.EnvVar, EnvFile(), info.EnvVar)
}

// HasAPIKey reports whether a credential is configured for the provider.
func HasAPIKey(provider string) bool {
	_, err := APIKeyFor(provider)
	return err == nil
}

// SaveEnvKey writes one credential into the config-directory .env file,
// preserving any other entries.
func SaveEnvKey(envVar, value string) error {
	if err := os.MkdirAll(Dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}

	values, err := godotenv.Read(EnvFile())
	if err != nil {
		values = map[string]string{}
	}
	values[envVar] = value

	if err := godotenv.Write(values, EnvFile()); err != nil {
		return fmt.Errorf("failed to write %s: %v", EnvFile(), err)
	}
	return nil
}
