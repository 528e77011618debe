package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"snag/src/capture"
	"snag/src/clipboard"
	"snag/src/config"
	"snag/src/logutil"
	"snag/src/notification"
	"snag/src/vision"
)

const version = "0.1.0"

// debugLogging reports whether debug logs should go to file: either the -v
// flag or the SNAG_DEBUG_LOG environment opt-in.
func debugLogging(opts cliOptions) bool {
	return opts.verbose || os.Getenv("SNAG_DEBUG_LOG") != ""
}

type cliOptions struct {
	provider string
	model    string
	verbose  bool
}

func main() {
	enableDPIAwareness()
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, capture.ErrSelectionCancelled) {
			return 0
		}
		var capErr *capture.CaptureError
		var visErr *vision.VisionError
		switch {
		case errors.As(err, &capErr):
			notification.Error(capErr.Error())
			fmt.Fprintf(os.Stderr, "Capture error: %v\n", err)
		case errors.As(err, &visErr):
			notification.Error(visErr.Error())
			fmt.Fprintf(os.Stderr, "Vision error: %v\n", err)
		default:
			notification.Error(fmt.Sprintf("Unexpected error: %v", err))
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "snag",
		Short:         "Screenshot to text using vision AI",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(cmd.Context(), *opts)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Write debug logs to file")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Vision provider: google, openrouter, zai")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model name (default from config)")

	cmd.AddCommand(newSetupCmd(opts))
	return cmd
}

func runCapture(ctx context.Context, opts cliOptions) error {
	logutil.Setup(debugLogging(opts))

	if err := config.EnsureConfigFiles(); err != nil {
		return err
	}
	config.LoadEnv()
	cfg := config.Load()

	provider := cfg.Provider
	if opts.provider != "" {
		provider = opts.provider
	}
	model := cfg.Model
	if opts.model != "" {
		model = opts.model
	}

	if !config.HasAPIKey(provider) {
		keyVar, _ := config.KeyVarFor(provider)
		return fmt.Errorf("%s not found for provider %q.\nRun 'snag setup' to configure your API key", keyVar, provider)
	}

	img, err := capture.Region(ctx)
	if err != nil {
		return err
	}

	notification.Processing()

	text, err := vision.Describe(ctx, img, vision.Request{Provider: provider, Model: model}, vision.DefaultRetryPolicy())
	if err != nil {
		return err
	}

	if err := clipboard.Init(); err != nil {
		return fmt.Errorf("failed to initialize clipboard: %v", err)
	}
	if err := clipboard.Write(text); err != nil {
		return fmt.Errorf("failed to copy result: %v", err)
	}

	notification.Success(text)
	return nil
}

func newSetupCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Configure API keys and defaults interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			logutil.Setup(debugLogging(*opts))
			if err := config.EnsureConfigFiles(); err != nil {
				return err
			}
			config.LoadEnv()
			return runSetup(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

type setupSession struct {
	in  *bufio.Scanner
	raw io.Reader
	out func(format string, a ...any)
}

func runSetup(in io.Reader, out io.Writer) error {
	s := &setupSession{
		in:  bufio.NewScanner(in),
		raw: in,
		out: func(format string, a ...any) { fmt.Fprintf(out, format, a...) },
	}

	for {
		s.showSettings()

		s.out("  Setup Menu\n")
		s.out("  1. Configure Google Gemini API key\n")
		s.out("  2. Configure OpenRouter API key\n")
		s.out("  3. Configure Z.AI API key\n")
		s.out("  4. Set default provider\n")
		s.out("  5. Set default model\n")
		s.out("  6. Exit setup\n\n")

		choice, ok := s.prompt("Select option [1-6]: ")
		if !ok {
			s.out("\nSetup cancelled.\n")
			return nil
		}

		switch choice {
		case "1":
			s.configureKey("google")
		case "2":
			s.configureKey("openrouter")
		case "3":
			s.configureKey("zai")
		case "4":
			s.chooseProvider()
		case "5":
			s.chooseModel()
		case "6":
			s.out("\nSetup complete! Run 'snag' to capture a screenshot.\n")
			return nil
		default:
			s.out("\nInvalid option. Please enter 1-6.\n")
		}
	}
}

func (s *setupSession) prompt(label string) (string, bool) {
	s.out("%s", label)
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

// promptSecret reads without echo when the input is a terminal; scripted
// input falls back to plain line reads.
func (s *setupSession) promptSecret(label string) (string, bool) {
	if f, ok := s.raw.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		s.out("%s", label)
		data, err := term.ReadPassword(int(f.Fd()))
		s.out("\n")
		if err != nil {
			return "", false
		}
		return strings.TrimSpace(string(data)), true
	}
	return s.prompt(label)
}

func (s *setupSession) showSettings() {
	cfg := config.Load()

	s.out("\n  Current Settings\n\n")
	s.out("  API Keys:\n")
	for _, p := range []struct{ tag, label string }{
		{"google", "Google Gemini"},
		{"openrouter", "OpenRouter"},
		{"zai", "Z.AI"},
	} {
		status := "not configured"
		if config.HasAPIKey(p.tag) {
			status = "configured"
		}
		s.out("    %-15s %s\n", p.label+":", status)
	}
	s.out("\n  Defaults:\n")
	s.out("    Provider: %s\n", cfg.Provider)
	s.out("    Model:    %s\n", cfg.Model)
	s.out("\n  Config files:\n")
	s.out("    %s\n", config.EnvFile())
	s.out("    %s\n\n", config.File())
}

func (s *setupSession) configureKey(provider string) {
	keyVar, _ := config.KeyVarFor(provider)
	hint, _ := config.KeyHintFor(provider)
	s.out("\nGet your API key at: %s\n\n", hint)

	key, ok := s.promptSecret(fmt.Sprintf("Enter your %s API key: ", strings.ToUpper(provider)))
	if !ok || key == "" {
		s.out("\nError: API key cannot be empty.\n")
		return
	}
	if err := config.SaveEnvKey(keyVar, key); err != nil {
		s.out("\nError: %v\n", err)
		return
	}
	// Make the new key visible to HasAPIKey in this process.
	os.Setenv(keyVar, key)
	s.out("\n%s API key saved! (%s)\n", provider, logutil.RedactKey(key))
}

func (s *setupSession) chooseProvider() {
	s.out("\n  Available providers:\n")
	s.out("    1. google (Google Gemini)\n")
	s.out("    2. openrouter (OpenRouter)\n")
	s.out("    3. zai (Z.AI GLM-4.6V)\n")

	choice, ok := s.prompt("\n  Select provider [1-3]: ")
	if !ok {
		return
	}
	providers := map[string]string{"1": "google", "2": "openrouter", "3": "zai"}
	provider, found := providers[choice]
	if !found {
		s.out("\n  Invalid option.\n")
		return
	}

	cfg := config.Load()
	cfg.Provider = provider
	if err := config.Save(cfg); err != nil {
		s.out("\n  Error: %v\n", err)
		return
	}
	s.out("\n  Default provider set to: %s\n", provider)
}

func (s *setupSession) chooseModel() {
	cfg := config.Load()
	s.out("\n  Current provider: %s\n", cfg.Provider)

	var model string
	switch cfg.Provider {
	case "zai":
		s.out("  Z.AI uses GLM-4.6V via MCP. Model is fixed.\n")
		return
	case "google":
		names := vision.GoogleModelNames()
		s.out("  Available Google models:\n")
		for i, name := range names {
			s.out("    %d. %s\n", i+1, name)
		}
		s.out("    %d. Enter custom model name\n", len(names)+1)

		choice, ok := s.prompt("\n  Select model or enter name: ")
		if !ok {
			return
		}
		if idx, err := strconv.Atoi(choice); err == nil {
			switch {
			case idx >= 1 && idx <= len(names):
				model = names[idx-1]
			case idx == len(names)+1:
				model, ok = s.prompt("  Enter custom model name: ")
				if !ok {
					return
				}
			default:
				s.out("\n  Invalid option.\n")
				return
			}
		} else {
			model = choice
		}
	default:
		s.out("  OpenRouter supports many models. Enter the full model name.\n")
		s.out("  Examples: google/gemini-2.5-flash-lite, anthropic/claude-3.5-sonnet\n")
		var ok bool
		model, ok = s.prompt("\n  Enter model name: ")
		if !ok {
			return
		}
	}

	if model == "" {
		s.out("\n  Model name cannot be empty.\n")
		return
	}
	cfg.Model = model
	if err := config.Save(cfg); err != nil {
		s.out("\n  Error: %v\n", err)
		return
	}
	s.out("\n  Default model set to: %s\n", model)
}
