package vision

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"snag/src/mcpclient"
)

const (
	zaiServerPackage = "@z_ai/mcp-server"
	zaiTool          = "image_analysis"
	zaiTimeout       = 120 * time.Second
	minNodeMajor     = 18
)

// mcpSession abstracts the stdio RPC client so tests can fake the server.
type mcpSession interface {
	Connect() error
	CallTool(name string, arguments map[string]any) (string, error)
	Disconnect()
}

type zaiProvider struct {
	apiKey     string
	timeout    time.Duration
	newSession func(command []string, env map[string]string, timeout time.Duration) mcpSession
	nodeMajor  func(ctx context.Context) (int, error)
}

func newZAIProvider() (*zaiProvider, error) {
	key, err := credential(ProviderZAI)
	if err != nil {
		return nil, err
	}
	return &zaiProvider{
		apiKey:  key,
		timeout: zaiTimeout,
		newSession: func(command []string, env map[string]string, timeout time.Duration) mcpSession {
			return mcpclient.New(command, env, timeout)
		},
		nodeMajor: nodeVersionMajor,
	}, nil
}

// describe spawns the Z.AI MCP server and calls its image analysis tool. The
// image goes through a transient temp file whose deletion is guaranteed on
// every exit path. The model is fixed server-side; the model argument is not
// consulted.
func (p *zaiProvider) describe(ctx context.Context, pngData []byte, model string) (string, error) {
	major, err := p.nodeMajor(ctx)
	if err != nil {
		return "", permanent(fmt.Errorf("Z.AI provider requires Node.js >= %d with npx.\nInstall from https://nodejs.org/ (%v)", minNodeMajor, err))
	}
	if major < minNodeMajor {
		return "", permanent(fmt.Errorf("Z.AI provider requires Node.js >= %d, found %d.\nUpgrade from https://nodejs.org/", minNodeMajor, major))
	}

	tmp, err := os.CreateTemp("", "snag-*.png")
	if err != nil {
		return "", permanent(fmt.Errorf("failed to create temp image: %v", err))
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.Write(pngData); err != nil {
		tmp.Close()
		return "", permanent(fmt.Errorf("failed to write temp image: %v", err))
	}
	if err := tmp.Close(); err != nil {
		return "", permanent(fmt.Errorf("failed to write temp image: %v", err))
	}

	session := p.newSession(
		[]string{"npx", "-y", zaiServerPackage},
		map[string]string{
			"Z_AI_API_KEY": p.apiKey,
			"Z_AI_MODE":    "ZAI",
		},
		p.timeout,
	)
	if err := session.Connect(); err != nil {
		return "", permanent(err)
	}
	defer session.Disconnect()

	log.Printf("Vision: zai tools/call %s", zaiTool)
	text, err := session.CallTool(zaiTool, map[string]any{
		"image_path": path,
		"prompt":     Prompt,
	})
	if err != nil {
		// A stalled server was already killed; the call itself may be
		// worth retrying. Protocol errors are not.
		if errors.Is(err, mcpclient.ErrTimeout) {
			return "", err
		}
		return "", permanent(err)
	}
	if strings.TrimSpace(text) == "" {
		return "", permanent(fmt.Errorf("empty result from %s", zaiTool))
	}
	return text, nil
}

// nodeVersionMajor runs `node --version` and parses the major out of
// "v18.17.0".
func nodeVersionMajor(ctx context.Context) (int, error) {
	if _, err := exec.LookPath("node"); err != nil {
		return 0, fmt.Errorf("node not found in PATH")
	}
	out, err := exec.CommandContext(ctx, "node", "--version").Output()
	if err != nil {
		return 0, fmt.Errorf("node --version failed: %v", err)
	}
	return parseNodeMajor(string(out))
}

func parseNodeMajor(version string) (int, error) {
	v := strings.TrimSpace(version)
	v = strings.TrimPrefix(v, "v")
	parts := strings.SplitN(v, ".", 2)
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("unrecognized node version %q", version)
	}
	return major, nil
}
