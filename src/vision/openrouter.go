package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

type openRouterProvider struct {
	apiKey string
	url    string
	client *http.Client
}

// newOpenRouterProvider accepts any model name; OpenRouter validates model
// availability server-side.
func newOpenRouterProvider() (*openRouterProvider, error) {
	key, err := credential(ProviderOpenRouter)
	if err != nil {
		return nil, err
	}
	return &openRouterProvider{
		apiKey: key,
		url:    openRouterURL,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// OpenRouter chat-completions wire shapes.
type orMessage struct {
	Role    string      `json:"role"`
	Content []orContent `json:"content"`
}

type orContent struct {
	Type     string      `json:"type"`
	Text     string      `json:"text,omitempty"`
	ImageURL *orImageURL `json:"image_url,omitempty"`
}

type orImageURL struct {
	URL string `json:"url"`
}

type orChatRequest struct {
	Model    string      `json:"model"`
	Messages []orMessage `json:"messages"`
}

type orChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *openRouterProvider) describe(ctx context.Context, pngData []byte, model string) (string, error) {
	imageURL := fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(pngData))

	payload := orChatRequest{
		Model: model,
		Messages: []orMessage{
			{
				Role: "user",
				Content: []orContent{
					{Type: "text", Text: Prompt},
					{Type: "image_url", ImageURL: &orImageURL{URL: imageURL}},
				},
			},
		},
	}

	headers := map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", p.apiKey),
		"HTTP-Referer":  "https://github.com/am-will/snag",
		"X-Title":       "snag",
	}

	body, err := postJSON(ctx, p.client, p.url, headers, payload)
	if err != nil {
		return "", err
	}

	var resp orChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", permanent(fmt.Errorf("unexpected API response format: %v", err))
	}
	if len(resp.Choices) == 0 {
		return "", permanent(fmt.Errorf("unexpected API response format: no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}
