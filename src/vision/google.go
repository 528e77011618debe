package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

const googleBaseURL = "https://generativelanguage.googleapis.com"

// googleModelInfo keys the endpoint path and payload dialect per model.
// 2.x models take snake_case inline_data; 3.x models take camelCase.
type googleModelInfo struct {
	Path         string
	LegacyInline bool
}

var googleModels = map[string]googleModelInfo{
	"gemini-2.5-flash": {
		Path:         "/v1beta/models/gemini-2.5-flash:generateContent",
		LegacyInline: true,
	},
	"gemini-3-flash-preview": {
		Path:         "/v1alpha/models/gemini-3-flash-preview:generateContent",
		LegacyInline: false,
	},
}

// GoogleModelNames lists the Google models with a known endpoint mapping,
// sorted for stable display.
func GoogleModelNames() []string {
	names := make([]string, 0, len(googleModels))
	for name := range googleModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type googleProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func newGoogleProvider(model string) (*googleProvider, error) {
	if _, ok := googleModels[model]; !ok {
		available := make([]string, 0, len(googleModels))
		for name := range googleModels {
			available = append(available, name)
		}
		return nil, &VisionError{Msg: fmt.Sprintf("unknown model %q for provider google (available: %v)", model, available)}
	}
	key, err := credential(ProviderGoogle)
	if err != nil {
		return nil, err
	}
	return &googleProvider{
		apiKey:  key,
		baseURL: googleBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type googleInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type googleInlineDataCamel struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type googlePart struct {
	Text            string                 `json:"text,omitempty"`
	InlineData      *googleInlineData      `json:"inline_data,omitempty"`
	InlineDataCamel *googleInlineDataCamel `json:"inlineData,omitempty"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googleRequest struct {
	Contents []googleContent `json:"contents"`
}

type googleResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *googleProvider) describe(ctx context.Context, pngData []byte, model string) (string, error) {
	info := googleModels[model]
	encoded := base64.StdEncoding.EncodeToString(pngData)

	imagePart := googlePart{}
	if info.LegacyInline {
		imagePart.InlineData = &googleInlineData{MimeType: "image/png", Data: encoded}
	} else {
		imagePart.InlineDataCamel = &googleInlineDataCamel{MimeType: "image/png", Data: encoded}
	}

	payload := googleRequest{
		Contents: []googleContent{
			{Parts: []googlePart{{Text: Prompt}, imagePart}},
		},
	}

	url := fmt.Sprintf("%s%s?key=%s", p.baseURL, info.Path, p.apiKey)
	body, err := postJSON(ctx, p.client, url, nil, payload)
	if err != nil {
		return "", err
	}

	var resp googleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", permanent(fmt.Errorf("unexpected API response format: %v", err))
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", permanent(fmt.Errorf("unexpected API response format: no candidates"))
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
