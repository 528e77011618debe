package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testOpenRouterProvider(serverURL string) *openRouterProvider {
	return &openRouterProvider{
		apiKey: "or-test-key",
		url:    serverURL,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestOpenRouterDescribe(t *testing.T) {
	var captured orChatRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&captured)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"a table of numbers"}}]}`)
	}))
	defer server.Close()

	p := testOpenRouterProvider(server.URL)
	text, err := p.describe(context.Background(), []byte{0xFF, 0xD8}, "google/gemini-2.5-flash-lite")
	if err != nil {
		t.Fatalf("describe failed: %v", err)
	}
	if text != "a table of numbers" {
		t.Errorf("Got %q", text)
	}
	if auth != "Bearer or-test-key" {
		t.Errorf("Got Authorization %q", auth)
	}
	if captured.Model != "google/gemini-2.5-flash-lite" {
		t.Errorf("Got model %q", captured.Model)
	}
	if len(captured.Messages) != 1 || len(captured.Messages[0].Content) != 2 {
		t.Fatalf("Unexpected payload shape: %+v", captured)
	}
	img := captured.Messages[0].Content[1]
	if img.Type != "image_url" || img.ImageURL == nil {
		t.Fatalf("Missing image part: %+v", img)
	}
	if !strings.HasPrefix(img.ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("Expected data URI, got %q", img.ImageURL.URL)
	}
}

func TestOpenRouterNoChoicesIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	p := testOpenRouterProvider(server.URL)
	_, err := p.describe(context.Background(), []byte{1}, "any/model")
	if err == nil {
		t.Fatal("Expected error for empty choices")
	}
	var perm *permanentError
	if !asPermanent(err, &perm) {
		t.Errorf("Expected permanent error, got %T", err)
	}
}

func TestOpenRouterAnyModelAccepted(t *testing.T) {
	// Model validation is server-side; the provider constructor only needs
	// a credential.
	t.Setenv("OPENROUTER_API_KEY", "k")
	if _, err := newOpenRouterProvider(); err != nil {
		t.Errorf("Expected provider, got %v", err)
	}
}
