package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"time"

	"snag/src/config"
	"snag/src/screenshot"
)

// Provider tags accepted by Describe.
const (
	ProviderGoogle     = "google"
	ProviderOpenRouter = "openrouter"
	ProviderZAI        = "zai"
)

// Prompt is the fixed instruction sent with every image, shared by all
// providers.
const Prompt = `Analyze this image and provide a comprehensive description in clean markdown format.

If the image contains:
- **Text**: Transcribe it accurately, preserving formatting where possible
- **Code**: Format it as a code block with appropriate language syntax highlighting
- **Diagrams/Charts**: Describe the structure, relationships, and data shown
- **UI elements**: Describe the interface, controls, and their arrangement
- **Images/Graphics**: Describe what is depicted

Output clean markdown that can be directly pasted into a document or LLM conversation.
Be thorough but concise. Focus on accurately capturing the content.`

// VisionError is any failure of the description pipeline: missing
// credentials, unknown provider or model, malformed responses, exhausted
// retries, or subprocess-protocol failures.
type VisionError struct {
	Msg string
	Err error
}

func (e *VisionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *VisionError) Unwrap() error { return e.Err }

// permanentError marks a failure that retrying cannot fix: the request was
// rejected or the response was received but unusable.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

// Request selects the provider strategy and model for one description call.
type Request struct {
	Provider string
	Model    string
}

// RetryPolicy is passed explicitly into Describe; there is no ambient retry
// state. Sleep is replaceable so tests can observe backoff without waiting.
type RetryPolicy struct {
	MaxAttempts int
	Sleep       func(time.Duration)
}

// DefaultRetryPolicy matches the historical behavior: 3 attempts with
// exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Sleep: time.Sleep}
}

// backoff returns 2^attempt seconds, attempt starting at 0.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// provider is the polymorphic description capability. Each variant owns its
// credential lookup, payload shape, and response parsing.
type provider interface {
	describe(ctx context.Context, pngData []byte, model string) (string, error)
}

// Describe sends the image to the selected provider and returns the model's
// markdown description. Credential and model validation happen before any
// transport call; transient transport failures are retried per policy.
func Describe(ctx context.Context, img image.Image, req Request, policy RetryPolicy) (string, error) {
	p, err := newProvider(req)
	if err != nil {
		return "", err
	}

	pngData, err := screenshot.EncodePNG(img)
	if err != nil {
		return "", &VisionError{Msg: "failed to encode image", Err: err}
	}
	log.Printf("Vision: %s/%s, %d byte PNG", req.Provider, req.Model, len(pngData))

	return retryDescribe(ctx, p, req, pngData, policy)
}

// retryDescribe runs one provider call under the retry policy. Retryable
// failures (timeouts, network errors, 429) back off 2^attempt seconds;
// permanent ones surface immediately.
func retryDescribe(ctx context.Context, p provider, req Request, pngData []byte, policy RetryPolicy) (string, error) {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Sleep == nil {
		policy.Sleep = time.Sleep
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		text, err := p.describe(ctx, pngData, req.Model)
		if err == nil {
			return text, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return "", &VisionError{Msg: fmt.Sprintf("%s request failed", req.Provider), Err: perm.err}
		}

		lastErr = err
		if attempt < policy.MaxAttempts-1 {
			wait := policy.backoff(attempt)
			log.Printf("Vision: attempt %d failed (%v), retrying in %s", attempt+1, err, wait)
			policy.Sleep(wait)
		}
	}

	return "", &VisionError{
		Msg: fmt.Sprintf("%s request failed after %d attempts", req.Provider, policy.MaxAttempts),
		Err: lastErr,
	}
}

// newProvider resolves the strategy and its credential. Unknown providers and
// missing credentials fail here, before any network I/O.
func newProvider(req Request) (provider, error) {
	switch req.Provider {
	case ProviderGoogle:
		return newGoogleProvider(req.Model)
	case ProviderOpenRouter:
		return newOpenRouterProvider()
	case ProviderZAI:
		return newZAIProvider()
	default:
		return nil, &VisionError{Msg: fmt.Sprintf("unknown provider %q (available: google, openrouter, zai)", req.Provider)}
	}
}

func credential(providerTag string) (string, error) {
	key, err := config.APIKeyFor(providerTag)
	if err != nil {
		return "", &VisionError{Msg: "missing credential", Err: err}
	}
	return key, nil
}

// apiErrorBody is the common {"error": {"message": ...}} wrapper most vendor
// APIs use for non-200 responses.
type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// postJSON submits one JSON POST and returns the response body. Transport
// errors and HTTP 429 come back as retryable errors; any other non-200 status
// is permanent, carrying the server message when parseable, else the raw
// body.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, permanent(fmt.Errorf("failed to marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, permanent(fmt.Errorf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited (429)")
	default:
		msg := string(body)
		var parsed apiErrorBody
		if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return nil, permanent(fmt.Errorf("API error (%d): %s", resp.StatusCode, msg))
	}
}
