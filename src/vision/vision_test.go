package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"testing"
	"time"
)

// fakeProvider replays a scripted sequence of results and counts calls.
type fakeProvider struct {
	script []error
	text   string
	calls  int
}

func (f *fakeProvider) describe(ctx context.Context, pngData []byte, model string) (string, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.script) && f.script[idx] != nil {
		return "", f.script[idx]
	}
	return f.text, nil
}

func asPermanent(err error, target **permanentError) bool {
	return errors.As(err, target)
}

func recordingPolicy(maxAttempts int) (RetryPolicy, *[]time.Duration) {
	waits := &[]time.Duration{}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Sleep:       func(d time.Duration) { *waits = append(*waits, d) },
	}, waits
}

func TestRetryRateLimitedThenSuccess(t *testing.T) {
	p := &fakeProvider{
		script: []error{
			fmt.Errorf("rate limited (429)"),
			fmt.Errorf("rate limited (429)"),
			nil,
		},
		text: "## Description",
	}
	policy, waits := recordingPolicy(3)

	text, err := retryDescribe(context.Background(), p, Request{Provider: ProviderGoogle}, nil, policy)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if text != "## Description" {
		t.Errorf("Got %q", text)
	}
	if p.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", p.calls)
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(*waits) != len(want) {
		t.Fatalf("Expected %d waits, got %v", len(want), *waits)
	}
	for i, w := range want {
		if (*waits)[i] != w {
			t.Errorf("Wait %d: got %s, want %s", i, (*waits)[i], w)
		}
	}
}

func TestRetryExhaustionRaisesLastError(t *testing.T) {
	p := &fakeProvider{
		script: []error{
			fmt.Errorf("network error: conn refused"),
			fmt.Errorf("network error: conn refused"),
			fmt.Errorf("rate limited (429)"),
		},
	}
	policy, waits := recordingPolicy(3)

	_, err := retryDescribe(context.Background(), p, Request{Provider: ProviderOpenRouter}, nil, policy)
	if err == nil {
		t.Fatal("Expected error after exhausted retries")
	}
	var ve *VisionError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected VisionError, got %T", err)
	}
	if !strings.Contains(err.Error(), "rate limited (429)") {
		t.Errorf("Expected last error in message, got %q", err.Error())
	}
	if p.calls != 3 {
		t.Errorf("Expected exactly 3 attempts, got %d", p.calls)
	}
	// No wait after the final failed attempt.
	if len(*waits) != 2 {
		t.Errorf("Expected 2 waits, got %v", *waits)
	}
}

func TestPermanentErrorSkipsRetry(t *testing.T) {
	p := &fakeProvider{
		script: []error{permanent(fmt.Errorf("API error (400): bad request"))},
	}
	policy, waits := recordingPolicy(3)

	_, err := retryDescribe(context.Background(), p, Request{Provider: ProviderGoogle}, nil, policy)
	if err == nil {
		t.Fatal("Expected error")
	}
	if p.calls != 1 {
		t.Errorf("Permanent error must not be retried, got %d attempts", p.calls)
	}
	if len(*waits) != 0 {
		t.Errorf("Expected no waits, got %v", *waits)
	}
	if !strings.Contains(err.Error(), "API error (400)") {
		t.Errorf("Server message lost: %q", err.Error())
	}
}

func TestBackoffDoubles(t *testing.T) {
	p := RetryPolicy{}
	for attempt, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second} {
		if got := p.backoff(attempt); got != want {
			t.Errorf("backoff(%d) = %s, want %s", attempt, got, want)
		}
	}
}

func TestDescribeUnknownProvider(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	_, err := Describe(context.Background(), img, Request{Provider: "bogus", Model: "x"}, DefaultRetryPolicy())
	if err == nil {
		t.Fatal("Expected error for unknown provider")
	}
	var ve *VisionError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected VisionError, got %T", err)
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("Error should name the provider: %q", err.Error())
	}
}

func TestDescribeUnknownGoogleModelBeforeNetwork(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	_, err := Describe(context.Background(), img, Request{Provider: ProviderGoogle, Model: "no-such-model"}, DefaultRetryPolicy())
	if err == nil {
		t.Fatal("Expected error for unknown model")
	}
	if !strings.Contains(err.Error(), "no-such-model") {
		t.Errorf("Error should name the model: %q", err.Error())
	}
	if !strings.Contains(err.Error(), "gemini-2.5-flash") {
		t.Errorf("Error should list available models: %q", err.Error())
	}
}

func TestDescribeMissingCredential(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	_, err := Describe(context.Background(), img, Request{Provider: ProviderGoogle, Model: "gemini-2.5-flash"}, DefaultRetryPolicy())
	if err == nil {
		t.Fatal("Expected error for missing credential")
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("Error should name the variable: %q", err.Error())
	}
	if !strings.Contains(err.Error(), "aistudio.google.com") {
		t.Errorf("Error should carry a remediation hint: %q", err.Error())
	}
}

func TestVisionErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	ve := &VisionError{Msg: "outer", Err: inner}
	if !errors.Is(ve, inner) {
		t.Error("Expected unwrap to inner error")
	}
}
