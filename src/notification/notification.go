package notification

import (
	"context"
	"log"
	"os/exec"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"
)

const notifyTimeout = 5 * time.Second

// truncate shortens s to at most limit bytes, backing off to a rune boundary
// so a multi-byte character is never split.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// Notify shows a best-effort desktop notification. Delivery failures are
// logged and never abort the run.
func Notify(title, message string) {
	message = truncate(message, 256)

	var err error
	switch runtime.GOOS {
	case "darwin":
		err = notifyMacOS(title, message)
	case "linux":
		err = notifyLinux(title, message)
	default:
		log.Printf("Notification: %s: %s", title, message)
		return
	}
	if err != nil {
		log.Printf("Notification delivery failed: %v", err)
	}
}

// Processing tells the user the screenshot is on its way to the model.
func Processing() {
	Notify("Snag", "Processing screenshot...")
}

// Success announces the copied result with a short preview.
func Success(text string) {
	Notify("Snag copied to clipboard", truncate(strings.TrimSpace(text), 100))
}

// Error surfaces a failure message.
func Error(message string) {
	Notify("Snag error", message)
}

func notifyMacOS(title, message string) error {
	title = strings.ReplaceAll(title, `"`, `\"`)
	message = strings.ReplaceAll(message, `"`, `\"`)
	script := `display notification "` + message + `" with title "` + title + `"`

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	return exec.CommandContext(ctx, "osascript", "-e", script).Run()
}

func notifyLinux(title, message string) error {
	if _, err := exec.LookPath("notify-send"); err != nil {
		log.Printf("Notification: %s: %s", title, message)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	return exec.CommandContext(ctx, "notify-send", "-a", "Snag", title, message).Run()
}
