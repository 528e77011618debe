package logutil

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogPathUnderConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	want := filepath.Join(home, ".config", "snag", logFileName)
	if got := logPath(); got != want {
		t.Errorf("Got %q, want %q", got, want)
	}
}

func TestSetupWritesToConfigDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	defer log.SetOutput(os.Stderr)

	Setup(true)
	log.Printf("rotation smoke entry")

	data, err := os.ReadFile(logPath())
	if err != nil {
		t.Fatalf("Expected log file in config dir: %v", err)
	}
	if !strings.Contains(string(data), "rotation smoke entry") {
		t.Error("Log entry missing from file")
	}
}

func TestRotateShiftsArchives(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, logFileName)

	write := func(p, content string) {
		t.Helper()
		if err := os.WriteFile(p, []byte(content), 0o666); err != nil {
			t.Fatal(err)
		}
	}
	write(path, "current oversized")
	write(archiveName(path, 1), "old-1")
	write(archiveName(path, 2), "old-2")
	write(archiveName(path, 3), "old-3")

	rotateIfNeeded(path, 4)

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Base file should have been rotated away")
	}
	got, err := os.ReadFile(archiveName(path, 1))
	if err != nil || string(got) != "current oversized" {
		t.Errorf("Archive .1 = %q (%v), want former base file", got, err)
	}
	got, _ = os.ReadFile(archiveName(path, 2))
	if string(got) != "old-1" {
		t.Errorf("Archive .2 = %q, want shifted old-1", got)
	}
	got, _ = os.ReadFile(archiveName(path, 3))
	if string(got) != "old-2" {
		t.Errorf("Archive .3 = %q, want shifted old-2; oldest must be discarded", got)
	}
}

func TestRotateLeavesSmallFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, logFileName)
	if err := os.WriteFile(path, []byte("tiny"), 0o666); err != nil {
		t.Fatal(err)
	}

	rotateIfNeeded(path, 1024)

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Small file must stay in place: %v", err)
	}
	if _, err := os.Stat(archiveName(path, 1)); !os.IsNotExist(err) {
		t.Error("No archive expected for a small file")
	}
}

func TestRedactKey(t *testing.T) {
	if got := RedactKey("sk-or-v1-1234567890"); got != "sk-o...7890" {
		t.Errorf("Got %q", got)
	}
	if got := RedactKey("short"); got != "********" {
		t.Errorf("Short keys must be fully masked, got %q", got)
	}
}
