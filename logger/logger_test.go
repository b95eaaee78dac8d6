package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"marketdash/config"

	"go.uber.org/zap"
)

// go test -v --run TestNewJSON
func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := newWithStdout(config.LogConfig{Level: "info", Format: "json", Environment: "prod"}, &buf)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	log.Debug("hidden")
	log.Info("tier failed", zap.String("tier", "live"))
	_ = log.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("stdout is not JSON: %v", err)
	}
	if entry["msg"] != "tier failed" || entry["tier"] != "live" || entry["logger"] != "marketdash" || entry["env"] != "prod" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNewConsoleInDev(t *testing.T) {
	var buf bytes.Buffer
	log, err := newWithStdout(config.LogConfig{Level: "debug", Format: "json", Environment: "dev"}, &buf)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	log.Debug("hello")
	_ = log.Sync()

	if strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected console output, got %q", buf.String())
	}
}

func TestNewInvalidLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestNewSampling(t *testing.T) {
	var buf bytes.Buffer
	log, err := newWithStdout(config.LogConfig{Level: "info", Format: "json", Environment: "prod", Sampling: true}, &buf)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for i := 0; i < 300; i++ {
		log.Info("quote served")
	}
	_ = log.Sync()

	n := strings.Count(buf.String(), "quote served")
	if n >= 300 || n < 100 {
		t.Errorf("expected sampled output, got %d entries", n)
	}
}

// go test -v --run TestNewWithFile
func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "marketdash.log")
	log, err := newWithStdout(config.LogConfig{Level: "info", OutputFile: path, Environment: "prod"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	log.Warn("written to file")
	_ = log.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"written to file"`) {
		t.Errorf("unexpected file content %q", b)
	}
}
