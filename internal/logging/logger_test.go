package logging_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kasikai/internal/logging"
)

func TestNewConsoleWritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "kasikai.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("pipeline started", logging.String("source", "test"))
	logger.Debug("should be suppressed")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "pipeline started") {
		t.Errorf("missing message: %q", text)
	}
	if !strings.Contains(text, "source=test") {
		t.Errorf("missing attribute: %q", text)
	}
	if strings.Contains(text, "should be suppressed") {
		t.Errorf("debug message not filtered: %q", text)
	}
}

func TestNewJSONFormat(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "kasikai.log")

	logger, err := logging.New(logging.Options{
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hello", logging.Int("count", 3))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	text := string(content)
	if !strings.Contains(text, `"msg":"hello"`) {
		t.Errorf("unexpected json output: %q", text)
	}
	if !strings.Contains(text, `"count":3`) {
		t.Errorf("missing attribute: %q", text)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestComponentPrefixInConsoleOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "kasikai.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatal(err)
	}

	component := logging.NewComponentLogger(logger, "ingest")
	component.Info("run finished")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "ingest: run finished") {
		t.Errorf("component prefix missing: %q", content)
	}
}

func TestErrorAttr(t *testing.T) {
	attr := logging.Error(errors.New("boom"))
	if attr.Key != "error" {
		t.Errorf("key = %q", attr.Key)
	}
	if got := attr.Value.Resolve().String(); !strings.Contains(got, "boom") {
		t.Errorf("value = %q", got)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger == nil {
		t.Fatal("expected logger")
	}
	logger.Info("discarded")
	logger.Error("also discarded")
}
