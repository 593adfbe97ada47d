package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, target) {
		t.Errorf("output %q does not mention target", out)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[paths]") {
		t.Error("sample config missing paths section")
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("# existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error for existing config without --overwrite")
	}

	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatal(err)
	}
}

func TestConfigValidateWithDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	missing := filepath.Join(t.TempDir(), "nope.toml")

	out, err := runCommand(t, "--config", missing, "config", "validate")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Errorf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "defaults were used") {
		t.Errorf("expected defaults notice, got %q", out)
	}
}

func TestConfigShowPrintsTOML(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, err := runCommand(t, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "inbox_dir") {
		t.Errorf("resolved config missing inbox_dir: %q", out)
	}
}

func TestConfigPathPrintsResolvedPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	missing := filepath.Join(t.TempDir(), "nope.toml")

	out, err := runCommand(t, "--config", missing, "config", "path")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, missing) {
		t.Errorf("output %q does not mention resolved path", out)
	}
	if !strings.Contains(out, "defaults are in effect") {
		t.Errorf("expected missing-file notice, got %q", out)
	}
}

func TestRunsWithoutLedger(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, err := runCommand(t, "runs")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No runs recorded yet") {
		t.Errorf("unexpected output: %q", out)
	}
}
