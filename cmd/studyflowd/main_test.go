package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRun_CheckValidConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "studyflow.hcl")
	if err := os.WriteFile(path, []byte("store {\n  driver = \"memory\"\n}\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	if err := run(context.Background(), &out, []string{"-config", path, "-check"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := out.String(); got != "configuration ok\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PLANNER_ATTEMPTS", "0")

	var out bytes.Buffer
	if err := run(context.Background(), &out, []string{"-check"}); err == nil {
		t.Fatal("expected a configuration error")
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), &out, []string{"-nope"}); err == nil {
		t.Fatal("expected a flag error")
	}
}
