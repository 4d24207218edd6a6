package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSchemaCommandWritesFile(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "schema", "snapshot.json")

	root := newRootCmd()
	root.SetArgs([]string{"schema", "--out", outPath})
	if err := root.Execute(); err != nil {
		t.Fatalf("schema command failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not json: %v", err)
	}
	if doc["title"] != "Snapshot Feed Message" {
		t.Fatalf("unexpected title %v", doc["title"])
	}
	entries, err := os.ReadDir(filepath.Dir(outPath))
	if err != nil {
		t.Fatalf("read schema dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the schema file, found %d entries", len(entries))
	}
}

func TestSchemaCommandStdout(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"schema"})
	if err := root.Execute(); err != nil {
		t.Fatalf("schema command failed: %v", err)
	}
	if !strings.Contains(out.String(), "Quaternion") {
		t.Fatalf("expected quaternion definition in schema output")
	}
}

func TestFollowRejectsExtraArgs(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"follow", "ws://a", "ws://b"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected argument validation error")
	}
}
