package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestNewEmitsRenamedKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "presaled", "test", slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("contribution admitted", MaskField("referrer", "0xabc"), MaskField("reason", "ok"))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["message"] != "contribution admitted" {
		t.Fatalf("unexpected message %v", line["message"])
	}
	if line["severity"] != "INFO" {
		t.Fatalf("unexpected severity %v", line["severity"])
	}
	if line["service"] != "presaled" || line["env"] != "test" {
		t.Fatalf("missing service attributes: %v", line)
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("missing timestamp")
	}
	if line["referrer"] != RedactedValue {
		t.Fatalf("expected referrer to be masked, got %v", line["referrer"])
	}
	if line["reason"] != "ok" {
		t.Fatalf("allowlisted key should pass through, got %v", line["reason"])
	}
}

func TestSetupWithOptionsWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presaled.log")
	logger, closer := SetupWithOptions("presaled", "", Options{File: path, MaxSizeMB: 1})
	logger.Warn("rotating sink")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte("rotating sink")) {
		t.Fatalf("log file missing entry: %s", data)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("%q: expected %v got %v", raw, want, got)
		}
	}
}

func TestMaskDSN(t *testing.T) {
	cases := map[string]string{
		"":                          "",
		"./presale-data/journal.db": "./presale-data/journal.db",
		"postgres://presale:hunter2@db:5432/ledger":           "postgres://presale:xxxxx@db:5432/ledger",
		"postgres://db:5432/ledger":                           "postgres://db:5432/ledger",
		"host=db user=presale password=hunter2 dbname=ledger": "host=db user=presale password=" + RedactedValue + " dbname=ledger",
	}
	for raw, want := range cases {
		if got := MaskDSN(raw); got != want {
			t.Fatalf("%q: expected %q got %q", raw, want, got)
		}
	}
}
