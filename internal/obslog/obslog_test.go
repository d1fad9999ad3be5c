package obslog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewJSONConsole(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "debug", Format: "json", Console: true}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Debug("room_move", zap.String("room_id", "r1"))
	_ = l.Sync()

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if line["msg"] != "room_move" || line["room_id"] != "r1" || line["level"] != "debug" {
		t.Fatalf("unexpected line %v", line)
	}
}

func TestLevelFilterAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "server.log")
	l, err := New(Options{Level: "warn", File: path}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("hidden")
	l.Warn("shown")
	_ = l.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(b), "hidden") || !strings.Contains(string(b), "WARN | ") {
		t.Fatalf("log file %q", b)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestReplaceRestores(t *testing.T) {
	before := L()
	restore := Replace(zap.NewExample())
	if L() == before {
		t.Fatalf("logger not replaced")
	}
	restore()
	if L() != before {
		t.Fatalf("logger not restored")
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_TO_FILE", "true")
	t.Setenv("LOG_FILE", "")
	t.Setenv("LOG_FORMAT", "JSON")
	o := OptionsFromEnv()
	if o.File != filepath.Join("logs", "server.log") {
		t.Fatalf("file %q", o.File)
	}
	if normalizeFormat(o.Format) != "json" {
		t.Fatalf("format %q", o.Format)
	}
}
