package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("json", slog.LevelInfo, &buf)
	l.Info("hello", "key", "value")
	if !strings.Contains(buf.String(), `"key":"value"`) {
		t.Fatalf("output = %q, want it to contain key/value pair", buf.String())
	}
}

func TestNewTextFormatDefault(t *testing.T) {
	var buf bytes.Buffer
	l := New("unknown-format", slog.LevelInfo, &buf)
	l.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("output = %q, want text handler format", buf.String())
	}
}

func TestSetAndL(t *testing.T) {
	var buf bytes.Buffer
	custom := New("text", slog.LevelDebug, &buf)
	Set(custom)
	if L() != custom {
		t.Fatal("L() did not return the logger passed to Set")
	}
	Set(nil)
	if L() != custom {
		t.Fatal("Set(nil) should be a no-op")
	}
}
