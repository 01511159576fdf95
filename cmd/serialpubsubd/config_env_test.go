package main

import (
	"os"
	"testing"
	"time"
)

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := &appConfig{
		serialDevice: "/dev/null",
		baud:         115200,
		rxBufferSize: 1024,
		ackTimeout:   500 * time.Millisecond,
		logFormat:    "text",
		logLevel:     "info",
	}

	os.Setenv("SERIALPUBSUBD_BAUD", "230400")
	os.Setenv("SERIALPUBSUBD_MDNS_ENABLE", "true")
	os.Setenv("SERIALPUBSUBD_ACK_TIMEOUT", "100ms")
	t.Cleanup(func() {
		os.Unsetenv("SERIALPUBSUBD_BAUD")
		os.Unsetenv("SERIALPUBSUBD_MDNS_ENABLE")
		os.Unsetenv("SERIALPUBSUBD_ACK_TIMEOUT")
	})
	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.baud != 230400 {
		t.Fatalf("expected baud override, got %d", base.baud)
	}
	if !base.mdnsEnable {
		t.Fatalf("expected mdnsEnable true")
	}
	if base.ackTimeout != 100*time.Millisecond {
		t.Fatalf("expected ackTimeout 100ms got %v", base.ackTimeout)
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := &appConfig{baud: 115200}
	os.Setenv("SERIALPUBSUBD_BAUD", "230400")
	t.Cleanup(func() { os.Unsetenv("SERIALPUBSUBD_BAUD") })
	if err := applyEnvOverrides(base, map[string]struct{}{"baud": {}}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if base.baud != 115200 {
		t.Fatalf("expected baud unchanged 115200 got %d", base.baud)
	}
}

func TestApplyEnvOverrides_BadInt(t *testing.T) {
	base := &appConfig{rxBufferSize: 1024}
	os.Setenv("SERIALPUBSUBD_RX_BUFFER", "notint")
	t.Cleanup(func() { os.Unsetenv("SERIALPUBSUBD_RX_BUFFER") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad integer")
	}
}

func TestValidate(t *testing.T) {
	cfg := &appConfig{
		logFormat:    "text",
		logLevel:     "info",
		baud:         115200,
		rxBufferSize: 1024,
		ackTimeout:   time.Second,
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg.logFormat = "xml"
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected error for bad log-format")
	}
	cfg.logFormat = "text"

	cfg.bridgeMap = "chan:topic"
	cfg.redisAddr = ""
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected error for bridge-map without redis-addr")
	}
}

func TestParseBridgeMap(t *testing.T) {
	pairs, err := parseBridgeMap("a:b, c:d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][2]string{{"a", "b"}, {"c", "d"}}
	if len(pairs) != len(want) {
		t.Fatalf("got %d pairs, want %d", len(pairs), len(want))
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Fatalf("pair %d = %v, want %v", i, pairs[i], want[i])
		}
	}

	if _, err := parseBridgeMap("bad-entry"); err == nil {
		t.Fatalf("expected error for entry missing colon")
	}
}
