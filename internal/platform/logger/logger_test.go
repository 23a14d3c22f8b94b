package logger

import (
	"testing"

	"go.uber.org/zap"
)

func TestSanitizeKVsRedactsCredentials(t *testing.T) {
	out := sanitizeKVs([]interface{}{"postgres_password", "hunter2", "user_id", "u-1", "dangling"})
	if len(out) != 5 {
		t.Fatalf("len: want=5 got=%d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("password value: want=[REDACTED] got=%v", out[1])
	}
	if out[3] != "u-1" {
		t.Fatalf("user_id value: want=u-1 got=%v", out[3])
	}
	if out[4] != "dangling" {
		t.Fatalf("dangling key: want=dangling got=%v", out[4])
	}
}

func TestNewTestModeIsSilent(t *testing.T) {
	log, err := New("test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.With("component", "x").Info("hello", "k", "v")
	log.Sync()
}

func TestNewHonorsLogLevel(t *testing.T) {
	cases := map[string]bool{"": true, "debug": true, "warn": false, "bogus": true}
	for raw, debugOn := range cases {
		t.Setenv("LOG_LEVEL", raw)
		log, err := New("production")
		if err != nil {
			t.Fatalf("New(LOG_LEVEL=%q): %v", raw, err)
		}
		if got := log.SugaredLogger.Desugar().Core().Enabled(zap.DebugLevel); got != debugOn {
			t.Fatalf("LOG_LEVEL=%q debug enabled: want=%v got=%v", raw, debugOn, got)
		}
	}
}
