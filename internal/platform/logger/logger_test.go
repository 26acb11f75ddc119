package logger

import "testing"

func TestRedactMasksCredentialKeys(t *testing.T) {
	in := []interface{}{"api_key", "sk-123", "tenant_id", "abc", "Authorization", "Bearer x", "max_tokens", 64}
	out := redact(in)
	if out[1] != "[REDACTED]" {
		t.Fatalf("api_key: expected redacted got %v", out[1])
	}
	if out[3] != "abc" {
		t.Fatalf("tenant_id: expected passthrough got %v", out[3])
	}
	if out[5] != "[REDACTED]" {
		t.Fatalf("authorization: expected redacted got %v", out[5])
	}
	if out[7] != 64 {
		t.Fatalf("max_tokens: expected passthrough got %v", out[7])
	}
	if in[1] != "sk-123" {
		t.Fatalf("input slice must not be mutated")
	}
}

func TestNewTestModeIsNop(t *testing.T) {
	log, err := New("test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("discarded", "k", "v")
	log.With("component", "x").Warn("discarded")
	log.Sync()
}
