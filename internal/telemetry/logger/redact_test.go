package logger

import (
	"bytes"
	"testing"
)

func TestRedactSensitive(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
		want  string
	}{
		{"secret key", "shared_secret", "s3cr3t", redactedValue},
		{"token key", "auth_token", "abc", redactedValue},
		{"authorization", "Authorization", "Bearer x", redactedValue},
		{"byte payload", "payload", []byte("hello world"), "[11 bytes]"},
		{"string payload", "body", "abc", "[3 bytes]"},
		{"empty secret kept", "secret", "", ""},
		{"normal value", "contact", "http://a:7400", "http://a:7400"},
		{"client id", "client_id", "gmcl_01h", "gmcl_01h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := New(Config{Level: "info", Output: &buf})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			l.Info("event", tt.key, tt.value)

			entry := decode(t, &buf)
			got, _ := entry[tt.key].(string)
			if got != tt.want {
				t.Errorf("%s = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestRedactSensitive_Group(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.WithGroup("req").Info("event", "password", "hunter2")

	entry := decode(t, &buf)
	group, ok := entry["req"].(map[string]any)
	if !ok {
		t.Fatalf("missing req group in %v", entry)
	}
	if got := group["password"]; got != redactedValue {
		t.Errorf("req.password = %v, want %q", got, redactedValue)
	}
}

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"password", true},
		{"API_SECRET", true},
		{"refresh_token", true},
		{"contact", false},
		{"path", false},
	}
	for _, tt := range tests {
		if got := IsSensitiveKey(tt.key); got != tt.want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestIsPayloadKey(t *testing.T) {
	if !IsPayloadKey("Payload") {
		t.Error("IsPayloadKey(Payload) = false, want true")
	}
	if IsPayloadKey("payload_size") {
		t.Error("IsPayloadKey(payload_size) = true, want false")
	}
}
