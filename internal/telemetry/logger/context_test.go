package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestFrom(t *testing.T) {
	carried := Discard()
	fallback := Discard()

	tests := []struct {
		name     string
		ctx      context.Context
		fallback *slog.Logger
		want     *slog.Logger
	}{
		{"carried", WithLogger(context.Background(), carried), fallback, carried},
		{"fallback", context.Background(), fallback, fallback},
		{"default", context.Background(), nil, slog.Default()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := From(tt.ctx, tt.fallback); got != tt.want {
				t.Errorf("From() = %p, want %p", got, tt.want)
			}
		})
	}
}

func TestWithRequest(t *testing.T) {
	var buf bytes.Buffer
	base, err := New(Config{Level: "info", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithRequest(context.Background(), base, "req-abc")
	if got := RequestID(ctx); got != "req-abc" {
		t.Errorf("RequestID() = %q, want %q", got, "req-abc")
	}
	From(ctx, nil).Info("hello")

	if got, _ := decode(t, &buf)["request_id"].(string); got != "req-abc" {
		t.Errorf("logged request_id = %q, want %q", got, "req-abc")
	}
	if got := RequestID(context.Background()); got != "" {
		t.Errorf("RequestID(empty) = %q, want empty", got)
	}
}
