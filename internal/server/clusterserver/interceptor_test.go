package clusterserver

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"connectrpc.com/connect"

	v1 "github.com/yndnr/gatemesh-go/api/receptionist/v1"
)

// mockStreamingHandlerConn implements connect.StreamingHandlerConn.
type mockStreamingHandlerConn struct {
	spec connect.Spec
	peer connect.Peer
}

func (m *mockStreamingHandlerConn) Spec() connect.Spec           { return m.spec }
func (m *mockStreamingHandlerConn) Peer() connect.Peer           { return m.peer }
func (m *mockStreamingHandlerConn) Receive(any) error            { return nil }
func (m *mockStreamingHandlerConn) RequestHeader() http.Header   { return http.Header{} }
func (m *mockStreamingHandlerConn) Send(any) error               { return nil }
func (m *mockStreamingHandlerConn) ResponseHeader() http.Header  { return http.Header{} }
func (m *mockStreamingHandlerConn) ResponseTrailer() http.Header { return http.Header{} }

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestNewInterceptors_NilLogger(t *testing.T) {
	if NewLoggingInterceptor(nil).logger == nil {
		t.Error("LoggingInterceptor logger = nil, want default")
	}
	if NewRecoveryInterceptor(nil).logger == nil {
		t.Error("RecoveryInterceptor logger = nil, want default")
	}
	if got := len(DefaultInterceptors(nil)); got != 2 {
		t.Errorf("len(DefaultInterceptors()) = %d, want 2", got)
	}
}

func TestLoggingInterceptor_WrapUnary(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
	}{
		{"success", nil, "level=DEBUG"},
		{"not found", connect.NewError(connect.CodeNotFound, errors.New("no such path")), "level=INFO"},
		{"internal", connect.NewError(connect.CodeInternal, errors.New("boom")), "level=ERROR"},
		{"plain error", errors.New("boom"), "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := bufferLogger()
			interceptor := NewLoggingInterceptor(logger)

			wrapped := interceptor.WrapUnary(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
				return connect.NewResponse(&struct{}{}), tt.err
			})

			_, err := wrapped(context.Background(), connect.NewRequest(&struct{}{}))
			if !errors.Is(err, tt.err) {
				t.Errorf("error = %v, want %v", err, tt.err)
			}
			if !strings.Contains(buf.String(), tt.wantLevel) {
				t.Errorf("log %q does not contain %q", buf.String(), tt.wantLevel)
			}
		})
	}
}

func TestLoggingInterceptor_ClientID(t *testing.T) {
	logger, buf := bufferLogger()
	wrapped := NewLoggingInterceptor(logger).WrapUnary(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		return connect.NewResponse(&v1.HeartbeatResponse{}), nil
	})

	if _, err := wrapped(context.Background(), connect.NewRequest(&v1.HeartbeatRequest{ClientID: "c-42"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "client_id=c-42") {
		t.Errorf("log %q does not carry the client id", buf.String())
	}
}

func TestLoggingInterceptor_WrapStreamingHandler(t *testing.T) {
	logger, buf := bufferLogger()
	interceptor := NewLoggingInterceptor(logger)

	conn := &mockStreamingHandlerConn{
		spec: connect.Spec{Procedure: "/gatemesh.receptionist.v1.ReceptionistService/WatchClusterClients"},
		peer: connect.Peer{Addr: "127.0.0.1:5000"},
	}

	called := false
	wrapped := interceptor.WrapStreamingHandler(func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		called = true
		return nil
	})
	if err := wrapped(context.Background(), conn); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected next handler to be called")
	}
	for _, want := range []string{"receptionist rpc stream started", "receptionist rpc stream completed"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log missing %q", want)
		}
	}
}

func TestLoggingInterceptor_WrapStreamingClient(t *testing.T) {
	interceptor := NewLoggingInterceptor(nil)

	called := false
	wrapped := interceptor.WrapStreamingClient(func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		called = true
		return nil
	})
	_ = wrapped(context.Background(), connect.Spec{})
	if !called {
		t.Error("expected next to be called")
	}
}

func TestRecoveryInterceptor_WrapUnary(t *testing.T) {
	tests := []struct {
		name     string
		next     connect.UnaryFunc
		wantCode connect.Code
	}{
		{
			name: "no panic",
			next: func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
				return connect.NewResponse(&struct{}{}), nil
			},
		},
		{
			name: "panic",
			next: func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
				panic("test panic")
			},
			wantCode: connect.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := bufferLogger()
			wrapped := NewRecoveryInterceptor(logger).WrapUnary(tt.next)

			_, err := wrapped(context.Background(), connect.NewRequest(&struct{}{}))
			if tt.wantCode == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if got := connect.CodeOf(err); got != tt.wantCode {
				t.Errorf("CodeOf(err) = %v, want %v", got, tt.wantCode)
			}
		})
	}
}

func TestRecoveryInterceptor_WrapStreamingHandler(t *testing.T) {
	logger, buf := bufferLogger()
	wrapped := NewRecoveryInterceptor(logger).WrapStreamingHandler(func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		panic("test panic")
	})

	conn := &mockStreamingHandlerConn{spec: connect.Spec{Procedure: "test.Service/Method"}}
	err := wrapped(context.Background(), conn)

	if got := connect.CodeOf(err); got != connect.CodeInternal {
		t.Errorf("CodeOf(err) = %v, want %v", got, connect.CodeInternal)
	}
	if !strings.Contains(buf.String(), "receptionist rpc stream panic recovered") {
		t.Error("panic was not logged")
	}
}
