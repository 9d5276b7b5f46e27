package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrUnknownTarget, "[GM-DLV-4040] unknown target"},
		{ErrUnknownTarget.WithDetails("/user/a"), "[GM-DLV-4040] unknown target: /user/a"},
		{ErrInvalidConfiguration.WithCause(errors.New("io")), "[GM-CFG-4000] invalid configuration"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestDomainError_CopiesLeaveSentinelAlone(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := ErrClusterUnavailable.WithDetails("3 contacts exhausted").WithCause(cause)

	if ErrClusterUnavailable.Details != "" || ErrClusterUnavailable.Cause != nil {
		t.Fatalf("sentinel modified: %+v", ErrClusterUnavailable)
	}
	if err.Details != "3 contacts exhausted" {
		t.Errorf("Details = %q, want %q", err.Details, "3 contacts exhausted")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if !errors.Is(err, ErrClusterUnavailable) {
		t.Error("errors.Is(err, ErrClusterUnavailable) = false, want true")
	}
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same code", NewDomainError("GM-T-1", "a"), NewDomainError("GM-T-1", "b"), true},
		{"other code", NewDomainError("GM-T-1", "a"), NewDomainError("GM-T-2", "a"), false},
		{"plain target", ErrUnknownTarget, errors.New("unknown target"), false},
		{"wrapped", fmt.Errorf("send: %w", ErrRateLimited.WithDetails("c1")), ErrRateLimited, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDomainError(t *testing.T) {
	wrapped := fmt.Errorf("deliver: %w", ErrUnknownTarget)
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"matching code", wrapped, "GM-DLV-4040", true},
		{"other code", wrapped, "GM-DLV-5020", false},
		{"any code", wrapped, "", true},
		{"plain error", errors.New("x"), "", false},
		{"nil", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDomainError(tt.err, tt.code); got != tt.want {
				t.Errorf("IsDomainError(%v, %q) = %v, want %v", tt.err, tt.code, got, tt.want)
			}
		})
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrHeartbeatTimeout, "GM-HBT-5041"},
		{fmt.Errorf("refresh: %w", ErrDiscoveryTimeout), "GM-DISC-5040"},
		{errors.New("plain"), ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := GetErrorCode(tt.err); got != tt.want {
			t.Errorf("GetErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestTemporary(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrDiscoveryTimeout, true},
		{ErrHeartbeatTimeout, true},
		{fmt.Errorf("send: %w", ErrClusterUnavailable), true},
		{ErrRateLimited.WithDetails("c1"), true},
		{ErrBufferOverflow, true},
		{ErrInvalidConfiguration, false},
		{ErrUnknownTarget, false},
		{ErrSessionStopped, false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := Temporary(tt.err); got != tt.want {
			t.Errorf("Temporary(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestLookupError(t *testing.T) {
	for code, want := range knownErrors {
		got, ok := LookupError(code)
		if !ok || got != want {
			t.Errorf("LookupError(%q) = %v, %v, want %v", code, got, ok, want)
		}
		if want.Message == "" {
			t.Errorf("%s has an empty message", code)
		}
	}
	if got := len(knownErrors); got != 11 {
		t.Errorf("len(knownErrors) = %d, want 11", got)
	}
	if _, ok := LookupError("GM-NOPE-0000"); ok {
		t.Error("LookupError(unknown) ok = true, want false")
	}
}
