package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		raw  string
		want EndpointID
	}{
		{"host1:7355", "http://host1:7355"},
		{"http://host1:7355/", "http://host1:7355"},
		{"  https://host2:7355  ", "https://host2:7355"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := NormalizeEndpoint(tt.raw); got != tt.want {
				t.Errorf("NormalizeEndpoint(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNewClientID(t *testing.T) {
	id := NewClientID()
	if !strings.HasPrefix(string(id), ClientIDPrefix) {
		t.Fatalf("NewClientID() = %q, want prefix %q", id, ClientIDPrefix)
	}
	if len(id) != len(ClientIDPrefix)+26 {
		t.Errorf("NewClientID() length = %d, want %d", len(id), len(ClientIDPrefix)+26)
	}
	if id == NewClientID() {
		t.Error("NewClientID() returned the same id twice")
	}
}

func TestServicePath_Validate(t *testing.T) {
	tests := []struct {
		path    ServicePath
		wantErr bool
	}{
		{"/user/serviceA", false},
		{"/serviceX", false},
		{"", true},
		{"/", true},
		{"user/serviceA", true},
		{"/user//serviceA", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.path), func(t *testing.T) {
			err := tt.path.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Validate() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestSessionState_String(t *testing.T) {
	tests := []struct {
		state SessionState
		want  string
	}{
		{StateEstablishing, "establishing"},
		{StateEstablished, "established"},
		{StateReestablishing, "reestablishing"},
		{StateStopped, "stopped"},
		{SessionState(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("SessionState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestNewRegistrationID(t *testing.T) {
	if got := NewRegistrationID("node-1", "/user/serviceA"); got != "node-1/user/serviceA" {
		t.Errorf("NewRegistrationID() = %q, want %q", got, "node-1/user/serviceA")
	}
}
