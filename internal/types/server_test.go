package types

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestNewServer_Defaults(t *testing.T) {
	t.Parallel()

	s := NewServer()
	if s.ID == "" {
		t.Fatalf("id not generated")
	}
	if s.SSHPort != DefaultSSHPort || s.SOCKSPort != DefaultSOCKSPort {
		t.Fatalf("ports=%d/%d", s.SSHPort, s.SOCKSPort)
	}
	if filepath.Base(s.KeyPath) != "id_rsa" {
		t.Fatalf("key_path=%q", s.KeyPath)
	}
	if other := NewServer(); other.ID == s.ID {
		t.Fatalf("ids not unique: %s", s.ID)
	}
}

func TestServer_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Server
		want []string
	}{
		{
			name: "valid",
			in:   Server{Host: "example.com", User: "me", SSHPort: 22, SOCKSPort: 7070},
			want: nil,
		},
		{
			name: "empty",
			in:   Server{},
			want: []string{
				"Host is required",
				"User is required",
				"SSH port must be between 1 and 65535",
				"SOCKS port must be between 1 and 65535",
			},
		},
		{
			name: "ports out of range",
			in:   Server{Host: "h", User: "u", SSHPort: 65536, SOCKSPort: -1},
			want: []string{
				"SSH port must be between 1 and 65535",
				"SOCKS port must be between 1 and 65535",
			},
		},
		{
			name: "port bounds inclusive",
			in:   Server{Host: "h", User: "u", SSHPort: 1, SOCKSPort: 65535},
			want: nil,
		},
		{
			name: "missing user",
			in:   Server{Host: "h", SSHPort: 22, SOCKSPort: 1080},
			want: []string{"User is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Errors()
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("errors=%q want %q", got, tt.want)
			}
			if tt.in.Valid() != (len(tt.want) == 0) {
				t.Fatalf("valid=%v", tt.in.Valid())
			}
		})
	}
}

func TestServer_ErrorsDoesNotMutate(t *testing.T) {
	t.Parallel()

	in := Server{ID: "x", Host: "", User: "u", SSHPort: 0, SOCKSPort: 0}
	before := in
	_ = in.Errors()
	if in != before {
		t.Fatalf("record mutated: %+v", in)
	}
}

func TestServer_DisplayName(t *testing.T) {
	t.Parallel()

	s := Server{Host: "example.com", User: "me"}
	if got := s.DisplayName(); got != "me@example.com" {
		t.Fatalf("display=%q", got)
	}
	s.Alias = "Paris"
	if got := s.DisplayName(); got != "Paris" {
		t.Fatalf("display=%q", got)
	}
}

func TestServer_WithDefaults(t *testing.T) {
	t.Parallel()

	s := Server{Host: "h", User: "u", SSHPort: -5}.WithDefaults()
	if s.ID == "" {
		t.Fatalf("id not generated")
	}
	if s.SSHPort != -5 {
		t.Fatalf("explicit port overwritten: %d", s.SSHPort)
	}
	if s.SOCKSPort != DefaultSOCKSPort {
		t.Fatalf("socks_port=%d", s.SOCKSPort)
	}
	if s.KeyPath == "" {
		t.Fatalf("key_path not defaulted")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}

	if got := ExpandHome("~/.ssh/id_ed25519"); got != filepath.Join(home, ".ssh", "id_ed25519") {
		t.Fatalf("expanded=%q", got)
	}
	if got := ExpandHome("/etc/key"); got != "/etc/key" {
		t.Fatalf("absolute path changed: %q", got)
	}
	if got := ExpandHome("~other/key"); got != "~other/key" {
		t.Fatalf("other user path changed: %q", got)
	}
}
