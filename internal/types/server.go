package types

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	DefaultSSHPort   = 22
	DefaultSOCKSPort = 7070
)

// Server is a saved remote host and the parameters of the SOCKS tunnel to it
type Server struct {
	ID        string `yaml:"id"`
	Alias     string `yaml:"alias_name"`
	Host      string `yaml:"host" validate:"required"`
	User      string `yaml:"user" validate:"required"`
	SSHPort   int    `yaml:"ssh_port" validate:"min=1,max=65535"`
	SOCKSPort int    `yaml:"socks_port" validate:"min=1,max=65535"`
	KeyPath   string `yaml:"key_path"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// fieldMessages maps a failing struct field to the message shown to the user
var fieldMessages = map[string]string{
	"Host":      "Host is required",
	"User":      "User is required",
	"SSHPort":   "SSH port must be between 1 and 65535",
	"SOCKSPort": "SOCKS port must be between 1 and 65535",
}

// NewServer returns a server with a fresh ID and default ports and key path
func NewServer() Server {
	return Server{
		ID:        uuid.NewString(),
		SSHPort:   DefaultSSHPort,
		SOCKSPort: DefaultSOCKSPort,
		KeyPath:   DefaultKeyPath(),
	}
}

// DefaultKeyPath returns ~/.ssh/id_rsa expanded against the home directory
func DefaultKeyPath() string {
	return ExpandHome("~/.ssh/id_rsa")
}

// ExpandHome replaces a leading "~" with the user's home directory.
// The path is returned unchanged if the home directory is unknown.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// WithDefaults fills fields a stored record may have omitted.
// Explicitly invalid values (e.g. a negative port) are left alone so
// validation still reports them.
func (s Server) WithDefaults() Server {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.SSHPort == 0 {
		s.SSHPort = DefaultSSHPort
	}
	if s.SOCKSPort == 0 {
		s.SOCKSPort = DefaultSOCKSPort
	}
	if s.KeyPath == "" {
		s.KeyPath = DefaultKeyPath()
	}
	return s
}

// Valid reports whether host and user are set and both ports are in range
func (s Server) Valid() bool {
	return len(s.Errors()) == 0
}

// Errors returns the violated constraints, in field order
func (s Server) Errors() []string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := fieldMessages[fe.Field()]
		if !ok {
			msg = fmt.Sprintf("%s is invalid", fe.Field())
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

// DisplayName is the alias, or user@host when no alias is set
func (s Server) DisplayName() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Target()
}

// Target is the user@host destination passed to ssh
func (s Server) Target() string {
	return s.User + "@" + s.Host
}
