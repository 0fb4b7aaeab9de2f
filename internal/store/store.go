// Package store persists the saved servers as a YAML list in a single file.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/hegde-atri/chaussettes/internal/types"
)

// Store reads and writes servers.yml. Every call goes to disk, so edits made
// by hand while the app runs are picked up on the next read.
type Store struct {
	path string
	log  logrus.FieldLogger
}

// New returns a store backed by path; the file is created on first save
func New(path string, log logrus.FieldLogger) *Store {
	log.Debugf("Server store initialized. Config file: %s", path)
	return &Store{path: path, log: log}
}

// Path is the backing file
func (s *Store) Path() string {
	return s.path
}

// All returns every saved server; a missing file is an empty list
func (s *Store) All() ([]types.Server, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Debug("Config file does not exist, returning empty list")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read servers file: %w", err)
	}

	var servers []types.Server
	if err := yaml.Unmarshal(data, &servers); err != nil {
		return nil, fmt.Errorf("failed to parse servers file %s: %w", s.path, err)
	}
	for i := range servers {
		servers[i] = servers[i].WithDefaults()
	}

	s.log.Infof("Loaded %d server(s) from config", len(servers))
	return servers, nil
}

// Find looks a server up by ID
func (s *Store) Find(id string) (types.Server, bool, error) {
	servers, err := s.All()
	if err != nil {
		return types.Server{}, false, err
	}
	for _, server := range servers {
		if server.ID == id {
			return server, true, nil
		}
	}
	return types.Server{}, false, nil
}

// Save inserts server, or replaces the saved server with the same ID
func (s *Store) Save(server types.Server) error {
	s.log.Infof("Saving server: %s (ID: %s)", server.DisplayName(), server.ID)

	servers, err := s.All()
	if err != nil {
		return err
	}

	replaced := false
	for i := range servers {
		if servers[i].ID == server.ID {
			servers[i] = server
			replaced = true
			break
		}
	}
	if !replaced {
		servers = append(servers, server)
	}

	return s.write(servers)
}

// Delete removes the server with the given ID; unknown IDs are not an error
func (s *Store) Delete(id string) error {
	s.log.Infof("Deleting server with ID: %s", id)

	servers, err := s.All()
	if err != nil {
		return err
	}

	kept := servers[:0]
	for _, server := range servers {
		if server.ID != id {
			kept = append(kept, server)
		}
	}
	return s.write(kept)
}

// Clear removes every saved server
func (s *Store) Clear() error {
	s.log.Warn("Clearing all servers from config")
	return s.write(nil)
}

func (s *Store) write(servers []types.Server) error {
	if servers == nil {
		servers = []types.Server{}
	}
	data, err := yaml.Marshal(servers)
	if err != nil {
		return fmt.Errorf("failed to encode servers: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write servers file: %w", err)
	}

	s.log.Debugf("Wrote %d server(s) to config file", len(servers))
	return nil
}
