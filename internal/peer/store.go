package peer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Store persists registry snapshots: instance id to identity attributes.
type Store interface {
	Load(ctx context.Context) (map[string]map[string]string, error)
	Save(ctx context.Context, snapshot map[string]map[string]string) error
	Close() error
}

// Compile-time interface guards.
var (
	_ Store = (*YAMLStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// YAMLStore keeps the snapshot in a YAML document:
//
//	peers:
//	  <instance id>:
//	    hostname: ...
//	    addressing: ...
//	    mac: ...
type YAMLStore struct {
	path string
}

type yamlDocument struct {
	Peers map[string]map[string]string `yaml:"peers"`
}

// NewYAMLStore creates a store at path. The file is created on first Save.
func NewYAMLStore(path string) *YAMLStore {
	return &YAMLStore{path: path}
}

// Load reads the document. A missing file is an empty snapshot.
func (s *YAMLStore) Load(_ context.Context) (map[string]map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read peer store %q: %w", s.path, err)
	}

	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse peer store %q: %w", s.path, err)
	}
	if doc.Peers == nil {
		doc.Peers = map[string]map[string]string{}
	}
	return doc.Peers, nil
}

// Save writes the document through a temporary file and rename.
func (s *YAMLStore) Save(_ context.Context, snapshot map[string]map[string]string) error {
	data, err := yaml.Marshal(yamlDocument{Peers: snapshot})
	if err != nil {
		return fmt.Errorf("encode peer store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".peers-*.yaml")
	if err != nil {
		return fmt.Errorf("write peer store %q: %w", s.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write peer store %q: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write peer store %q: %w", s.path, err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// Close is a no-op.
func (s *YAMLStore) Close() error { return nil }
