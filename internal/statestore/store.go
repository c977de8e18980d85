// Package statestore persists the provisioned inventory for a repository:
// which shared resources exist and which environments have pipelines. The
// document is the single source of truth for destroy and uninstall; its
// absence means init has not run.
//
// Writes go through a temp file and rename so a crash never leaves a partial
// document. There is no cross-process locking: the tool assumes a single
// operator on a single machine, matching the lifecycle of the file itself.
package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/segmentio/ksuid"

	apperrors "github.com/savaki/tf-bootstrap/internal/errors"
)

// DefaultFilename is the store location relative to the repository root.
const DefaultFilename = ".tf-bootstrap.json"

// Version is the document schema version.
const Version = "1"

// Environment is one provisioned pipeline environment.
type Environment struct {
	Name     string `json:"name"`
	WatchDir string `json:"watch_dir"`
	Branch   string `json:"branch"`
}

// Document is the on-disk inventory.
type Document struct {
	Version       string        `json:"version"`
	Repo          string        `json:"repo"`
	AWSRegion     string        `json:"aws_region"`
	S3Bucket      string        `json:"s3_bucket"`
	DynamoDBTable string        `json:"dynamodb_table"`
	IAMRole       string        `json:"iam_role"`
	Environments  []Environment `json:"environments"`
}

// Store reads and writes a Document at a fixed path.
type Store struct {
	path string
}

// New returns a Store backed by path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the store file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the document. A missing file yields ErrStateStoreMissing.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ErrStateStoreMissing
		}
		return nil, fmt.Errorf("failed to read state store: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse state store %s: %w", s.path, err)
	}
	return &doc, nil
}

// Save writes the document atomically (temp file + rename).
func (s *Store) Save(doc *Document) error {
	if doc.Version == "" {
		doc.Version = Version
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state store: %w", err)
	}
	data = append(data, '\n')

	tmp := filepath.Join(filepath.Dir(s.path), fmt.Sprintf(".%s.tmp-%s", filepath.Base(s.path), ksuid.New().String()))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state store: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace state store: %w", err)
	}
	return nil
}

// Delete removes the store file. Missing file is not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete state store: %w", err)
	}
	return nil
}

// AddEnvironment appends env, replacing any existing entry with the same
// name in place (last write wins, insertion order preserved).
func (d *Document) AddEnvironment(env Environment) {
	for i, existing := range d.Environments {
		if existing.Name == env.Name {
			d.Environments[i] = env
			return
		}
	}
	d.Environments = append(d.Environments, env)
}

// RemoveEnvironment deletes the named entry. Returns false if absent.
func (d *Document) RemoveEnvironment(name string) bool {
	for i, env := range d.Environments {
		if env.Name == name {
			d.Environments = append(d.Environments[:i], d.Environments[i+1:]...)
			return true
		}
	}
	return false
}

// FindEnvironment returns the named entry, or nil.
func (d *Document) FindEnvironment(name string) *Environment {
	for i := range d.Environments {
		if d.Environments[i].Name == name {
			return &d.Environments[i]
		}
	}
	return nil
}
