// Package statestore persists the document shared by the tool-call process
// and the presentation server. Every read goes to disk and every write is an
// atomic rename, so the two processes never see a half-written file.
package statestore

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

type Store struct {
	path   string
	logger *zap.Logger

	// mu serializes read-modify-write cycles inside one process.
	mu sync.Mutex
}

func New(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger.Named("statestore")}
}

func (s *Store) Path() string { return s.path }

// BackupPath is where a corrupt document is moved before starting over.
func (s *Store) BackupPath() string { return s.path + ".backup" }

// Read loads the document. It never fails: a missing or unreadable file
// yields an empty document and a corrupt one is moved aside first. Invalid
// selection or navigation entries are dropped and the corrected document is
// written back.
func (s *Store) Read() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Write replaces the document on disk. Failures are logged, not returned.
func (s *Store) Write(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save(doc)
}

// Update applies fn to the freshest on-disk document and writes the result
// when fn reports a change. It returns the document as fn left it.
func (s *Store) Update(fn func(Document) bool) Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	if fn(doc) {
		s.save(doc)
	}
	return doc
}

func (s *Store) load() Document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("state document unreadable", zap.String("path", s.path), zap.Error(err))
		}
		return NewDocument()
	}

	doc, err := parse(data)
	if err != nil {
		s.quarantine(err)
		return NewDocument()
	}

	if dropped := sanitize(doc); len(dropped) > 0 {
		s.logger.Warn("dropped invalid state entries", zap.Strings("keys", dropped))
		s.save(doc)
	}
	return doc
}

func parse(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("state document is not a JSON object")
	}
	return doc, nil
}

// sanitize removes selection and navigation values that cannot be decoded
// into complete, valid records.
func sanitize(doc Document) []string {
	var dropped []string
	if raw, ok := doc[keySelection]; ok {
		if _, err := decodeSelection(raw); err != nil {
			delete(doc, keySelection)
			dropped = append(dropped, keySelection)
		}
	}
	if raw, ok := doc[keyNavigation]; ok {
		if _, err := decodeNavigation(raw); err != nil {
			delete(doc, keyNavigation)
			dropped = append(dropped, keyNavigation)
		}
	}
	return dropped
}

func (s *Store) quarantine(cause error) {
	backup := s.BackupPath()
	if err := os.Rename(s.path, backup); err != nil {
		s.logger.Error("state document corrupt and could not be moved aside",
			zap.String("path", s.path), zap.NamedError("cause", cause), zap.Error(err))
		return
	}
	s.logger.Error("state document corrupt, starting fresh",
		zap.String("path", s.path), zap.String("backup", backup), zap.NamedError("cause", cause))
}

func (s *Store) save(doc Document) {
	if err := writeAtomic(s.path, doc); err != nil {
		s.logger.Error("write state document", zap.String("path", s.path), zap.Error(err))
	}
}

func writeAtomic(path string, doc Document) error {
	if doc == nil {
		doc = NewDocument()
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return err
	}
	pretty.WriteByte('\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(pretty.Bytes()); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
