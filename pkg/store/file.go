package store

import (
	"cmp"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/matzehuels/knotview/pkg/errors"
)

// FileStore keeps documents as JSON files in a directory.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
	now     func() time.Time
}

// NewFileStore creates a file store. If baseDir is empty it defaults to
// the user config directory (~/.config/knotview/grammars on Linux).
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("get config dir: %w", err)
		}
		baseDir = filepath.Join(dir, "knotview", "grammars")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create grammar dir: %w", err)
	}
	return &FileStore{baseDir: baseDir, now: time.Now}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.baseDir, name+".json")
}

func (s *FileStore) read(name string) (*Document, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("read grammar file: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse grammar document %s: %w", name, err)
	}
	return &doc, nil
}

func (s *FileStore) Get(_ context.Context, name string) (*Document, error) {
	if err := errors.ValidateIdentifier("grammar", name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(name)
}

func (s *FileStore) Put(_ context.Context, doc *Document) error {
	if err := errors.ValidateIdentifier("grammar", doc.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read(doc.Name)
	if err != nil && !stderrors.Is(err, ErrNotFound) {
		return err
	}
	stamp(doc, existing, s.now())

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal grammar document: %w", err)
	}
	// write then rename so readers never see a partial file
	tmp := s.path(doc.Name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write grammar file: %w", err)
	}
	if err := os.Rename(tmp, s.path(doc.Name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write grammar file: %w", err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read grammar dir: %w", err)
	}
	var out []Summary
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		doc, err := s.read(entry.Name()[:len(entry.Name())-len(".json")])
		if err != nil {
			continue
		}
		out = append(out, doc.Summary())
	}
	slices.SortFunc(out, func(a, b Summary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *FileStore) Delete(_ context.Context, name string) error {
	if err := errors.ValidateIdentifier("grammar", name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove grammar file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// Path returns the directory documents are stored in.
func (s *FileStore) Path() string { return s.baseDir }

var _ Store = (*FileStore)(nil)
