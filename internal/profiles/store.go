package profiles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/internal/objectstore"
)

const (
	DefaultPath      = "configs/profiles.yaml"
	DefaultObjectKey = "profiles.yaml"
)

// Pair is a named comparison: the two databases it connects to.
type Pair struct {
	DB1 config.DatabaseConfig `yaml:"db1" json:"db1"`
	DB2 config.DatabaseConfig `yaml:"db2" json:"db2"`
}

// Document is the whole persisted profile set, keyed by profile name.
type Document map[string]Pair

// Store loads and saves the profile document as a unit. Concurrent writers
// are last-writer-wins.
type Store interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
	Location() string
}

func decodeDocument(data []byte) (Document, error) {
	doc := Document{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed profile document", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

func encodeDocument(doc Document) ([]byte, error) {
	if doc == nil {
		doc = Document{}
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profiles: %w", err)
	}
	return data, nil
}

// FileStore keeps the document in a local YAML file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	return &FileStore{path: config.ExpandHome(path)}
}

func (s *FileStore) Location() string {
	return s.path
}

func (s *FileStore) Load(context.Context) (Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.Wrap(errs.ErrKindNotFound, "profile document not found", err)
		}
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	return decodeDocument(data)
}

func (s *FileStore) Save(_ context.Context, doc Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace profiles: %w", err)
	}
	return nil
}

// ObjectStore keeps the document as a single object in a bucket.
type ObjectStore struct {
	bucket objectstore.Bucket
	name   string
	key    string
}

func NewObjectStore(bucket objectstore.Bucket, bucketName, key string) *ObjectStore {
	if strings.TrimSpace(key) == "" {
		key = DefaultObjectKey
	}
	return &ObjectStore{bucket: bucket, name: bucketName, key: key}
}

func (s *ObjectStore) Location() string {
	return fmt.Sprintf("s3://%s/%s", s.name, s.key)
}

func (s *ObjectStore) Load(ctx context.Context) (Document, error) {
	data, err := s.bucket.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	return decodeDocument(data)
}

func (s *ObjectStore) Save(ctx context.Context, doc Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	return s.bucket.Put(ctx, s.key, data, "application/yaml")
}

// MemoryStore is an in-process Store, used by the HTTP server when no file
// is configured and by tests.
type MemoryStore struct {
	mu  sync.Mutex
	doc Document
}

func NewMemoryStore(initial Document) *MemoryStore {
	return &MemoryStore{doc: initial.clone()}
}

func (s *MemoryStore) Location() string {
	return "memory"
}

func (s *MemoryStore) Load(context.Context) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc.clone()
	return nil
}

func (d Document) clone() Document {
	out := make(Document, len(d))
	for name, pair := range d {
		out[name] = pair
	}
	return out
}
