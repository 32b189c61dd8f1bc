package profiles

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/pkg/logger"
)

var nameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9-_.]`)

// Profile summarises a saved pair for listings.
type Profile struct {
	Name    string `json:"name"`
	DB1Type string `json:"db1_type"`
	DB2Type string `json:"db2_type"`
	DB1     string `json:"db1"`
	DB2     string `json:"db2"`
}

// Manager reads and writes named profiles through a Store.
type Manager struct {
	store  Store
	logger *logger.Logger
}

func NewManager(store Store, log *logger.Logger) *Manager {
	if store == nil {
		store = NewFileStore(DefaultPath)
	}
	if log == nil {
		log = logger.NewLogger(false)
	}
	return &Manager{store: store, logger: log}
}

// Location describes where the profiles live.
func (m *Manager) Location() string {
	return m.store.Location()
}

// load returns the document; a missing or malformed one reads as empty.
func (m *Manager) load(ctx context.Context) (Document, error) {
	doc, err := m.store.Load(ctx)
	switch {
	case err == nil:
		return doc, nil
	case errs.IsNotFound(err):
		return Document{}, nil
	case errs.IsInvalidInput(err):
		m.logger.Warnf("Ignoring unreadable profiles at %s: %v", m.store.Location(), err)
		return Document{}, nil
	default:
		return nil, err
	}
}

// List returns every profile sorted by name.
func (m *Manager) List(ctx context.Context) ([]Profile, error) {
	doc, err := m.load(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Profile, 0, len(names))
	for _, name := range names {
		db1, db2 := doc[name].DB1, doc[name].DB2
		db1.ApplyDefaults()
		db2.ApplyDefaults()
		out = append(out, Profile{
			Name:    name,
			DB1Type: db1.Type,
			DB2Type: db2.Type,
			DB1:     db1.String(),
			DB2:     db2.String(),
		})
	}
	return out, nil
}

func (m *Manager) Get(ctx context.Context, name string) (Pair, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Pair{}, errs.New(errs.ErrKindInvalidInput, "profile name cannot be empty")
	}
	doc, err := m.load(ctx)
	if err != nil {
		return Pair{}, err
	}
	pair, ok := doc[name]
	if !ok {
		return Pair{}, errs.Newf(errs.ErrKindNotFound, "profile not found: %s", name)
	}
	return pair, nil
}

// Save stores pair under name, overwriting an existing profile. An empty
// name becomes "<db1 type>-<timestamp>". The stored name is returned.
func (m *Manager) Save(ctx context.Context, name string, pair Pair) (string, error) {
	for i, cfg := range []config.DatabaseConfig{pair.DB1, pair.DB2} {
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return "", fmt.Errorf("db%d: %w", i+1, err)
		}
	}

	base := strings.TrimSpace(name)
	if base == "" {
		base = fmt.Sprintf("%s-%s", config.NormalizeDatabaseType(pair.DB1.Type), time.Now().Format("20060102_150405"))
	}
	base = sanitizeName(base)

	doc, err := m.load(ctx)
	if err != nil {
		return "", err
	}
	if _, exists := doc[base]; exists {
		m.logger.Infof("Overwriting profile %q", base)
	}
	doc[base] = pair

	if err := m.store.Save(ctx, doc); err != nil {
		return "", err
	}
	return base, nil
}

func (m *Manager) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.New(errs.ErrKindInvalidInput, "profile name cannot be empty")
	}
	doc, err := m.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := doc[name]; !ok {
		return errs.Newf(errs.ErrKindNotFound, "profile not found: %s", name)
	}
	delete(doc, name)
	return m.store.Save(ctx, doc)
}

func sanitizeName(input string) string {
	cleaned := nameSanitizer.ReplaceAllString(input, "_")
	cleaned = strings.Trim(cleaned, "_")
	if cleaned == "" {
		return "profile"
	}
	return cleaned
}
