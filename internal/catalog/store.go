// Package catalog keeps the local, capacity-bounded list of saved rosters.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/models"
)

// Store persists saved rosters in most-recent-first order.
type Store interface {
	// List returns every roster, most recent first.
	List(ctx context.Context) ([]*models.SavedRoster, error)
	// Get returns one roster or a KindNotFound error.
	Get(ctx context.Context, id string) (*models.SavedRoster, error)
	// Insert puts r at the front and removes entries beyond capacity in the
	// same write. It returns the ids it evicted.
	Insert(ctx context.Context, r *models.SavedRoster, capacity int) ([]string, error)
	// Put overwrites an existing roster, keeping its position.
	Put(ctx context.Context, r *models.SavedRoster) error
	// Delete removes a roster and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	// ReplaceAll swaps the whole catalogue for rs, all or nothing.
	ReplaceAll(ctx context.Context, rs []*models.SavedRoster) error
	Close() error
}

// FileStore keeps the catalogue in a single JSON document.
type FileStore struct {
	path string

	mu      sync.RWMutex
	rosters []*models.SavedRoster
	loaded  bool
}

type fileDocument struct {
	Rosters []*models.SavedRoster `json:"rosters"`
}

// NewFileStore creates a FileStore backed by path. The file is created on
// first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// load reads the catalogue file. Callers hold mu.
func (fs *FileStore) load() error {
	if fs.loaded {
		return nil
	}
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			fs.rosters = nil
			fs.loaded = true
			return nil
		}
		return fmt.Errorf("reading catalogue %s: %w", fs.path, err)
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing catalogue %s: %w", fs.path, err)
	}
	fs.rosters = doc.Rosters
	fs.loaded = true
	return nil
}

// Reload discards the cached catalogue so the next call re-reads the file.
func (fs *FileStore) Reload() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.loaded = false
	return fs.load()
}

// write replaces the file through a temp file and rename. Callers hold mu.
func (fs *FileStore) write(rosters []*models.SavedRoster) error {
	if rosters == nil {
		rosters = []*models.SavedRoster{}
	}
	data, err := json.MarshalIndent(fileDocument{Rosters: rosters}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding catalogue: %w", err)
	}
	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating catalogue directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".rosters-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("writing catalogue: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing catalogue: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.path); err != nil {
		return fmt.Errorf("replacing catalogue: %w", err)
	}
	fs.rosters = rosters
	return nil
}

func (fs *FileStore) index(id string) int {
	return slices.IndexFunc(fs.rosters, func(r *models.SavedRoster) bool { return r.ID == id })
}

func (fs *FileStore) List(_ context.Context) ([]*models.SavedRoster, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.load(); err != nil {
		return nil, err
	}
	return cloneAll(fs.rosters), nil
}

func (fs *FileStore) Get(_ context.Context, id string) (*models.SavedRoster, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.load(); err != nil {
		return nil, err
	}
	i := fs.index(id)
	if i < 0 {
		return nil, notFound(id)
	}
	return fs.rosters[i].Clone(), nil
}

func (fs *FileStore) Insert(_ context.Context, r *models.SavedRoster, capacity int) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.load(); err != nil {
		return nil, err
	}
	if fs.index(r.ID) >= 0 {
		return nil, apperr.Newf(apperr.KindConflict, "save", "roster %s already exists", r.ID)
	}
	next := append([]*models.SavedRoster{r.Clone()}, fs.rosters...)
	var evicted []string
	if capacity > 0 && len(next) > capacity {
		for _, old := range next[capacity:] {
			evicted = append(evicted, old.ID)
		}
		next = next[:capacity]
	}
	return evicted, fs.write(next)
}

func (fs *FileStore) Put(_ context.Context, r *models.SavedRoster) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.load(); err != nil {
		return err
	}
	i := fs.index(r.ID)
	if i < 0 {
		return notFound(r.ID)
	}
	next := slices.Clone(fs.rosters)
	next[i] = r.Clone()
	return fs.write(next)
}

func (fs *FileStore) Delete(_ context.Context, id string) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.load(); err != nil {
		return false, err
	}
	i := fs.index(id)
	if i < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(fs.rosters), i, i+1)
	return true, fs.write(next)
}

func (fs *FileStore) ReplaceAll(_ context.Context, rs []*models.SavedRoster) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.loaded = true
	return fs.write(cloneAll(rs))
}

func (fs *FileStore) Close() error { return nil }

func cloneAll(rs []*models.SavedRoster) []*models.SavedRoster {
	out := make([]*models.SavedRoster, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

func notFound(id string) error {
	return apperr.Newf(apperr.KindNotFound, "catalog", "roster %s not found", id)
}

var _ Store = (*FileStore)(nil)
