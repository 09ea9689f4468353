package vectorstore

import (
	"path/filepath"
	"strings"
	"sync"
)

// Manager hands out per-owner stores and serializes all access to each one.
// Stores are loaded lazily on first use and kept in memory afterwards;
// every mutation is persisted before the owner lock is released.
type Manager struct {
	dir string
	dim int

	mu     sync.Mutex
	owners map[string]*ownerStore
}

type ownerStore struct {
	mu    sync.Mutex
	store *Store
}

func NewManager(dir string, dim int) *Manager {
	return &Manager{
		dir:    dir,
		dim:    dim,
		owners: make(map[string]*ownerStore),
	}
}

func (m *Manager) indexPath(owner string) string {
	return filepath.Join(m.dir, sanitizeOwner(owner)+".index")
}

func (m *Manager) metaPath(owner string) string {
	return filepath.Join(m.dir, sanitizeOwner(owner)+".json")
}

// sanitizeOwner keeps owner-derived filenames flat. Owner ids are uuids in
// practice but route input should not be trusted with path separators.
func sanitizeOwner(owner string) string {
	owner = strings.ReplaceAll(owner, "/", "_")
	owner = strings.ReplaceAll(owner, "\\", "_")
	owner = strings.ReplaceAll(owner, "..", "_")
	return owner
}

func (m *Manager) forOwner(owner string) *ownerStore {
	m.mu.Lock()
	defer m.mu.Unlock()

	os, ok := m.owners[owner]
	if !ok {
		os = &ownerStore{}
		m.owners[owner] = os
	}
	return os
}

func (m *Manager) loadLocked(owner string, os *ownerStore) *Store {
	if os.store == nil {
		os.store = Load(m.indexPath(owner), m.metaPath(owner), m.dim)
	}
	return os.store
}

// Add stores a batch of embeddings for one owner and persists the index.
// Vectors and entries must be parallel slices. Returns the assigned ids.
func (m *Manager) Add(owner string, vectors [][]float32, entries []Entry) ([]string, error) {
	os := m.forOwner(owner)
	os.mu.Lock()
	defer os.mu.Unlock()

	store := m.loadLocked(owner, os)

	ids := make([]string, 0, len(vectors))
	for i, v := range vectors {
		id, err := store.Add(v, entries[i])
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := store.Save(m.indexPath(owner), m.metaPath(owner)); err != nil {
		return nil, err
	}
	return ids, nil
}

// Search runs a filtered nearest-neighbour query against one owner's index
func (m *Manager) Search(owner string, query []float32, k int, filter func(Entry) bool) ([]Result, error) {
	os := m.forOwner(owner)
	os.mu.Lock()
	defer os.mu.Unlock()

	store := m.loadLocked(owner, os)
	return store.Search(query, k, filter)
}

// DeleteByDocument drops a document's vectors from the owner index,
// rebuilds it and persists the result. Returns the number removed.
func (m *Manager) DeleteByDocument(owner, documentID string) (int, error) {
	os := m.forOwner(owner)
	os.mu.Lock()
	defer os.mu.Unlock()

	store := m.loadLocked(owner, os)
	removed := store.DeleteByDocument(documentID)
	if removed == 0 {
		return 0, nil
	}

	if err := store.Save(m.indexPath(owner), m.metaPath(owner)); err != nil {
		return removed, err
	}
	return removed, nil
}

// Size returns the number of vectors currently indexed for an owner
func (m *Manager) Size(owner string) int {
	os := m.forOwner(owner)
	os.mu.Lock()
	defer os.mu.Unlock()

	return m.loadLocked(owner, os).Size()
}
