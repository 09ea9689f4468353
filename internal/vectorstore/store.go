package vectorstore

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"studyai-platform/utils"
)

// Entry is the metadata carried alongside one stored vector
type Entry struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	Filename   string `json:"filename"`
}

// Result is one search hit with its similarity score
type Result struct {
	Entry
	Score float64 `json:"score"`
}

// Store is a flat L2 index over one owner's chunk embeddings. Vectors and
// metadata live in parallel slices; position i in one corresponds to
// position i in the other. The store is not safe for concurrent use, the
// Manager serializes access per owner.
type Store struct {
	dim     int
	vectors [][]float32
	entries []Entry
}

type metadataFile struct {
	Dim     int     `json:"dim"`
	Entries []Entry `json:"entries"`
}

// NewStore creates an empty store for vectors of the given dimensionality
func NewStore(dim int) *Store {
	return &Store{dim: dim}
}

// Load reads a persisted store from the index/metadata file pair. Any read
// or decode failure yields an empty store: a corrupt index is recoverable
// by re-uploading documents, while a hard error would brick the owner.
func Load(indexPath, metaPath string, dim int) *Store {
	s := NewStore(dim)

	metaRaw, err := os.ReadFile(metaPath)
	if err != nil {
		return s
	}
	var meta metadataFile
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return s
	}

	blob, err := os.ReadFile(indexPath)
	if err != nil {
		return s
	}
	raw, err := utils.DecompressData(blob)
	if err != nil {
		return s
	}
	var vectors [][]float32
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&vectors); err != nil {
		return s
	}

	if len(vectors) != len(meta.Entries) {
		return s
	}
	if meta.Dim != 0 {
		s.dim = meta.Dim
	}

	s.vectors = vectors
	s.entries = meta.Entries
	return s
}

// Size returns the number of stored vectors
func (s *Store) Size() int {
	return len(s.vectors)
}

// Add stores one embedding with its metadata and returns the assigned id.
// The raw embedding is always retained so the index can be rebuilt after
// deletions without re-embedding surviving chunks.
func (s *Store) Add(vector []float32, entry Entry) (string, error) {
	if len(vector) != s.dim {
		return "", fmt.Errorf("vector dimension mismatch: got %d, want %d", len(vector), s.dim)
	}

	entry.ID = uuid.NewString()
	s.vectors = append(s.vectors, vector)
	s.entries = append(s.entries, entry)
	return entry.ID, nil
}

// Search returns up to k nearest entries by L2 distance, scored as
// 1/(1+distance) so higher is more similar. The filter, when non-nil,
// drops candidates after ranking; the scan overfetches so filtered
// searches still fill k where possible.
func (s *Store) Search(query []float32, k int, filter func(Entry) bool) ([]Result, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(query), s.dim)
	}
	if k <= 0 || len(s.vectors) == 0 {
		return nil, nil
	}

	type candidate struct {
		idx  int
		dist float64
	}
	candidates := make([]candidate, len(s.vectors))
	for i, v := range s.vectors {
		candidates[i] = candidate{idx: i, dist: l2Distance(query, v)}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})

	// Overfetch so exclusion filters do not starve the result set
	limit := k + 20
	if limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]Result, 0, k)
	for _, c := range candidates[:limit] {
		entry := s.entries[c.idx]
		if filter != nil && !filter(entry) {
			continue
		}
		results = append(results, Result{Entry: entry, Score: 1.0 / (1.0 + c.dist)})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// DeleteByDocument removes every vector belonging to a document and
// rebuilds the index from the survivors. Returns the number removed.
func (s *Store) DeleteByDocument(documentID string) int {
	keptVectors := s.vectors[:0]
	keptEntries := s.entries[:0]
	removed := 0

	for i, e := range s.entries {
		if e.DocumentID == documentID {
			removed++
			continue
		}
		keptVectors = append(keptVectors, s.vectors[i])
		keptEntries = append(keptEntries, e)
	}

	s.vectors = keptVectors
	s.entries = keptEntries
	return removed
}

// Save persists the store atomically: both files are written to temp paths
// and renamed into place, so a crash never leaves a torn pair readable.
func (s *Store) Save(indexPath, metaPath string) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s.vectors); err != nil {
		return fmt.Errorf("failed to encode vectors: %w", err)
	}
	blob, err := utils.CompressData(buf.Bytes())
	if err != nil {
		return err
	}

	metaRaw, err := json.Marshal(metadataFile{Dim: s.dim, Entries: s.entries})
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	if err := writeAtomic(indexPath, blob); err != nil {
		return err
	}
	return writeAtomic(metaPath, metaRaw)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
