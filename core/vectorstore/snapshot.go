package vectorstore

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SylphxAI/codebase-search/core/vectorstore/hnsw"
)

// graphSnapshot is the gob-encoded payload written to the vectors.hnsw file.
// It holds the graph config and the raw vectors keyed by slot key; layer
// assignments and adjacency are not stored. load rebuilds the graph by
// re-inserting every vector, so the rebuilt graph's random levels and edges
// are not those of the saved one.
type graphSnapshot struct {
	Config  hnsw.Config
	Vectors map[string][]float32
}

// sidecar mirrors the JSON metadata file shape: the document map, the
// bidirectional id<->slot maps, the logical-delete bitmap, and the
// next-slot counter, independent of the graph's own binary encoding.
type sidecar struct {
	Documents  []documentEntry `json:"documents"`
	IDToIndex  [][2]any        `json:"idToIndex"`
	IndexToID  [][2]any        `json:"indexToId"`
	Deleted    []int           `json:"deleted"`
	NextID     int             `json:"nextId"`
	Dimensions int             `json:"dimensions"`
}

// documentEntry is one [slot, {id, metadata}] pair. It marshals as a JSON
// two-element array rather than an object, matching the sidecar's tuple
// layout.
type documentEntry struct {
	Slot int
	ID   string
	Meta Metadata
}

func (e documentEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Slot, map[string]any{"id": e.ID, "metadata": e.Meta}})
}

func (e *documentEntry) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &e.Slot); err != nil {
		return err
	}
	var body struct {
		ID       string   `json:"id"`
		Metadata Metadata `json:"metadata"`
	}
	if err := json.Unmarshal(raw[1], &body); err != nil {
		return err
	}
	e.ID = body.ID
	e.Meta = body.Metadata
	return nil
}

// graphPath / metadataPath follow spec's fixed file-pair layout relative to
// a store directory: vectors.hnsw and vectors.hnsw.metadata.json.
func graphPath(dir string) string    { return filepath.Join(dir, "vectors.hnsw") }
func metadataPath(dir string) string { return filepath.Join(dir, "vectors.hnsw.metadata.json") }

// save writes both files atomically: each is written to a temp file in the
// same directory, then renamed into place, so a crash mid-write never
// leaves a half-written snapshot visible to a later load.
func (s *Store) save(dir string) error {
	s.mu.RLock()
	snap := graphSnapshot{Config: s.cfg, Vectors: vectorsOf(s.graph)}

	docs := make([]documentEntry, 0, len(s.docMeta))
	for slot, meta := range s.docMeta {
		docs = append(docs, documentEntry{Slot: slot, ID: s.slotToID[slot], Meta: meta})
	}
	idToIndex := make([][2]any, 0, len(s.idToSlot))
	for id, slot := range s.idToSlot {
		idToIndex = append(idToIndex, [2]any{id, slot})
	}
	indexToID := make([][2]any, 0, len(s.slotToID))
	for slot, id := range s.slotToID {
		indexToID = append(indexToID, [2]any{slot, id})
	}
	deleted := make([]int, 0, len(s.deleted))
	for slot := range s.deleted {
		deleted = append(deleted, slot)
	}
	side := sidecar{
		Documents:  docs,
		IDToIndex:  idToIndex,
		IndexToID:  indexToID,
		Deleted:    deleted,
		NextID:     s.nextSlot,
		Dimensions: s.cfg.Dimension,
	}
	s.mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("vectorstore: encode graph: %w", err)
	}
	if err := atomicWrite(graphPath(dir), buf.Bytes()); err != nil {
		return err
	}

	sideBytes, err := json.MarshalIndent(side, "", "  ")
	if err != nil {
		return fmt.Errorf("vectorstore: encode sidecar: %w", err)
	}
	return atomicWrite(metadataPath(dir), sideBytes)
}

// load reconstructs a Store from the file pair written by save. Returns an
// error wrapping hnsw.ErrDimensionMismatch if the snapshot's dimension
// disagrees with wantDimension (the configured embedding provider's width).
func load(dir string, wantDimension int) (*Store, error) {
	graphBytes, err := os.ReadFile(graphPath(dir))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: read graph: %w", err)
	}
	var snap graphSnapshot
	if err := gob.NewDecoder(bytes.NewReader(graphBytes)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("vectorstore: decode graph: %w", err)
	}

	sideBytes, err := os.ReadFile(metadataPath(dir))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: read sidecar: %w", err)
	}
	var side sidecar
	if err := json.Unmarshal(sideBytes, &side); err != nil {
		return nil, fmt.Errorf("vectorstore: decode sidecar: %w", err)
	}

	if wantDimension > 0 && side.Dimensions != wantDimension {
		return nil, fmt.Errorf("vectorstore: snapshot dimension %d does not match provider dimension %d: %w",
			side.Dimensions, wantDimension, hnsw.ErrDimensionMismatch)
	}

	s := New(snap.Config)
	for id, vec := range snap.Vectors {
		if err := s.graph.Insert(id, vec); err != nil {
			return nil, fmt.Errorf("vectorstore: rebuild graph: %w", err)
		}
	}

	s.docMeta = make(map[int]Metadata, len(side.Documents))
	for _, entry := range side.Documents {
		meta := entry.Meta
		meta.DocID = entry.ID
		s.docMeta[entry.Slot] = meta
	}
	s.idToSlot = make(map[string]int, len(side.IDToIndex))
	for _, pair := range side.IDToIndex {
		s.idToSlot[pair[0].(string)] = toInt(pair[1])
	}
	s.slotToID = make(map[int]string, len(side.IndexToID))
	for _, pair := range side.IndexToID {
		s.slotToID[toInt(pair[0])] = pair[1].(string)
	}
	s.deleted = make(map[int]struct{}, len(side.Deleted))
	for _, slot := range side.Deleted {
		s.deleted[slot] = struct{}{}
	}
	s.nextSlot = side.NextID

	s.keyToSlot = make(map[string]int, len(s.slotToID))
	for slot, id := range s.slotToID {
		s.keyToSlot[slotKeyFor(id, slot)] = slot
	}
	return s, nil
}

func vectorsOf(g *hnsw.Graph) map[string][]float32 {
	out := make(map[string][]float32)
	for _, id := range g.IDs() {
		if v, ok := g.Vector(id); ok {
			out[id] = v
		}
	}
	return out
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("vectorstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("vectorstore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vectorstore: close temp file: %w", err)
	}
	return os.Rename(tmpPath, path)
}
