package indexer

// Stats summarizes the current in-memory index, for CLI/status reporting.
type Stats struct {
	DocumentCount int
	VectorCount   int
	DeletedSlots  int
}

// Stats returns a snapshot of the current index size.
func (ix *Indexer) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Stats{
		DocumentCount: ix.tf.N(),
		VectorCount:   ix.vec.Len(),
		DeletedSlots:  len(ix.vec.DeletedSlots()),
	}
}

// Verify checks the persistent store's integrity. A non-nil error means
// the store is corrupted and a rebuild (Index after a fresh New) is
// needed.
func (ix *Indexer) Verify() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.db.IntegrityCheck()
}
