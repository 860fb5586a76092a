package indexer

// Stage enumerates the pipeline steps a run passes through, in order.
type Stage string

const (
	StageIdle     Stage = "idle"
	StageScanning Stage = "scanning"
	StageTFIDF    Stage = "tfidf"
	StageVectors  Stage = "vectors"
	StageComplete Stage = "complete"
	StageError    Stage = "error"
)

// Status reports the current or most recently finished run's progress.
// Progress is monotonically non-decreasing within a single RunID.
type Status struct {
	RunID        string
	IsIndexing   bool
	Stage        Stage
	Progress     int // 0-100
	TotalFiles   int
	IndexedFiles int
	CurrentFile  string
	Error        string
}

// ProgressFunc is the shape of a callback that takes a Status snapshot.
// Nothing in this package invokes one: run progress is observed by polling
// Indexer.Status.
type ProgressFunc func(Status)
