package watcher

// Op is a pending-change kind.
type Op int

const (
	OpAdd Op = iota
	OpUpdate
	OpDelete
)

// Change is one pending mutation accumulated between debounce flushes.
type Change struct {
	Op   Op
	Path string
}

// Queue is the insertion-ordered pending-change accumulator implementing
// the dedup policy: later events for the same path supersede
// earlier ones; add followed by delete cancels outright; add followed by
// update collapses to add (so a brand-new file that gets edited again
// before the next flush is still reported as a single add, not an
// add-then-update pair the TF-IDF core would reject).
type Queue struct {
	order []string
	byPath map[string]Op
}

func NewQueue() *Queue {
	return &Queue{byPath: make(map[string]Op)}
}

// Push records a new event for path, applying the collapse rules against
// whatever is already pending for that path.
func (q *Queue) Push(op Op, path string) {
	prev, exists := q.byPath[path]
	if !exists {
		q.order = append(q.order, path)
		q.byPath[path] = op
		return
	}

	switch {
	case prev == OpAdd && op == OpDelete:
		q.remove(path)
	case prev == OpAdd && op == OpUpdate:
		q.byPath[path] = OpAdd
	default:
		q.byPath[path] = op
	}
}

func (q *Queue) remove(path string) {
	delete(q.byPath, path)
	for i, p := range q.order {
		if p == path {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// Flush returns every pending change in insertion order and empties the
// queue.
func (q *Queue) Flush() []Change {
	if len(q.order) == 0 {
		return nil
	}
	changes := make([]Change, 0, len(q.order))
	for _, path := range q.order {
		changes = append(changes, Change{Op: q.byPath[path], Path: path})
	}
	q.order = nil
	q.byPath = make(map[string]Op)
	return changes
}

// Len reports the number of distinct paths currently pending.
func (q *Queue) Len() int {
	return len(q.order)
}
