// Package dedup provides the fingerprint-based membership test that
// prevents re-ingestion of the same real-world instrument.
//
// The index is deliberately batch-scoped state, not a process-wide
// singleton: the orchestrator hydrates one from the instrument store at
// batch start and discards it at batch end, so batches stay isolated
// and testable. It carries no internal synchronization and relies on
// the pipeline's single-writer discipline: only the sequential
// dedup/persist stage of one batch touches it.
package dedup

// Index answers whether a dedup key has been seen before
type Index struct {
	keys map[string]struct{}
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{keys: make(map[string]struct{})}
}

// NewIndexFromKeys hydrates an index from previously persisted keys.
// Loading once per batch avoids a per-document store round trip across
// batches of up to ~1500 documents.
func NewIndexFromKeys(keys []string) *Index {
	ix := &Index{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		ix.keys[k] = struct{}{}
	}
	return ix
}

// Seen reports whether the key identifies an already-ingested instrument
func (ix *Index) Seen(key string) bool {
	_, ok := ix.keys[key]
	return ok
}

// Record marks a key as ingested
func (ix *Index) Record(key string) {
	ix.keys[key] = struct{}{}
}

// Len returns the number of recorded keys
func (ix *Index) Len() int {
	return len(ix.keys)
}
