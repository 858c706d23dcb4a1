package engine

import "fmt"

// PartialBatchError reports that a batch completed but some files
// failed. It is returned alongside the full BatchResult; per-file
// causes live on the individual results.
type PartialBatchError struct {
	Failed int
	Total  int
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("batch finished with %d of %d files failed", e.Failed, e.Total)
}
