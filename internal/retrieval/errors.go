package retrieval

import "fmt"

// RetrievalErrorKind classifies why the Hybrid Retrieval Engine could not
// return a result at all (as opposed to degrading gracefully).
type RetrievalErrorKind string

const (
	KindNoBackend RetrievalErrorKind = "no_backend"
	KindCancelled RetrievalErrorKind = "cancelled"
	KindTimeout   RetrievalErrorKind = "timeout"
)

// RetrievalError wraps a hard query-time failure, per spec.md §4.8/§7.
type RetrievalError struct {
	Kind RetrievalErrorKind
	Err  error
}

func (e *RetrievalError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }
