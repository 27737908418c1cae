package indexer

import "fmt"

// IndexErrorKind classifies a Vector Indexer failure per spec.md §4.9's
// IndexError taxonomy.
type IndexErrorKind string

const (
	KindNotCreated        IndexErrorKind = "not_created"
	KindDimensionConflict IndexErrorKind = "dimension_conflict"
	KindProviderTransient IndexErrorKind = "provider_transient"
	KindProviderPermanent IndexErrorKind = "provider_permanent"
)

// IndexError wraps a provider or lifecycle failure with its retry
// classification.
type IndexError struct {
	Kind IndexErrorKind
	Err  error
}

func (e *IndexError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// Retryable reports whether the indexer's upsert loop should retry this
// error, per the exhausted-retries-become-Permanent clause.
func (e *IndexError) Retryable() bool { return e.Kind == KindProviderTransient }
