package ports

import "go.trai.ch/kiln/internal/core/domain"

// ImplicitInputStore persists the implicit inputs of the last successful build of each target.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type ImplicitInputStore interface {
	// Get returns the recorded inputs of t. The boolean is false when no record exists.
	Get(root string, t domain.Target) ([]string, bool, error)

	// Put records inputs for t, replacing any previous record.
	Put(root string, t domain.Target, inputs []string) error

	// Delete removes the record of t. A missing record is not an error.
	Delete(root string, t domain.Target) error
}
