package ports

import "go.trai.ch/kiln/internal/core/domain"

// Walker walks directory trees for glob resolution.
//
//go:generate mockgen -source=walker.go -destination=mocks/mock_walker.go -package=mocks
type Walker interface {
	// Walk calls fn for root and every entry below it in lexical order.
	// Returning domain.ErrSkipDir from fn for a directory prunes it.
	Walk(root string, fn domain.WalkFunc) error
}
