package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the implicit input store Graft node.
const NodeID graft.ID = "adapter.implicit_input_store"

func init() {
	graft.Register(graft.Node[ports.ImplicitInputStore]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.ImplicitInputStore, error) {
			return NewStore(), nil
		},
	})
}
