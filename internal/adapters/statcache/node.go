package statcache

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the stat cache Graft node.
const NodeID graft.ID = "adapter.stat_cache"

func init() {
	graft.Register(graft.Node[ports.StatCache]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.StatCache, error) {
			return New(), nil
		},
	})
}
