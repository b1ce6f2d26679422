package shell

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/logger"
	"go.trai.ch/kiln/internal/core/ports"
)

const (
	// NodeID is the unique identifier for the shared runner Graft node.
	NodeID graft.ID = "adapter.shell"
	// RunnerNodeID provides the runner as a ports.CommandRunner.
	RunnerNodeID graft.ID = "adapter.shell.runner"
	// TrackerNodeID provides the runner as a ports.ProcessTracker.
	TrackerNodeID graft.ID = "adapter.shell.tracker"
)

func init() {
	graft.Register(graft.Node[*Runner]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (*Runner, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewRunner(log), nil
		},
	})

	graft.Register(graft.Node[ports.CommandRunner]{
		ID:        RunnerNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{NodeID},
		Run: func(ctx context.Context) (ports.CommandRunner, error) {
			r, err := graft.Dep[*Runner](ctx)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
	})

	graft.Register(graft.Node[ports.ProcessTracker]{
		ID:        TrackerNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{NodeID},
		Run: func(ctx context.Context) (ports.ProcessTracker, error) {
			r, err := graft.Dep[*Runner](ctx)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
	})
}
