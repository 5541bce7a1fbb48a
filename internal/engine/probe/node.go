package probe

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/cas"       //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/builder"
)

// NodeID is the unique identifier for the prober Graft node.
const NodeID graft.ID = "engine.probe"

func init() {
	graft.Register(graft.Node[*Prober]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{builder.NodeID, cas.NodeID, telemetry.TracerNodeID, logger.NodeID},
		Run: func(ctx context.Context) (*Prober, error) {
			b, err := graft.Dep[*builder.Builder](ctx)
			if err != nil {
				return nil, err
			}

			store, err := graft.Dep[ports.BuildInfoStore](ctx)
			if err != nil {
				return nil, err
			}

			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return New(b, store, tracer, log), nil
		},
	})
}
