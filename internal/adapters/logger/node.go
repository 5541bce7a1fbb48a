package logger

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the logger Graft node.
const NodeID graft.ID = "adapter.logger"

// EnvLog holds the log modes in effect before command line flags are parsed,
// such as while the configuration is discovered. See NewFromEnv.
const EnvLog = "KILN_LOG"

func init() {
	graft.Register(graft.Node[ports.Logger]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Logger, error) {
			return NewFromEnv(os.Getenv(EnvLog)), nil
		},
	})
}
