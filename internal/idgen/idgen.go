// Package idgen provides the process-wide snowflake id generator.
package idgen

import (
	"github.com/bwmarrin/snowflake"
	"github.com/rxbuddy/loyalty/internal/config"
	"go.uber.org/fx"
)

// NewNode builds the generator. NodeID must be unique per running
// instance for ids to stay collision-free across replicas.
func NewNode(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

var Module = fx.Module("idgen",
	fx.Provide(NewNode),
)
