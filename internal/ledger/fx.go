package ledger

import (
	"github.com/rxbuddy/loyalty/internal/ledger/store"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.store",
	fx.Provide(store.NewStore),
)
