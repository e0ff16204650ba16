package card

import (
	"github.com/rxbuddy/loyalty/internal/card/service"
	"go.uber.org/fx"
)

var Module = fx.Module("card.service",
	fx.Provide(service.NewService),
)
