package tenantconfig

import (
	"github.com/rxbuddy/loyalty/internal/tenantconfig/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tenantconfig.service",
	fx.Provide(service.NewService),
)
