package config

import "go.uber.org/fx"

// Module loads the storefront configuration once per process, from .env, environment and flags.
var Module = fx.Module("config",
	fx.Provide(Load),
)
