package router

import "go.uber.org/fx"

// Module builds the storefront gin engine served by the app's HTTP server.
var Module = fx.Module("router",
	fx.Provide(Setup),
)
