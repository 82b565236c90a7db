package config

import "go.uber.org/fx"

// Module wires application and governance configuration.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewGovernanceConfigHolder,
	),
)
