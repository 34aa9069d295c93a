package clock

import "go.uber.org/fx"

// Module provides the wall clock. Tests bypass fx and construct FixedClock
// directly.
var Module = fx.Module("clock",
	fx.Provide(func() Clock { return SystemClock{} }),
)
