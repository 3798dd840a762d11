package watch

import (
	"go.uber.org/fx"

	"github.com/lambda-feedback/hotreload/util/logging"
)

func Module(terminal Terminal) fx.Option {
	return fx.Module(
		"watch",
		// provide the controlling terminal
		fx.Supply(terminal),
		// rename logger for module
		logging.DecorateLogger("watch"),
		// provide session
		fx.Provide(NewLifecycleSession),
		// invoke session
		fx.Invoke(func(*Session) {}),
	)
}
