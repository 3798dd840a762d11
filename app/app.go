package app

import (
	"github.com/lambda-feedback/hotreload/config"
	"github.com/lambda-feedback/hotreload/internal/shell"
	"github.com/lambda-feedback/hotreload/util/conf"
	"github.com/lambda-feedback/hotreload/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
)

func New(ctx *cli.Context) (*shell.Shell, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, err
	}

	config, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return nil, err
	}

	sharedModule := fx.Module(
		"shared",
		// provide global config
		fx.Supply(config),
		// provide flutter config
		fx.Supply(config.Flutter),
		// provide watcher config
		fx.Supply(config.Watch),
	)

	return shell.New(log, sharedModule), nil
}
