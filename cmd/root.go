package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lambda-feedback/hotreload/app"
	"github.com/lambda-feedback/hotreload/app/watch"
	"github.com/lambda-feedback/hotreload/config"
	"github.com/lambda-feedback/hotreload/internal/banner"
	"github.com/lambda-feedback/hotreload/internal/execution/supervisor"
	"github.com/lambda-feedback/hotreload/internal/project"
	"github.com/lambda-feedback/hotreload/internal/schema"
	"github.com/lambda-feedback/hotreload/internal/shell"
	"github.com/lambda-feedback/hotreload/util"
	"github.com/lambda-feedback/hotreload/util/conf"
	"github.com/lambda-feedback/hotreload/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	appName  = "hotreload"
	appUsage = "Run flutter and hot reload on every change to a .dart file."

	appDescription = `hotreload launches 'flutter run' in the given project directory
(defaults to the current directory) and sends a hot reload to
flutter whenever a .dart file below the project changes.

All keys typed into the terminal are forwarded to flutter, so
r, R, h and q keep working as usual.

Arguments after -- are passed to 'flutter run' verbatim.`

	rootApp = &cli.App{
		Name:            appName,
		Usage:           appUsage,
		UsageText:       "hotreload [options] [project-path] [-- flutter run args...]",
		Description:     appDescription,
		HideHelpCommand: true,
		Args:            true,
		ArgsUsage:       "[project-path]",
		Flags: []cli.Flag{
			// general flags
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "set the log level. Options: debug, info, warn, error, panic, fatal.",
				EnvVars: []string{"HOTRELOAD_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "set the log format. Options: development, production.",
				EnvVars: []string{"HOTRELOAD_LOG_FORMAT"},
			},
			&cli.PathFlag{
				Name:    "config",
				Usage:   "load options from a json configuration file.",
				EnvVars: []string{"HOTRELOAD_CONFIG"},
			},
			// flutter flags
			&cli.IntFlag{
				Name:     "debounce",
				Usage:    "the minimum interval between two hot reloads, in milliseconds.",
				Value:    supervisor.DefaultDebounce,
				Category: "flutter",
			},
			&cli.StringFlag{
				Name:     "device-id",
				Usage:    "the device to run the application on.",
				Aliases:  []string{"d"},
				Category: "flutter",
			},
			&cli.StringFlag{
				Name:     "flavor",
				Usage:    "the build flavor to run.",
				Aliases:  []string{"f"},
				Category: "flutter",
			},
			&cli.BoolFlag{
				Name:     "release",
				Usage:    "run the application in release mode.",
				Aliases:  []string{"r"},
				Category: "flutter",
			},
			&cli.BoolFlag{
				Name:     "profile",
				Usage:    "run the application in profile mode.",
				Category: "flutter",
			},
			// watcher flags
			&cli.BoolFlag{
				Name:     "poll",
				Usage:    "poll for changes instead of using file system notifications.",
				Category: "watch",
			},
		},
		Before: func(ctx *cli.Context) error {
			// create the logger
			log, err := createLogger(ctx)
			if err != nil {
				return err
			}

			// inject logger into cli context
			ctx.Context = logging.ContextWithLogger(ctx.Context, log)

			// parse config using defaults, file, env and flags
			cfg, err := parseConfig(ctx, log)
			if err != nil {
				return err
			}

			// inject the config into the cli context
			ctx.Context = conf.ContextWithConfig(ctx.Context, cfg)

			return nil
		},
		Action: rootAction,
		After: func(ctx *cli.Context) error {
			log, err := logging.LoggerFromContext(ctx.Context)
			if err != nil {
				return err
			}

			log.Sync()

			return nil
		},
		// exit codes are handled by run
		ExitErrHandler: func(*cli.Context, error) {},
	}
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version",
		Usage:              "print the version",
		DisableDefaultText: true,
	}
}

type ExecuteParams struct {
	Version  string
	Compiled time.Time
}

// Execute runs the cli and returns the exit code of the process.
func Execute(params ExecuteParams) int {
	rootApp.Version = params.Version
	rootApp.Compiled = params.Compiled

	return run(context.Background(), os.Args)
}

func run(ctx context.Context, args []string) int {
	args, passthrough := splitPassthrough(args)

	// flag parsing stops at the first positional argument,
	// so flags following the project path are moved before it
	args = hoistFlags(args, rootApp.Flags)

	ctx = contextWithPassthrough(ctx, passthrough)

	err := rootApp.RunContext(ctx, args)

	// if app exited without error, return
	if err == nil {
		return 0
	}

	errWriter := rootApp.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}

	return handleExitError(errWriter, err)
}

func rootAction(ctx *cli.Context) error {
	cfg, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return err
	}

	proj, err := project.Load(cfg.Flutter.ProjectPath)
	if errors.Is(err, project.ErrManifestNotFound) {
		return cli.Exit("Error: Not a valid Flutter project directory", 1)
	} else if err != nil {
		return err
	}

	banner.NewPrinter(ctx.App.Writer).Startup(banner.Info{
		ProjectPath: proj.Path,
		ProjectName: proj.Name,
		Description: proj.Description,
		DeviceID:    cfg.Flutter.DeviceID,
		Flavor:      cfg.Flutter.Flavor,
		Mode:        string(cfg.Flutter.Mode()),
		Args:        cfg.Flutter.Args,
	})

	// run flutter and watch the resolved directory
	cfg.Flutter.ProjectPath = proj.AbsPath
	ctx.Context = conf.ContextWithConfig(ctx.Context, cfg)

	app, err := app.New(ctx)
	if err != nil {
		return err
	}

	return app.Run(ctx.Context, watch.Module(watch.Terminal{
		In:  os.Stdin,
		Out: ctx.App.Writer,
		Err: ctx.App.ErrWriter,
	}))
}

func parseConfig(ctx *cli.Context, log *zap.Logger) (config.Config, error) {
	opts := conf.ParseOptions{
		Cli:       ctx,
		CliMap:    config.CliMap,
		Defaults:  config.DefaultConfig,
		EnvPrefix: config.EnvPrefix,
		FileName:  ctx.Path("config"),
		Log:       log,
	}

	if opts.FileName != "" {
		// the schema is embedded, failing to compile it is a bug
		opts.FileValidator = util.Must(schema.NewConfigSchema())
	}

	cfg, err := conf.Parse[config.Config](opts)
	if err != nil {
		return cfg, err
	}

	if ctx.NArg() > 1 {
		return cfg, cli.Exit(fmt.Sprintf("Error: unexpected argument %q, pass flutter arguments after --", ctx.Args().Get(1)), 1)
	}

	if ctx.Args().Present() {
		cfg.Flutter.ProjectPath = ctx.Args().First()
	}

	if err := cfg.Flutter.Validate(); err != nil {
		return cfg, cli.Exit(fmt.Sprintf("Error: %s", err), 1)
	}

	cfg.Flutter.Args = append(cfg.Flutter.Args, passthroughFromContext(ctx.Context)...)

	return cfg, nil
}

// handleExitError prints err and maps it to an exit code. Errors
// carrying an exit code, such as the exit of flutter, keep their code.
// Everything else is unexpected, reported and mapped to 1.
func handleExitError(w io.Writer, err error) int {
	var shellErr *shell.ExitError
	if errors.As(err, &shellErr) {
		if shellErr.Cause != nil {
			fmt.Fprintf(w, "Error: %s\n", shellErr.Cause)
			sentry.CaptureException(shellErr.Cause)
		}
		return shellErr.ExitCode()
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		if msg := exitCoder.Error(); msg != "" {
			fmt.Fprintln(w, msg)
		}
		return exitCoder.ExitCode()
	}

	fmt.Fprintf(w, "Error: %s\n", err)
	sentry.CaptureException(err)

	return 1
}

func createLogger(ctx *cli.Context) (*zap.Logger, error) {
	level := getLogLevelFromCLI(ctx)
	format := getLogFormatFromCLI(ctx)

	var config zap.Config
	if format == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	config.InitialFields = map[string]any{
		"app": appName,
	}

	config.Level = level

	return config.Build()
}

func getLogFormatFromCLI(ctx *cli.Context) string {
	format := ctx.String("log-format")
	if format != "" {
		return format
	}

	return "development"
}

// getLogLevelFromCLI defaults to warn, as logs share the
// terminal with the flutter ui.
func getLogLevelFromCLI(ctx *cli.Context) zap.AtomicLevel {
	lvl := ctx.String("log-level")

	if atom, err := zap.ParseAtomicLevel(lvl); err == nil && lvl != "" {
		return atom
	}

	return zap.NewAtomicLevelAt(zap.WarnLevel)
}
