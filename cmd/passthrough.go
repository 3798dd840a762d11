package cmd

import (
	"context"
	"strings"

	"github.com/urfave/cli/v2"
)

type contextKey int

var passthroughKey = contextKey(0)

// splitPassthrough splits args at the first "--". Everything after it
// is passed to `flutter run` verbatim.
func splitPassthrough(args []string) ([]string, []string) {
	for i, arg := range args {
		if arg == "--" {
			return args[:i:i], args[i+1:]
		}
	}

	return args, nil
}

// hoistFlags moves all flags, and the values of flags taking one, in
// front of the positional arguments. args[0] is the program name.
func hoistFlags(args []string, flags []cli.Flag) []string {
	if len(args) < 2 {
		return args
	}

	valued := valueFlags(flags)

	var flagArgs, positional []string

	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		arg := rest[i]

		if arg == "-" || !strings.HasPrefix(arg, "-") {
			positional = append(positional, arg)
			continue
		}

		flagArgs = append(flagArgs, arg)

		name := strings.TrimLeft(arg, "-")
		if strings.Contains(name, "=") {
			continue
		}

		if valued[name] && i+1 < len(rest) {
			i++
			flagArgs = append(flagArgs, rest[i])
		}
	}

	hoisted := make([]string, 0, len(args))
	hoisted = append(hoisted, args[0])
	hoisted = append(hoisted, flagArgs...)
	return append(hoisted, positional...)
}

// valueFlags returns the names and aliases of all flags taking a value.
func valueFlags(flags []cli.Flag) map[string]bool {
	valued := make(map[string]bool)
	for _, flag := range flags {
		if _, ok := flag.(*cli.BoolFlag); ok {
			continue
		}
		for _, name := range flag.Names() {
			valued[name] = true
		}
	}
	return valued
}

func contextWithPassthrough(ctx context.Context, args []string) context.Context {
	return context.WithValue(ctx, passthroughKey, args)
}

func passthroughFromContext(ctx context.Context) []string {
	args, _ := ctx.Value(passthroughKey).([]string)
	return args
}
