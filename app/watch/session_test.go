package watch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/lambda-feedback/hotreload/config"
	"github.com/lambda-feedback/hotreload/internal/execution/dispatcher"
	"github.com/lambda-feedback/hotreload/internal/execution/supervisor"
	"github.com/lambda-feedback/hotreload/internal/execution/worker"
	"github.com/lambda-feedback/hotreload/util"
)

func TestExitCode(t *testing.T) {
	code := 3

	tests := map[string]struct {
		err  error
		want int
	}{
		"nil":            {nil, 0},
		"child exited 0": {&dispatcher.ChildExitError{Event: worker.ExitEvent{Code: new(int)}}, 0},
		"child exited 3": {&dispatcher.ChildExitError{Event: worker.ExitEvent{Code: &code}}, 3},
		"wrapped":        {errors.Join(errors.New("x"), &dispatcher.ChildExitError{Event: worker.ExitEvent{Code: &code}}), 3},
		"write failure":  {errors.New("broken pipe"), 1},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestSession_PropagatesChildExitCode(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	app := createApp(t, supervisor.Config{
		Binary:      "false",
		ProjectPath: dir,
		Debounce:    1000,
	}, Terminal{In: strings.NewReader(""), Out: &out, Err: &out})

	app.RequireStart()

	assert.Equal(t, 1, waitExitCode(t, app))

	app.RequireStop()

	assert.Contains(t, out.String(), "Auto-reload is now active")
}

func TestSession_ForwardsKeys(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, `read line; printf '%s' "$line" > out.txt; exit 4`)

	app := createApp(t, supervisor.Config{
		Binary:      "sh",
		ProjectPath: dir,
		Debounce:    1000,
	}, Terminal{In: strings.NewReader("hi\n"), Out: &bytes.Buffer{}, Err: &bytes.Buffer{}})

	app.RequireStart()

	assert.Equal(t, 4, waitExitCode(t, app))

	app.RequireStop()

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestSession_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, `read line; printf '%s' "$line" > out.txt`)

	app := createApp(t, supervisor.Config{
		Binary:      "sh",
		ProjectPath: dir,
		Debounce:    1000,
	}, Terminal{In: strings.NewReader(""), Out: &bytes.Buffer{}, Err: &bytes.Buffer{}})

	app.RequireStart()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.dart"), []byte("void main() {}"), 0o644))

	assert.Equal(t, 0, waitExitCode(t, app))

	app.RequireStop()

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "r", string(data))
}

func TestSession_StopKillsRunningChild(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, `exec sleep 300`)

	var sup *supervisor.Supervisor
	spawn := func(ctx context.Context, params supervisor.Params) (*supervisor.Supervisor, error) {
		s, err := supervisor.Spawn(ctx, params)
		sup = s
		return s, err
	}

	app := fxtest.New(t,
		fx.Supply(fx.Annotate(context.Background(), fx.As(new(context.Context)))),
		fx.Supply(zap.NewNop()),
		fx.Supply(supervisor.Config{Binary: "sh", ProjectPath: dir, Debounce: 1000}),
		fx.Supply(config.WatchConfig{}),
		fx.Supply(SupervisorFactoryFn(spawn)),
		Module(Terminal{In: strings.NewReader(""), Out: &bytes.Buffer{}, Err: &bytes.Buffer{}}),
	)

	app.RequireStart()
	require.NotNil(t, sup)

	pid := sup.Pid()
	require.True(t, util.IsProcessAlive(pid))

	select {
	case <-sup.Done():
		t.Fatal("child exited before the app was stopped")
	case <-time.After(100 * time.Millisecond):
	}

	app.RequireStop()

	select {
	case <-sup.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("child still running after stop")
	}

	assert.Eventually(t, func() bool {
		return !util.IsProcessAlive(pid)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSession_SpawnFailure(t *testing.T) {
	app := fx.New(
		fx.NopLogger,
		fx.Supply(fx.Annotate(context.Background(), fx.As(new(context.Context)))),
		fx.Supply(zap.NewNop()),
		fx.Supply(supervisor.Config{
			Binary:      "hotreload-missing-binary",
			ProjectPath: t.TempDir(),
		}),
		fx.Supply(config.WatchConfig{}),
		Module(Terminal{In: strings.NewReader(""), Out: &bytes.Buffer{}, Err: &bytes.Buffer{}}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.Error(t, app.Start(ctx))
}

func createApp(t *testing.T, flutter supervisor.Config, terminal Terminal) *fxtest.App {
	return fxtest.New(t,
		fx.Supply(fx.Annotate(context.Background(), fx.As(new(context.Context)))),
		fx.Supply(zap.NewNop()),
		fx.Supply(flutter),
		fx.Supply(config.WatchConfig{}),
		Module(terminal),
	)
}

// writeScript writes the script executed by `sh run` in dir.
func writeScript(t *testing.T, dir, script string) {
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run"), []byte(script+"\n"), 0o644))
}

func waitExitCode(t *testing.T, app *fxtest.App) int {
	select {
	case sig := <-app.Wait():
		return sig.ExitCode
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for shutdown")
		return -1
	}
}
