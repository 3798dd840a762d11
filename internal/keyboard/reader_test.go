package keyboard_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/lambda-feedback/hotreload/internal/execution/models"
	"github.com/lambda-feedback/hotreload/internal/keyboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

// flakyReader fails every other read.
type flakyReader struct {
	data  []byte
	calls int
}

func (f *flakyReader) Read(p []byte) (int, error) {
	f.calls++

	if f.calls%2 == 1 {
		return 0, errors.New("transient read error")
	}

	if len(f.data) == 0 {
		return 0, io.EOF
	}

	p[0] = f.data[0]
	f.data = f.data[1:]

	return 1, nil
}

func collect(sink <-chan models.Command) []byte {
	var keys []byte
	for cmd := range sink {
		keys = append(keys, cmd.Key)
	}
	return keys
}

func TestReader_Run_ForwardsEveryByte(t *testing.T) {
	sink := make(chan models.Command, 16)

	r := keyboard.NewReader(strings.NewReader("rR\nh"), zap.NewNop())

	err := r.Run(context.Background(), sink)
	require.NoError(t, err)
	close(sink)

	var cmds []models.Command
	for cmd := range sink {
		cmds = append(cmds, cmd)
	}

	assert.Equal(t, []models.Command{
		models.KeyInput('r'),
		models.KeyInput('R'),
		models.KeyInput('\n'),
		models.KeyInput('h'),
	}, cmds)
}

func TestReader_Run_SkipsFailedReads(t *testing.T) {
	sink := make(chan models.Command, 16)

	r := keyboard.NewReader(&flakyReader{data: []byte("abc")}, zap.NewNop())

	err := r.Run(context.Background(), sink)
	require.NoError(t, err)
	close(sink)

	assert.Equal(t, []byte("abc"), collect(sink))
}

func TestReader_Run_StopsOnContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	sink := make(chan models.Command)

	r := keyboard.NewReader(pr, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		errc <- r.Run(ctx, sink)
	}()

	go func() {
		_, _ = pw.Write([]byte("x"))
	}()

	// nobody drains the sink, so the reader blocks on the send
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not stop")
	}
}

func TestReader_Run_PassThroughProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		input := rapid.SliceOf(rapid.Byte()).Draw(rt, "input")

		sink := make(chan models.Command, len(input)+1)

		r := keyboard.NewReader(strings.NewReader(string(input)), zap.NewNop())

		require.NoError(rt, r.Run(context.Background(), sink))
		close(sink)

		got := collect(sink)
		if len(input) == 0 {
			assert.Empty(rt, got)
			return
		}

		assert.Equal(rt, input, got)
	})
}
