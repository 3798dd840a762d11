// Package keyboard forwards terminal input to the supervised child.
package keyboard

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/lambda-feedback/hotreload/internal/execution/models"
	"go.uber.org/zap"
)

// Reader reads raw bytes from the terminal and emits one key input
// command per byte. It does not interpret the bytes, flutter owns the
// key bindings.
// retryDelay is the pause after a failed read, so a reader failing
// persistently does not spin.
const retryDelay = 50 * time.Millisecond

type Reader struct {
	in         *bufio.Reader
	retryDelay time.Duration
	log        *zap.Logger
}

func NewReader(in io.Reader, log *zap.Logger) *Reader {
	if log == nil {
		log = zap.NewNop()
	}

	return &Reader{
		in:         bufio.NewReader(in),
		retryDelay: retryDelay,
		log:        log.Named("keyboard"),
	}
}

// Run reads bytes until ctx is done or the input is exhausted. Failed
// reads skip the byte and are retried after a short delay. Run blocks
// on the underlying reader, so it is meant to be run on a dedicated
// goroutine.
func (r *Reader) Run(ctx context.Context, sink chan<- models.Command) error {
	failures := 0

	for {
		b, err := r.in.ReadByte()
		if errors.Is(err, io.EOF) {
			r.log.Debug("input closed, stop forwarding keys")
			return nil
		}
		if err != nil {
			// only the first of consecutive failures is logged
			if failures == 0 {
				r.log.Debug("failed to read key", zap.Error(err))
			}
			failures++

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.retryDelay):
			}
			continue
		}

		if failures > 0 {
			r.log.Debug("reading keys recovered", zap.Int("failures", failures))
			failures = 0
		}

		select {
		case sink <- models.KeyInput(b):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
