package supervisor_test

import (
	"context"
	"sync"
	"time"

	"github.com/lambda-feedback/hotreload/internal/execution/worker"
	"github.com/stretchr/testify/mock"
)

// mockWorker records every write to the child's stdin as a separate chunk.
type mockWorker struct {
	mock.Mock

	mu       sync.Mutex
	writes   [][]byte
	writeAt  []time.Time
	writeErr error
	clock    *fakeClock

	done chan struct{}
}

func newMockWorker(clock *fakeClock) *mockWorker {
	return &mockWorker{
		clock: clock,
		done:  make(chan struct{}),
	}
}

var _ worker.Worker = (*mockWorker)(nil)

func (m *mockWorker) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockWorker) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return m.writeErr
	}

	m.writes = append(m.writes, append([]byte(nil), data...))
	if m.clock != nil {
		m.writeAt = append(m.writeAt, m.clock.Now())
	}

	return nil
}

func (m *mockWorker) CloseInput() error {
	return nil
}

func (m *mockWorker) Kill() error {
	return m.Called().Error(0)
}

func (m *mockWorker) Done() <-chan struct{} {
	return m.done
}

func (m *mockWorker) Wait(ctx context.Context) (worker.ExitEvent, error) {
	select {
	case <-ctx.Done():
		return worker.ExitEvent{}, ctx.Err()
	case <-m.done:
		code := 0
		return worker.ExitEvent{Code: &code}, nil
	}
}

func (m *mockWorker) Pid() int {
	return 4242
}

func (m *mockWorker) chunks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := make([]string, len(m.writes))
	for i, w := range m.writes {
		res[i] = string(w)
	}

	return res
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}
