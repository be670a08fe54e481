package workers

import (
	"chat-sync/mocks"
	"chat-sync/runtime"
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSupervisor_RestartOnPanic(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	workerMock := mocks.NewMockWorker(ctrl)

	var calls atomic.Int32
	workerMock.EXPECT().
		Run(gomock.Any()).
		DoAndReturn(func(ctx context.Context) error {
			calls.Add(1)
			panic("boom")
		}).
		AnyTimes()

	sup := NewSupervisor(log, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	// Run returns once the context expires
	sup.Add(workerMock).Run(ctx)

	req.GreaterOrEqual(calls.Load(), int32(2))
}

func TestSupervisor_StopOnSuccess(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	workerMock := mocks.NewMockWorker(ctrl)

	// Given a worker running only once
	workerMock.EXPECT().
		Run(gomock.Any()).
		Return(nil).
		Times(1)

	sup := NewSupervisor(log, 50*time.Millisecond)

	done := make(chan struct{})
	go func() {
		sup.Add(workerMock).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
		// Then supervisor detected a success and stopped
	case <-time.After(500 * time.Millisecond):
		req.Fail("Supervisor should have stopped after worker success")
	}
}

func TestSupervisor_Restarts_EventLoop_And_Keeps_Queue(t *testing.T) {
	req := require.New(t)
	loop := runtime.NewEventLoop(slog.Default(), 8)
	sup := NewSupervisor(slog.Default(), 10*time.Millisecond).Add(loop)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	// Given a task that panics on the loop
	req.True(loop.Post(func() { panic("boom") }))

	// When another task is submitted
	ran := make(chan struct{})
	req.NoError(loop.Do(ctx, func() { close(ran) }))

	// Then the restarted loop ran it
	select {
	case <-ran:
	case <-time.After(time.Second):
		req.Fail("task was not run after restart")
	}

	sup.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("supervisor did not stop")
	}
	cancel()
}
