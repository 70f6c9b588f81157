package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type gatedMonitor struct {
	locker   sync.Mutex
	gate     chan struct{}
	received chan struct{}
	frames   [][]int16
	failWith error
	closed   bool
}

func newGatedMonitor() *gatedMonitor {
	return &gatedMonitor{
		gate:     make(chan struct{}),
		received: make(chan struct{}, 1),
	}
}

func (m *gatedMonitor) Write(_ context.Context, frame []int16) error {
	select {
	case m.received <- struct{}{}:
	default:
	}
	<-m.gate
	m.locker.Lock()
	defer m.locker.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.frames = append(m.frames, frame)
	return nil
}

func (m *gatedMonitor) Close() error {
	m.locker.Lock()
	defer m.locker.Unlock()
	m.closed = true
	return nil
}

func (m *gatedMonitor) Frames() [][]int16 {
	m.locker.Lock()
	defer m.locker.Unlock()
	return m.frames
}

func frame(v int16) []int16 {
	return []int16{v, v, v}
}

func TestMultiplexerDropsOldest(t *testing.T) {
	ctx := context.Background()
	mon := newGatedMonitor()
	m := NewMultiplexer(ctx, mon, NewRecording(), 4, nil)

	m.Enqueue(ctx, frame(0))
	select {
	case <-mon.received:
	case <-time.After(5 * time.Second):
		t.Fatal("the monitor worker did not pick up the first frame")
	}
	for i := 1; i <= 6; i++ {
		m.Enqueue(ctx, frame(int16(i)))
	}
	close(mon.gate)
	require.NoError(t, m.Close())

	require.True(t, mon.closed)
	require.Equal(t, [][]int16{frame(0), frame(3), frame(4), frame(5), frame(6)}, mon.Frames())
	require.Equal(t, MultiplexerStats{
		Enqueued: 7,
		Written:  5,
		Dropped:  2,
	}, m.Stats())
}

func TestMultiplexerMonitorFailure(t *testing.T) {
	ctx := context.Background()
	mon := newGatedMonitor()
	close(mon.gate)
	mon.failWith = fmt.Errorf("device unplugged")

	var (
		reportedLocker sync.Mutex
		reported       []error
	)
	recording := NewRecording()
	m := NewMultiplexer(ctx, mon, recording, DefaultQueueSize, func(_ context.Context, err error) {
		reportedLocker.Lock()
		defer reportedLocker.Unlock()
		reported = append(reported, err)
	})

	m.Enqueue(ctx, frame(1))
	m.Record([]int16{1, 2, 3}, [][]int16{frame(1)})
	m.Enqueue(ctx, frame(2))
	m.Record([]int16{4, 5, 6}, [][]int16{frame(2)})
	require.NoError(t, m.Close())

	reportedLocker.Lock()
	defer reportedLocker.Unlock()
	require.Len(t, reported, 2)
	for _, err := range reported {
		var monErr *ErrMonitorWrite
		require.True(t, errors.As(err, &monErr))
		require.ErrorIs(t, err, mon.failWith)
	}
	require.Equal(t, uint64(2), m.Stats().Failed)

	require.Equal(t, []int16{1, 2, 3, 4, 5, 6}, recording.Raw())
	require.Equal(t, []int16{1, 1, 1, 2, 2, 2}, recording.Processed())
}

func TestMultiplexerCloseStalledMonitor(t *testing.T) {
	ctx := context.Background()
	mon := newGatedMonitor()
	defer close(mon.gate)
	m := NewMultiplexer(ctx, mon, NewRecording(), DefaultQueueSize, nil)
	m.CloseTimeout = 50 * time.Millisecond

	m.Enqueue(ctx, frame(0))
	select {
	case <-mon.received:
	case <-time.After(5 * time.Second):
		t.Fatal("the monitor worker did not pick up the first frame")
	}
	m.Enqueue(ctx, frame(1))
	m.Enqueue(ctx, frame(2))

	closed := make(chan error, 1)
	go func() { closed <- m.Close() }()
	select {
	case err := <-closed:
		require.ErrorContains(t, err, "abandoned 2 frames")
	case <-time.After(5 * time.Second):
		t.Fatal("Close is blocked by a stalled monitor")
	}
	require.True(t, mon.closed)
	require.Equal(t, uint64(2), m.Stats().Dropped)
	require.Empty(t, mon.Frames())
}

func TestMultiplexerEnqueueAfterClose(t *testing.T) {
	ctx := context.Background()
	mon := newGatedMonitor()
	close(mon.gate)
	m := NewMultiplexer(ctx, mon, NewRecording(), 0, nil)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	m.Enqueue(ctx, frame(1))
	require.Empty(t, mon.Frames())
	require.Zero(t, m.Stats().Enqueued)
}

func TestRecording(t *testing.T) {
	r := NewRecording()
	require.Empty(t, r.Raw())
	require.Empty(t, r.Processed())

	r.Append([]int16{1, 2}, [][]int16{{10}, {20}})
	r.Append([]int16{3}, nil)
	r.AppendProcessed([]int16{30, 0})

	require.Equal(t, []int16{1, 2, 3}, r.Raw())
	require.Equal(t, []int16{10, 20, 30, 0}, r.Processed())
	require.Equal(t, RecordingStats{
		Chunks:           2,
		Frames:           3,
		RawSamples:       3,
		ProcessedSamples: 4,
	}, r.Stats())

	raw := r.Raw()
	raw[0] = 100
	require.Equal(t, int16(1), r.Raw()[0])
}
