// Package sink fans processed audio out to the live monitor and to the
// session recording.
package sink

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/noisecancel/pkg/monitor"
	"github.com/xaionaro-go/observability"
)

const (
	DefaultQueueSize = 16

	// DefaultCloseTimeout bounds how long Close waits for the monitor.
	DefaultCloseTimeout = 2 * time.Second
)

type MultiplexerStats struct {
	Enqueued uint64
	Written  uint64
	Dropped  uint64
	Failed   uint64
}

// Multiplexer feeds the monitor from a separate goroutine behind a
// bounded queue, so a slow monitor never stalls the caller: when the
// queue is full the oldest frame is dropped. The recording never drops.
type Multiplexer struct {
	// CloseTimeout is how long Close waits for the queued frames to be
	// written and for the monitor to close. Frames still queued after
	// that are abandoned.
	CloseTimeout time.Duration

	ctx       context.Context
	monitor   monitor.Sink
	recording *Recording
	onError   func(context.Context, error)

	locker   sync.Mutex
	queue    [][]int16
	limit    int
	closing  bool
	notifyCh chan struct{}
	doneCh   chan struct{}

	closeOnce sync.Once
	closeErr  error

	enqueued atomic.Uint64
	written  atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64
}

// NewMultiplexer starts the monitor worker. onError (if not nil) is
// called from the worker goroutine with every *ErrMonitorWrite.
func NewMultiplexer(
	ctx context.Context,
	mon monitor.Sink,
	recording *Recording,
	queueSize int,
	onError func(context.Context, error),
) *Multiplexer {
	if mon == nil {
		mon = monitor.Discard
	}
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	m := &Multiplexer{
		CloseTimeout: DefaultCloseTimeout,
		ctx:          context.WithoutCancel(ctx),
		monitor:      mon,
		recording:    recording,
		onError:      onError,
		limit:        queueSize,
		notifyCh:     make(chan struct{}, 1),
		doneCh:       make(chan struct{}),
	}
	observability.Go(ctx, func() {
		defer close(m.doneCh)
		m.serve(m.ctx)
	})
	return m
}

func (m *Multiplexer) Recording() *Recording {
	return m.recording
}

// Enqueue hands a frame to the monitor worker. The frame must not be
// modified afterwards.
func (m *Multiplexer) Enqueue(ctx context.Context, frame []int16) {
	m.locker.Lock()
	defer m.locker.Unlock()
	if m.closing {
		logger.Debugf(ctx, "a frame was enqueued after the multiplexer was closed")
		return
	}
	m.enqueued.Add(1)
	if len(m.queue) >= m.limit {
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.dropped.Add(1)
	}
	m.queue = append(m.queue, frame)
	select {
	case m.notifyCh <- struct{}{}:
	default:
	}
}

// Record appends a captured chunk and all its processed frames to the
// recording as one unit.
func (m *Multiplexer) Record(raw []int16, frames [][]int16) {
	m.recording.Append(raw, frames)
}

func (m *Multiplexer) next() ([]int16, bool) {
	for {
		m.locker.Lock()
		if len(m.queue) > 0 {
			frame := m.queue[0]
			m.queue[0] = nil
			m.queue = m.queue[1:]
			m.locker.Unlock()
			return frame, true
		}
		closing := m.closing
		m.locker.Unlock()
		if closing {
			return nil, false
		}
		<-m.notifyCh
	}
}

func (m *Multiplexer) serve(ctx context.Context) {
	logger.Debugf(ctx, "monitor worker started")
	defer logger.Debugf(ctx, "/monitor worker finished")
	for {
		frame, ok := m.next()
		if !ok {
			return
		}
		if err := m.monitor.Write(ctx, frame); err != nil {
			m.failed.Add(1)
			err = &ErrMonitorWrite{Err: err}
			if m.onError != nil {
				m.onError(ctx, err)
			} else {
				logger.Warnf(ctx, "%v", err)
			}
			continue
		}
		m.written.Add(1)
	}
}

func (m *Multiplexer) Stats() MultiplexerStats {
	return MultiplexerStats{
		Enqueued: m.enqueued.Load(),
		Written:  m.written.Load(),
		Dropped:  m.dropped.Load(),
		Failed:   m.failed.Load(),
	}
}

// Close waits until the queued frames are handed to the monitor, stops
// the worker and closes the monitor. A monitor that does not keep up
// within CloseTimeout gets its remaining frames abandoned and an error
// is returned; Close itself never blocks for longer than about twice
// CloseTimeout.
func (m *Multiplexer) Close() error {
	m.closeOnce.Do(func() {
		m.locker.Lock()
		m.closing = true
		m.locker.Unlock()
		select {
		case m.notifyCh <- struct{}{}:
		default:
		}

		var mErr *multierror.Error
		timeout := m.CloseTimeout
		if timeout <= 0 {
			timeout = DefaultCloseTimeout
		}
		select {
		case <-m.doneCh:
		case <-time.After(timeout):
			abandoned := m.abandon()
			mErr = multierror.Append(mErr, fmt.Errorf("the monitor did not keep up within %v, abandoned %d frames", timeout, abandoned))
		}

		// closing the monitor also releases a write blocked in the worker
		closeErrCh := make(chan error, 1)
		observability.Go(m.ctx, func() {
			closeErrCh <- m.monitor.Close()
		})
		select {
		case err := <-closeErrCh:
			if err != nil {
				mErr = multierror.Append(mErr, fmt.Errorf("unable to close the monitor: %w", err))
			}
		case <-time.After(timeout):
			mErr = multierror.Append(mErr, fmt.Errorf("the monitor did not close within %v", timeout))
		}
		m.closeErr = mErr.ErrorOrNil()
	})
	return m.closeErr
}

// abandon drops every frame still in the queue.
func (m *Multiplexer) abandon() int {
	m.locker.Lock()
	defer m.locker.Unlock()
	count := len(m.queue)
	clear(m.queue)
	m.queue = m.queue[:0]
	m.dropped.Add(uint64(count))
	return count
}
