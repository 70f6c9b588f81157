package capture

import (
	"sync"
)

// chunkQueue is a bounded FIFO of chunks: when it is full the oldest
// chunk is dropped and accounted in the Dropped field of the chunk
// that becomes the oldest one.
type chunkQueue struct {
	locker       sync.Mutex
	chunks       []Chunk
	limit        int
	droppedTotal uint64
	closed       bool
	notifyCh     chan struct{}
	closedCh     chan struct{}
}

func newChunkQueue(limit int) *chunkQueue {
	if limit < 1 {
		limit = 1
	}
	return &chunkQueue{
		limit:    limit,
		notifyCh: make(chan struct{}, 1),
		closedCh: make(chan struct{}),
	}
}

func (q *chunkQueue) Push(chunk Chunk) bool {
	q.locker.Lock()
	defer q.locker.Unlock()
	if q.closed {
		return false
	}

	if len(q.chunks) >= q.limit {
		oldest := q.chunks[0]
		q.chunks = q.chunks[1:]
		lost := uint64(len(oldest.Samples)) + oldest.Dropped
		q.droppedTotal += uint64(len(oldest.Samples))
		if len(q.chunks) > 0 {
			q.chunks[0].Dropped += lost
		} else {
			chunk.Dropped += lost
		}
	}
	q.chunks = append(q.chunks, chunk)

	select {
	case q.notifyCh <- struct{}{}:
	default:
	}
	return true
}

func (q *chunkQueue) Pop() (_ Chunk, ok bool, closed bool) {
	q.locker.Lock()
	defer q.locker.Unlock()
	if len(q.chunks) == 0 {
		return Chunk{}, false, q.closed
	}
	chunk := q.chunks[0]
	q.chunks = q.chunks[1:]
	return chunk, true, false
}

func (q *chunkQueue) DroppedTotal() uint64 {
	q.locker.Lock()
	defer q.locker.Unlock()
	return q.droppedTotal
}

func (q *chunkQueue) Close() {
	q.locker.Lock()
	defer q.locker.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.closedCh)
}
