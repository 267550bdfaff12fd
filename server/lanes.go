package server

import (
	"errors"
	"sync"
)

var ErrLanesClosed = errors.New("lanes closed")

// lanes runs jobs in submission order per key and different keys in
// parallel. A bridge connection uses one lane per chat server, so a slow
// lookup on one server never holds up another.
type lanes struct {
	queues  map[string]chan func()
	size    int
	wg      sync.WaitGroup
	sending sync.WaitGroup
	mutex   sync.Mutex
	closed  bool
}

func newLanes(size int) *lanes {
	if size <= 0 {
		size = 64
	}
	return &lanes{queues: make(map[string]chan func()), size: size}
}

// Submit enqueues job on the lane of key. It blocks while that lane is full
// without holding up other lanes.
func (l *lanes) Submit(key string, job func()) error {
	l.mutex.Lock()
	if l.closed {
		l.mutex.Unlock()
		return ErrLanesClosed
	}
	queue, ok := l.queues[key]
	if !ok {
		queue = make(chan func(), l.size)
		l.queues[key] = queue
		l.wg.Add(1)
		go l.run(queue)
	}
	// Close waits for in-flight sends before closing the queues
	l.sending.Add(1)
	l.mutex.Unlock()

	defer l.sending.Done()
	queue <- job
	return nil
}

func (l *lanes) run(queue chan func()) {
	defer l.wg.Done()
	for job := range queue {
		job()
	}
}

// Close stops accepting jobs and waits for the queued ones.
func (l *lanes) Close() {
	l.mutex.Lock()
	if l.closed {
		l.mutex.Unlock()
		return
	}
	l.closed = true
	l.mutex.Unlock()

	l.sending.Wait()
	for _, queue := range l.queues {
		close(queue)
	}
	l.wg.Wait()
}
