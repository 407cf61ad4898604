// Package ioruntime provides the process-wide worker pool and timer
// facility every asynchronous probe and server loop runs on (spec §4.1).
package ioruntime

import (
	"net"
	"runtime"
	"sync"
	"time"
)

// Task is a unit of work posted to the runtime.
type Task func()

// Cancellation cancels a scheduled timer. Calling it after the timer has
// already fired is a no-op.
type Cancellation func()

// Runtime is a pool of worker goroutines draining a task queue, plus timer
// scheduling helpers. It keeps running until Stop is called explicitly.
type Runtime struct {
	tasks   chan Task
	wg      sync.WaitGroup
	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	closing chan struct{}
	once    sync.Once
}

// New starts a Runtime with the given worker count. A count <= 0 defaults
// to max(4, NumCPU).
func New(workers int) *Runtime {
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 4 {
			workers = 4
		}
	}
	rt := &Runtime{
		tasks:   make(chan Task, 1024),
		timers:  make(map[*time.Timer]struct{}),
		closing: make(chan struct{}),
	}
	rt.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go rt.worker()
	}
	return rt
}

func (rt *Runtime) worker() {
	defer rt.wg.Done()
	for task := range rt.tasks {
		task()
	}
}

// Post submits a task for execution on a worker goroutine. No ordering is
// guaranteed relative to tasks submitted by other producers.
func (rt *Runtime) Post(task Task) {
	select {
	case <-rt.closing:
		return
	default:
	}
	select {
	case rt.tasks <- task:
	case <-rt.closing:
	}
}

// ScheduleAfter arms a one-shot timer that posts task to the runtime after
// d elapses. The returned Cancellation stops the timer; it is safe to call
// multiple times.
func (rt *Runtime) ScheduleAfter(d time.Duration, task Task) Cancellation {
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		rt.mu.Lock()
		delete(rt.timers, t)
		rt.mu.Unlock()
		rt.Post(task)
	})
	rt.mu.Lock()
	rt.timers[t] = struct{}{}
	rt.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.Stop()
			rt.mu.Lock()
			delete(rt.timers, t)
			rt.mu.Unlock()
		})
	}
}

// AcceptLoop accepts connections from listener and posts perConnTask for
// each to a worker. It returns when the listener is closed.
func (rt *Runtime) AcceptLoop(listener net.Listener, perConnTask func(net.Conn)) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-rt.closing:
				return
			default:
			}
			return
		}
		c := conn
		rt.Post(func() { perConnTask(c) })
	}
}

// Stop cancels all outstanding timers, closes the task queue and waits for
// workers to drain. It is idempotent.
func (rt *Runtime) Stop() {
	rt.once.Do(func() {
		close(rt.closing)
		rt.mu.Lock()
		for t := range rt.timers {
			t.Stop()
		}
		rt.timers = map[*time.Timer]struct{}{}
		rt.mu.Unlock()
		close(rt.tasks)
		rt.wg.Wait()
	})
}
