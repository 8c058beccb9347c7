package workers

import (
	"errors"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"photo-gallery/internal/logging"
)

// Priority selects the lane a task is queued on. Lower values drain first.
type Priority uint8

const (
	// High is for work the user is looking at right now.
	High Priority = iota
	// Normal is the default lane.
	Normal
	// Low is for speculative work such as prefetch.
	Low

	numLanes = 3
)

// String returns the lane name used in logs and metric labels.
func (p Priority) String() string {
	switch p {
	case High:
		return "high"
	case Normal:
		return "normal"
	case Low:
		return "low"
	default:
		return "unknown"
	}
}

// Task is a unit of work. It receives the lane it was dequeued from so it can
// adjust its own behaviour (for example background I/O on the Low lane).
type Task func(lane Priority)

// ErrPoolClosed is returned when submitting to a pool after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Idle loop tuning: a worker re-checks the queues this many times before
// yielding, then yields this many times before blocking on the condition.
const (
	spinCount  = 64
	yieldCount = 256
)

// PoolObserver receives pool events. The metrics package implements it.
type PoolObserver interface {
	TaskSubmitted(lane Priority, n int)
	TaskCompleted(lane Priority)
	TaskPanicked(lane Priority)
	TasksPurged(lane Priority, n int)
}

// PoolOptions configures a Pool.
type PoolOptions struct {
	// Workers is the number of goroutines. Zero means ForDecode().
	Workers int
	// ThreadPriority raises/lowers the OS thread priority per lane while a
	// task runs. Only honoured on platforms that support it.
	ThreadPriority bool
	// Observer is optional.
	Observer PoolObserver
}

// Pool is a fixed-size worker pool draining three FIFO lanes in strict
// priority order. All lane state is guarded by mu; pending and active are
// mirrored into atomics so the counters can be read without the lock.
type Pool struct {
	mu    sync.Mutex
	work  *sync.Cond
	idle  *sync.Cond
	lanes [numLanes]lane

	pending   atomic.Int64
	active    atomic.Int64
	completed atomic.Uint64
	closed    atomic.Bool

	threads        int
	threadPriority bool
	observer       PoolObserver
	wg             sync.WaitGroup
}

// NewPool starts a pool with the given options.
func NewPool(opts PoolOptions) *Pool {
	n := opts.Workers
	if n <= 0 {
		n = ForDecode()
	}

	p := &Pool{
		threads:        n,
		threadPriority: opts.ThreadPriority,
		observer:       opts.Observer,
	}
	p.work = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker()
	}

	logging.Debug("Worker pool started with %d workers (GOMAXPROCS=%d)", n, runtime.GOMAXPROCS(0))
	return p
}

// Submit appends a task to the back of its lane.
func (p *Pool) Submit(t Task, prio Priority) error {
	return p.enqueue(t, prio, false)
}

// SubmitFront puts a task at the front of its lane so it runs before anything
// already queued at the same priority.
func (p *Pool) SubmitFront(t Task, prio Priority) error {
	return p.enqueue(t, prio, true)
}

func (p *Pool) enqueue(t Task, prio Priority, front bool) error {
	if t == nil {
		return nil
	}
	prio = clampLane(prio)

	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if front {
		p.lanes[prio].pushFront(t)
	} else {
		p.lanes[prio].pushBack(t)
	}
	p.pending.Add(1)
	p.mu.Unlock()

	p.work.Signal()
	if p.observer != nil {
		p.observer.TaskSubmitted(prio, 1)
	}
	return nil
}

// SubmitBatch queues all tasks on one lane under a single lock acquisition and
// wakes every idle worker.
func (p *Pool) SubmitBatch(tasks []Task, prio Priority) error {
	if len(tasks) == 0 {
		return nil
	}
	prio = clampLane(prio)

	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	n := 0
	for _, t := range tasks {
		if t == nil {
			continue
		}
		p.lanes[prio].pushBack(t)
		n++
	}
	p.pending.Add(int64(n))
	p.mu.Unlock()

	p.work.Broadcast()
	if p.observer != nil && n > 0 {
		p.observer.TaskSubmitted(prio, n)
	}
	return nil
}

// PurgeAll drops every queued task. Running tasks are not interrupted.
// It returns the number of tasks removed.
func (p *Pool) PurgeAll() int {
	total := 0
	for prio := Priority(0); prio < numLanes; prio++ {
		total += p.PurgePriority(prio)
	}
	return total
}

// PurgePriority drops every queued task on one lane and returns how many were
// removed.
func (p *Pool) PurgePriority(prio Priority) int {
	prio = clampLane(prio)

	p.mu.Lock()
	n := p.lanes[prio].clear()
	p.pending.Add(-int64(n))
	if p.pending.Load() == 0 && p.active.Load() == 0 {
		p.idle.Broadcast()
	}
	p.mu.Unlock()

	if p.observer != nil && n > 0 {
		p.observer.TasksPurged(prio, n)
	}
	return n
}

// WaitIdle blocks until no task is queued or running.
func (p *Pool) WaitIdle() {
	p.mu.Lock()
	for p.pending.Load() > 0 || p.active.Load() > 0 {
		p.idle.Wait()
	}
	p.mu.Unlock()
}

// ThreadCount returns the number of worker goroutines.
func (p *Pool) ThreadCount() int { return p.threads }

// PendingCount returns the number of queued tasks across all lanes.
func (p *Pool) PendingCount() int { return int(p.pending.Load()) }

// ActiveCount returns the number of tasks currently executing.
func (p *Pool) ActiveCount() int { return int(p.active.Load()) }

// CompletedCount returns how many tasks have finished, including ones that
// panicked.
func (p *Pool) CompletedCount() uint64 { return p.completed.Load() }

// LaneCount returns the number of tasks queued on one lane.
func (p *Pool) LaneCount(prio Priority) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lanes[clampLane(prio)].len()
}

// Close drops queued work, waits for running tasks and stops the workers.
// Calling Close more than once is safe.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed.Store(true)
	for i := range p.lanes {
		n := p.lanes[i].clear()
		p.pending.Add(-int64(n))
	}
	p.mu.Unlock()

	p.work.Broadcast()
	p.wg.Wait()

	p.mu.Lock()
	p.idle.Broadcast()
	p.mu.Unlock()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		task, lane, ok := p.next()
		if !ok {
			return
		}
		p.run(task, lane)
	}
}

// next returns the highest-priority queued task. It spins, then yields, then
// blocks on the work condition. ok is false once the pool is closed.
func (p *Pool) next() (Task, Priority, bool) {
	spins := 0
	for {
		if p.pending.Load() > 0 || p.closed.Load() {
			p.mu.Lock()
			if t, lane, ok := p.popLocked(); ok {
				p.active.Add(1)
				p.mu.Unlock()
				return t, lane, true
			}
			if p.closed.Load() {
				p.mu.Unlock()
				return nil, 0, false
			}
			p.mu.Unlock()
		}

		spins++
		switch {
		case spins <= spinCount:
		case spins <= spinCount+yieldCount:
			runtime.Gosched()
		default:
			p.mu.Lock()
			for p.pending.Load() == 0 && !p.closed.Load() {
				p.work.Wait()
			}
			p.mu.Unlock()
			spins = 0
		}
	}
}

func (p *Pool) popLocked() (Task, Priority, bool) {
	for i := range p.lanes {
		if t, ok := p.lanes[i].pop(); ok {
			p.pending.Add(-1)
			return t, Priority(i), true
		}
	}
	return nil, 0, false
}

func (p *Pool) run(t Task, lane Priority) {
	var restore func()
	if p.threadPriority {
		restore = applyThreadPriority(lane)
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Error("Worker task on %s lane panicked: %v\n%s", lane, r, debug.Stack())
			if p.observer != nil {
				p.observer.TaskPanicked(lane)
			}
		}
		if restore != nil {
			restore()
		}

		p.completed.Add(1)
		if p.observer != nil {
			p.observer.TaskCompleted(lane)
		}

		p.mu.Lock()
		p.active.Add(-1)
		if p.active.Load() == 0 && p.pending.Load() == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}()

	t(lane)
}

func clampLane(p Priority) Priority {
	if p >= numLanes {
		return Low
	}
	return p
}

// lane is a FIFO that also supports pushing to the front.
type lane struct {
	items []Task
	head  int
}

func (l *lane) len() int { return len(l.items) - l.head }

func (l *lane) pushBack(t Task) {
	if l.head > 0 && l.head >= len(l.items)/2 {
		n := copy(l.items, l.items[l.head:])
		clear(l.items[n:])
		l.items = l.items[:n]
		l.head = 0
	}
	l.items = append(l.items, t)
}

func (l *lane) pushFront(t Task) {
	if l.head > 0 {
		l.head--
		l.items[l.head] = t
		return
	}
	l.items = append(l.items, nil)
	copy(l.items[1:], l.items)
	l.items[0] = t
}

func (l *lane) pop() (Task, bool) {
	if l.head >= len(l.items) {
		return nil, false
	}
	t := l.items[l.head]
	l.items[l.head] = nil
	l.head++
	if l.head == len(l.items) {
		l.items = l.items[:0]
		l.head = 0
	}
	return t, true
}

func (l *lane) clear() int {
	n := l.len()
	clear(l.items)
	l.items = l.items[:0]
	l.head = 0
	return n
}
