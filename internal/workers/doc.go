/*
Package workers provides worker-count sizing and the priority worker pool that
runs thumbnail decode work.

# Sizing

The sizing helpers use GOMAXPROCS rather than runtime.NumCPU, so they respect
container CPU limits:

	numWorkers := workers.ForCPU(8)   // 1 per CPU, max 8
	numWorkers := workers.ForIO(16)   // 2 per CPU, max 16
	numWorkers := workers.ForMixed(12) // 1.5 per CPU, max 12

ForDecode returns the default decode pool size: one less than the available
threads (the render loop keeps one), never below two.

All helpers respect the PIPELINE_WORKERS environment variable:

	PIPELINE_WORKERS=4 ./gallery

# Priority Pool

Pool runs a fixed number of goroutines that drain three FIFO lanes:

	High    visible thumbnails the user is waiting for
	Normal  everything else requested by the view
	Low     prefetch

Dequeue is strict priority: a Low task only runs when High and Normal are
empty. SubmitFront places a task ahead of its lane; SubmitBatch queues many
tasks under one lock and wakes every worker.

	pool := workers.NewPool(workers.PoolOptions{})
	defer pool.Close()

	pool.Submit(func(lane workers.Priority) {
		decode(path)
	}, workers.Normal)

PurgeAll and PurgePriority drop queued (not running) work, which is how the
pipeline cancels requests for cells that scrolled away. WaitIdle blocks until
nothing is queued or running.

# Idle Behaviour

An idle worker re-checks the queues 64 times, then yields to the scheduler 256
times, then parks on a condition variable. Bursts of submissions during
scrolling therefore start without a wakeup round trip, while a quiet pool
costs nothing.

# Thread Priority

With PoolOptions.ThreadPriority set, Windows builds lock the worker to its OS
thread for the task's duration and raise (High) or lower (Low) its priority.
BeginBackgroundIO additionally switches the thread into background I/O mode.
Other platforms treat both as no-ops; lane order is what guarantees priority.

# Panics

A panicking task is recovered and logged with its stack. The worker keeps
running and the task still counts as completed.
*/
package workers
