package concurrent

import (
	"runtime"
	"sync"
)

type Job[T any] struct {
	ID      int
	JobItem T
}

type JobFunc[T, G any] func(job T) G

// WorkerPool runs a fixed number of goroutines over a buffered job queue. Usage: AddJob every
// job (at most numJobs), Close, Start, Wait, then drain CollectResults.
type WorkerPool[T, G any] struct {
	numWorkers int
	jobQueue   chan T
	results    chan G
	wg         sync.WaitGroup
}

// NewWorkerPool creates a pool; numWorkers below 1 means one worker per CPU.
func NewWorkerPool[T, G any](numWorkers, numJobs int) *WorkerPool[T, G] {
	if numWorkers < 1 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	return &WorkerPool[T, G]{
		numWorkers: numWorkers,
		jobQueue:   make(chan T, numJobs),
		results:    make(chan G, numJobs),
	}
}

func (wp *WorkerPool[T, G]) AddJob(job T) {
	wp.jobQueue <- job
}

func (wp *WorkerPool[T, G]) Close() {
	close(wp.jobQueue)
}

func (wp *WorkerPool[T, G]) Start(fn JobFunc[T, G]) {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(fn)
	}
}

func (wp *WorkerPool[T, G]) worker(fn JobFunc[T, G]) {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		wp.results <- fn(job)
	}
}

// Wait blocks until every job is done and closes the result channel.
func (wp *WorkerPool[T, G]) Wait() {
	wp.wg.Wait()
	close(wp.results)
}

func (wp *WorkerPool[T, G]) CollectResults() <-chan G {
	return wp.results
}

// Map applies fn to every item on a pool of numWorkers goroutines and returns the results in
// item order.
func Map[T, G any](numWorkers int, items []T, fn func(T) G) []G {
	out := make([]G, len(items))
	if len(items) == 0 {
		return out
	}

	workers := NewWorkerPool[Job[T], Job[G]](min(numWorkers, len(items)), len(items))
	for i, item := range items {
		workers.AddJob(Job[T]{ID: i, JobItem: item})
	}
	workers.Close()
	workers.Start(func(job Job[T]) Job[G] {
		return Job[G]{ID: job.ID, JobItem: fn(job.JobItem)}
	})
	workers.Wait()

	for res := range workers.CollectResults() {
		out[res.ID] = res.JobItem
	}
	return out
}
