package pipeline

// workerPool bounds concurrent CPU-heavy work (resampling, VAD inference)
// at a fixed size, so one connection's audio processing can't fan out
// across every core.
type workerPool struct {
	sem chan struct{}
}

func newWorkerPool(size int) *workerPool {
	return &workerPool{sem: make(chan struct{}, size)}
}

// run executes fn on a worker slot and returns its result, blocking the
// caller until a slot is free and fn completes. The caller is a single
// stage goroutine, so this offloads CPU work without serializing it with
// other stages' queue handoffs.
func runOn[T any](p *workerPool, fn func() T) T {
	p.sem <- struct{}{}
	defer func() { <-p.sem }()
	return fn()
}
