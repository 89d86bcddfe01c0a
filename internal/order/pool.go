package order

// Pool bounds concurrent venue I/O with a simple semaphore. Legs of a split
// order run in parallel up to the pool size; beyond that, callers queue.
type Pool struct {
	slots chan struct{}
}

// NewPool returns a pool allowing up to size concurrent tasks.
// Size defaults to 4 when non-positive.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{slots: make(chan struct{}, size)}
}

// Go runs fn on its own goroutine once a slot is free.
func (p *Pool) Go(fn func()) {
	p.slots <- struct{}{}
	go func() {
		defer func() { <-p.slots }()
		fn()
	}()
}
