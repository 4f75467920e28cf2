// Package worker bounds how many provider calls run at once. The chat
// path submits each upstream completion as a job; when every worker is
// busy the submit fails fast and the caller degrades the reply instead
// of queueing the visitor indefinitely.
package worker

import (
	"errors"
	"sync"
	"time"
)

// ErrPoolBusy reports that all workers are occupied.
var ErrPoolBusy = errors.New("worker pool busy")

// Job is one unit of work, typically a single provider invocation.
type Job func()

type workerMeta struct {
	ch        chan Job
	lastUsed  time.Time
	enqueued  bool // is in the idle queue
	discarded bool // targeted for retirement
}

// Pool keeps between min and max workers alive; workers idle beyond the
// expiry are retired down to min.
type Pool struct {
	mu       sync.Mutex
	idle     []*workerMeta
	metadata map[chan Job]*workerMeta
	min      int
	max      int
	running  int
	expiry   time.Duration
	stop     chan struct{}
}

const defaultWorkerIdle = 30 * time.Second

func NewPool(minWorkers, maxWorkers int, idle time.Duration) *Pool {
	if idle <= 0 {
		idle = defaultWorkerIdle
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	p := &Pool{
		metadata: make(map[chan Job]*workerMeta),
		min:      minWorkers,
		max:      maxWorkers,
		expiry:   idle,
		stop:     make(chan struct{}),
	}
	for i := 0; i < minWorkers; i++ {
		p.spawnLocked()
	}
	go p.purgeStaleWorkers()
	return p
}

// Submit hands the job to an idle worker, spawning one if the pool has
// headroom. It never blocks; a saturated pool returns ErrPoolBusy.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	if meta := p.popIdleLocked(); meta != nil {
		p.mu.Unlock()
		meta.ch <- job
		return nil
	}
	if p.running < p.max {
		meta := p.spawnLocked()
		p.mu.Unlock()
		meta.ch <- job
		return nil
	}
	p.mu.Unlock()
	return ErrPoolBusy
}

// Running reports how many workers currently exist.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pool) spawnLocked() *workerMeta {
	meta := &workerMeta{ch: make(chan Job)}
	p.metadata[meta.ch] = meta
	p.running++
	go p.runWorker(meta.ch)
	return meta
}

func (p *Pool) runWorker(ch chan Job) {
	for job := range ch {
		if job == nil {
			return
		}
		job()
		p.release(ch)
	}
}

// release returns a worker to the idle queue after it finishes a job.
func (p *Pool) release(ch chan Job) {
	p.mu.Lock()
	meta, ok := p.metadata[ch]
	if !ok || meta.discarded || meta.enqueued {
		p.mu.Unlock()
		return
	}
	meta.enqueued = true
	meta.lastUsed = time.Now()
	p.idle = append(p.idle, meta)
	p.mu.Unlock()
}

func (p *Pool) popIdleLocked() *workerMeta {
	for len(p.idle) > 0 {
		meta := p.idle[0]
		p.idle = p.idle[1:]
		if meta.discarded {
			continue
		}
		meta.enqueued = false
		return meta
	}
	return nil
}

func (p *Pool) purgeStaleWorkers() {
	ticker := time.NewTicker(p.expiry)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.shutdownExpired()
		}
	}
}

// shutdownExpired retires idle workers past the expiry, never dropping
// below the configured minimum.
func (p *Pool) shutdownExpired() {
	var stale []*workerMeta
	now := time.Now()

	p.mu.Lock()
	if len(p.idle) == 0 || p.running <= p.min {
		p.mu.Unlock()
		return
	}
	remaining := p.idle[:0]
	for _, meta := range p.idle {
		if meta.discarded {
			continue
		}
		if now.Sub(meta.lastUsed) >= p.expiry && p.running-len(stale) > p.min {
			meta.discarded = true
			meta.enqueued = false
			delete(p.metadata, meta.ch)
			stale = append(stale, meta)
			continue
		}
		remaining = append(remaining, meta)
	}
	p.idle = remaining
	p.running -= len(stale)
	p.mu.Unlock()

	for _, meta := range stale {
		meta.ch <- nil
	}
}

// Close stops the purge loop. Live workers drain naturally.
func (p *Pool) Close() {
	close(p.stop)
}
