package security

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/baechuer/natours-auth/internal/domain"
)

var (
	hashPoolQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "auth_service",
		Name:      "hash_pool_queue_depth",
		Help:      "Number of hashing jobs waiting for a worker",
	})

	hashPoolInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "auth_service",
		Name:      "hash_pool_in_flight",
		Help:      "Number of hashing jobs currently running",
	})

	hashPoolRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "auth_service",
		Name:      "hash_pool_rejected_total",
		Help:      "Hashing jobs rejected because the queue was full",
	})
)

var errPoolClosed = errors.New("hash pool closed")

// HashPool runs bcrypt on a fixed set of workers so request goroutines
// never burn CPU directly. The queue is bounded; when it is full new work
// is rejected with domain.ErrServerBusy instead of piling up.
type HashPool struct {
	hasher *BcryptHasher
	jobs   chan func()
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewHashPool(hasher *BcryptHasher, workers, queueDepth int) *HashPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueDepth <= 0 {
		queueDepth = workers * 2
	}

	p := &HashPool{
		hasher: hasher,
		jobs:   make(chan func(), queueDepth),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *HashPool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		hashPoolQueueDepth.Set(float64(len(p.jobs)))
		hashPoolInFlight.Inc()
		job()
		hashPoolInFlight.Dec()
	}
}

// submit enqueues job without blocking.
func (p *HashPool) submit(job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return domain.ErrInternal(errPoolClosed)
	}

	select {
	case p.jobs <- job:
		hashPoolQueueDepth.Set(float64(len(p.jobs)))
		return nil
	default:
		hashPoolRejectedTotal.Inc()
		return domain.ErrServerBusy()
	}
}

type hashResult struct {
	hash  string
	match bool
	err   error
}

// run submits fn and waits for its result or for ctx to end.
func (p *HashPool) run(ctx context.Context, fn func() hashResult) (hashResult, error) {
	out := make(chan hashResult, 1)
	err := p.submit(func() {
		// Skip work nobody is waiting for.
		if ctx.Err() != nil {
			out <- hashResult{err: ctx.Err()}
			return
		}
		out <- fn()
	})
	if err != nil {
		return hashResult{}, err
	}

	select {
	case r := <-out:
		return r, r.err
	case <-ctx.Done():
		return hashResult{}, ctx.Err()
	}
}

func (p *HashPool) Hash(ctx context.Context, password string) (string, error) {
	r, err := p.run(ctx, func() hashResult {
		h, err := p.hasher.Hash(password)
		return hashResult{hash: h, err: err}
	})
	if err != nil {
		return "", err
	}
	return r.hash, nil
}

func (p *HashPool) Compare(ctx context.Context, hash, password string) (bool, error) {
	r, err := p.run(ctx, func() hashResult {
		return hashResult{match: p.hasher.Matches(hash, password)}
	})
	if err != nil {
		return false, err
	}
	return r.match, nil
}

// Close stops accepting work and waits for queued jobs to finish.
func (p *HashPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	hashPoolQueueDepth.Set(0)
}
