package queue

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

const channelBuffer = 256

// ErrPoolStopped is returned by Hash and Verify once the pool's context is
// cancelled.
var ErrPoolStopped = errors.New("hash pool stopped")

type hashOp string

const (
	opHash   hashOp = "hash"
	opVerify hashOp = "verify"
)

type hashJob struct {
	op    hashOp
	raw   string
	hash  string
	reply chan hashResult
}

type hashResult struct {
	encoded string
	ok      bool
	err     error
}

// HashPool runs password hashing on a fixed set of workers so adaptive hashing
// never runs with more parallelism than configured. It satisfies domain.Hasher;
// callers block until their job completes.
type HashPool struct {
	hasher  domain.Hasher
	workers int
	jobs    chan hashJob
	done    chan struct{}
	wg      sync.WaitGroup
	log     zerolog.Logger
}

var _ domain.Hasher = (*HashPool)(nil)

// NewHashPool creates a pool with numWorkers workers.
// If numWorkers <= 0, GOMAXPROCS is used.
func NewHashPool(numWorkers int, hasher domain.Hasher, log zerolog.Logger) *HashPool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	return &HashPool{
		hasher:  hasher,
		workers: numWorkers,
		jobs:    make(chan hashJob, channelBuffer),
		done:    make(chan struct{}),
		log:     log,
	}
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled;
// Wait blocks until they have returned.
func (p *HashPool) Start(ctx context.Context) {
	p.wg.Add(p.workers + 1)
	for i := 0; i < p.workers; i++ {
		go p.runWorker(ctx, i)
	}
	go func() {
		defer p.wg.Done()
		<-ctx.Done()
		close(p.done)
	}()
	p.log.Info().Int("workers", p.workers).Msg("hash pool started")
}

// Wait blocks until every worker has exited.
func (p *HashPool) Wait() { p.wg.Wait() }

func (p *HashPool) Hash(raw string) (string, error) {
	res, err := p.submit(hashJob{op: opHash, raw: raw})
	if err != nil {
		return "", err
	}
	return res.encoded, res.err
}

func (p *HashPool) Verify(raw, hash string) (bool, error) {
	res, err := p.submit(hashJob{op: opVerify, raw: raw, hash: hash})
	if err != nil {
		return false, err
	}
	return res.ok, res.err
}

func (p *HashPool) submit(job hashJob) (hashResult, error) {
	start := time.Now()
	defer func() {
		metrics.PasswordHashDuration.WithLabelValues(string(job.op)).Observe(time.Since(start).Seconds())
	}()

	job.reply = make(chan hashResult, 1)
	select {
	case p.jobs <- job:
		metrics.HashPoolQueueDepth.Inc()
	case <-p.done:
		return hashResult{}, ErrPoolStopped
	}

	select {
	case res := <-job.reply:
		return res, nil
	case <-p.done:
		return hashResult{}, ErrPoolStopped
	}
}

func (p *HashPool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.jobs:
			metrics.HashPoolQueueDepth.Dec()
			job.reply <- p.run(job, id)
		}
	}
}

func (p *HashPool) run(job hashJob, id int) (res hashResult) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Int("worker_id", id).Str("op", string(job.op)).Msg("hash job panicked")
			res = hashResult{err: errors.New("hash job panicked")}
		}
	}()
	switch job.op {
	case opHash:
		encoded, err := p.hasher.Hash(job.raw)
		return hashResult{encoded: encoded, err: err}
	default:
		ok, err := p.hasher.Verify(job.raw, job.hash)
		return hashResult{ok: ok, err: err}
	}
}
