package pipeline

import (
	"context"
	"errors"
	"sync"

	"fileflow/logger"
	"fileflow/models"
)

// Pool runs submitted jobs on a fixed number of workers.
type Pool struct {
	orch  *Orchestrator
	queue chan models.JobID
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool with a queue of the given depth.
func NewPool(orch *Orchestrator, depth int) *Pool {
	if depth <= 0 {
		depth = 64
	}
	return &Pool{orch: orch, queue: make(chan models.JobID, depth)}
}

// Start launches n workers. They exit when ctx is done or the pool is stopped.
func (p *Pool) Start(ctx context.Context, n int) {
	if n <= 0 {
		n = 1
	}
	for i := 1; i <= n; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	logger.Infof("Started %d conversion workers", n)
}

func (p *Pool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			logger.Debugf("[Worker %d] Shutting down", workerID)
			return
		case id, ok := <-p.queue:
			if !ok {
				logger.Debugf("[Worker %d] Queue closed", workerID)
				return
			}
			logger.Debugf("[Worker %d] Running job %s", workerID, id)
			job, err := p.orch.Run(ctx, id)
			if err != nil {
				logger.Warnf("[Worker %d] Job %s not run: %v", workerID, id, err)
				continue
			}
			logger.Debugf("[Worker %d] Job %s finished as %s", workerID, id, job.State)
		}
	}
}

// ErrPoolClosed is returned by Submit after Stop.
var ErrPoolClosed = errors.New("worker pool is stopped")

// Submit queues a created job. A full queue is reported as resource_exhausted;
// the job stays created and can be run later.
func (p *Pool) Submit(id models.JobID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return models.WrapError(models.KindResourceExhausted, ErrPoolClosed, "server is shutting down")
	}
	select {
	case p.queue <- id:
		return nil
	default:
		return models.NewError(models.KindResourceExhausted, "conversion queue is full, job %s left in created state", id)
	}
}

// Stop closes the queue and waits for workers to finish queued jobs.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
