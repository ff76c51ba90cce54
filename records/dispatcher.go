package records

import (
	"context"
	"sync"
	"time"

	"fileflow/logger"
	"fileflow/models"
)

// writeTimeout bounds a single sink write.
const writeTimeout = 5 * time.Second

// Dispatcher fans records out to sinks in the background. Emit never blocks
// and sink failures are only logged.
type Dispatcher struct {
	sinks []Sink
	queue chan models.ConversionRecord
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewDispatcher starts the delivery goroutine.
func NewDispatcher(buffer int, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	d := &Dispatcher{sinks: sinks, queue: make(chan models.ConversionRecord, buffer)}
	d.wg.Add(1)
	go d.run()
	return d
}

// Emit queues r for delivery. When the queue is full the record is dropped.
func (d *Dispatcher) Emit(r models.ConversionRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		logger.Warnf("Record for job %s dropped, dispatcher closed", r.JobID)
		return
	}
	select {
	case d.queue <- r:
	default:
		logger.Warnf("Record queue full, dropping record for job %s", r.JobID)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for r := range d.queue {
		for _, sink := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			if err := sink.Write(ctx, r); err != nil {
				logger.Errorf("Failed to write record for job %s to %s: %v", r.JobID, sink.Name(), err)
			}
			cancel()
		}
	}
}

// Close delivers what is queued, then closes every sink.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()

	for _, sink := range d.sinks {
		if err := sink.Close(); err != nil {
			logger.Warnf("Failed to close record sink %s: %v", sink.Name(), err)
		}
	}
}
