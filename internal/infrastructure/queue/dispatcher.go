package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/virtushot/photoshoot-api/internal/api/metrics"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	writeTimeout   = 10 * time.Second
)

type usageItem struct {
	accountID string
	summary   string
	at        time.Time
}

// Dispatcher takes usage records off the request path. Records are sharded by
// account id so one account's records are written in order.
// It implements ports.UsageRecorder.
type Dispatcher struct {
	workers []chan usageItem
	sink    ports.UsageSink
	now     func() time.Time
	log     zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers writing to sink.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sink ports.UsageSink, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan usageItem, numWorkers),
		sink:    sink,
		now:     time.Now,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan usageItem, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Writes outlive ctx cancellation so
// queued records are still persisted during shutdown.
func (d *Dispatcher) Start(ctx context.Context) {
	writeCtx := context.WithoutCancel(ctx)
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(writeCtx, i, ch)
	}
}

// Record enqueues a usage record stamped with the current time. When the
// worker's buffer is full or the dispatcher is stopped, the record is written
// synchronously instead of dropped.
func (d *Dispatcher) Record(ctx context.Context, accountID, promptSummary string) error {
	at := d.now().UTC()

	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.stopped {
		idx := d.shardIndex(accountID)
		select {
		case d.workers[idx] <- usageItem{accountID: accountID, summary: promptSummary, at: at}:
			metrics.UsageQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
			return nil
		default:
			d.log.Warn().Int("worker_id", idx).Msg("usage queue full, writing synchronously")
		}
	}
	return d.sink.RecordAt(ctx, accountID, promptSummary, at)
}

// Stop closes the queues and waits until every buffered record is written
// or ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shardIndex maps an account id deterministically to a worker index.
func (d *Dispatcher) shardIndex(accountID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(accountID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan usageItem) {
	defer d.wg.Done()
	label := strconv.Itoa(id)

	for item := range ch {
		metrics.UsageQueueDepth.WithLabelValues(label).Set(float64(len(ch)))

		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := d.sink.RecordAt(writeCtx, item.accountID, item.summary, item.at)
		cancel()
		if err != nil {
			metrics.UsageRecordFailuresTotal.Inc()
			d.log.Error().Err(err).
				Str("account_id", item.accountID).
				Int("worker_id", id).
				Msg("usage record failed")
		}
	}
}
