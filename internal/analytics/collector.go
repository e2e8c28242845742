package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/elchin-rustamov/courtsearch/pkg/kafka"
)

const (
	defaultBufferSize    = 10000
	defaultBatchSize     = 100
	defaultFlushInterval = 5 * time.Second
)

// Collector buffers usage events in memory and publishes them to Kafka in
// batches. Track never blocks the request path: when the buffer is full the
// event is dropped with a warning.
type Collector struct {
	producer *kafka.Producer
	eventCh  chan kafka.Event
	logger   *slog.Logger
	done     chan struct{}

	mu    sync.Mutex
	batch []kafka.Event
}

func NewCollector(producer *kafka.Producer, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan kafka.Event, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
		batch:    make([]kafka.Event, 0, defaultBatchSize),
	}
}

// Start launches the background publish loop. Events are flushed when the
// batch fills up or the flush interval elapses, whichever comes first.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(defaultFlushInterval)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.flush(context.Background())
					return
				}
				c.mu.Lock()
				c.batch = append(c.batch, event)
				full := len(c.batch) >= defaultBatchSize
				c.mu.Unlock()
				if full {
					c.flush(ctx)
				}
			case <-ticker.C:
				c.flush(ctx)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", defaultBatchSize,
	)
}

// Track enqueues a usage event. Safe to call from any goroutine.
func (c *Collector) Track(event interface{}) {
	select {
	case c.eventCh <- kafka.Event{Key: eventKey(event), Value: event}:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the final flush.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

// eventKey keys Kafka messages by event kind so consumers of one kind stay
// on stable partitions.
func eventKey(event interface{}) string {
	switch event.(type) {
	case SearchEvent, *SearchEvent:
		return "search"
	case IndexEvent, *IndexEvent:
		return "index"
	case ClarificationEvent, *ClarificationEvent:
		return "clarification"
	default:
		return "unknown"
	}
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.batch) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.batch
	c.batch = make([]kafka.Event, 0, defaultBatchSize)
	c.mu.Unlock()

	if err := c.producer.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics batch",
			"events", len(batch),
			"error", err,
		)
	}
}

// drainRemaining empties the channel and publishes what is left with a short
// deadline so shutdown does not lose buffered events.
func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if ok {
				c.mu.Lock()
				c.batch = append(c.batch, event)
				c.mu.Unlock()
				continue
			}
		default:
		}
		break
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.flush(flushCtx)
}
