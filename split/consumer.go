package split

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/xid"

	"github.com/pipelined/acoustic"
	"github.com/pipelined/acoustic/metric"
	"github.com/pipelined/acoustic/signal"
)

type (
	// Consumer is a handle of registered splitter reader. It implements
	// acoustic.Source, so it can be used as a source of other stages.
	Consumer struct {
		id       xid.ID
		splitter *Splitter

		mu     sync.Mutex
		policy Policy
		queue  []signal.Float64
		// end is the error that terminated upstream. It's returned once
		// the queue is drained.
		end     error
		metrics *metric.Set
	}

	// ConsumerOption configures consumer.
	ConsumerOption func(*Consumer)

	// Stats contains consumer counters. Received and Dropped are read
	// from the consumer metrics.
	Stats struct {
		Received int
		Dropped  int
		Queued   int
	}
)

// WithPolicy sets the overflow policy of the consumer.
func WithPolicy(p Policy) ConsumerOption {
	return func(c *Consumer) {
		c.policy = p
	}
}

// ID returns unique consumer id.
func (c *Consumer) ID() string {
	return c.id.String()
}

// Policy returns the overflow policy.
func (c *Consumer) Policy() Policy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

// SetPolicy changes the overflow policy.
func (c *Consumer) SetPolicy(p Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policy = p
}

// Stats returns consumer counters.
func (c *Consumer) Stats() Stats {
	c.mu.Lock()
	queued := len(c.queue)
	c.mu.Unlock()
	return Stats{
		Received: int(c.metrics.Value(metric.ReceivedCounter)),
		Dropped:  int(c.metrics.Value(metric.DroppedCounter)),
		Queued:   queued,
	}
}

// Properties returns properties of the splitter source.
func (c *Consumer) Properties() acoustic.Properties {
	return c.splitter.Properties()
}

// Blocks returns blocks of the consumer. Block size must match the
// splitter's one.
func (c *Consumer) Blocks(blockSize int) (acoustic.BlockFunc, error) {
	if blockSize != c.splitter.blockSize {
		return nil, fmt.Errorf("%w: splitter block size is %d, got %d", acoustic.ErrBlockSize, c.splitter.blockSize, blockSize)
	}
	return func() (signal.Float64, error) {
		return c.splitter.Pull(context.Background(), c)
	}, nil
}

func (c *Consumer) pop() (signal.Float64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) > 0 {
		b := c.queue[0]
		c.queue[0] = nil
		c.queue = c.queue[1:]
		c.metrics.Add(metric.ReceivedCounter, 1)
		return b, true, nil
	}
	if c.end != nil {
		err := c.end
		c.end = nil
		return nil, true, err
	}
	return nil, false, nil
}

func (c *Consumer) empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue) == 0 && c.end == nil
}

func (c *Consumer) full(bufferSize int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue) >= bufferSize
}

// push appends block to the queue. If queue is full, the oldest blocks
// are dropped. It returns the number of dropped blocks.
func (c *Consumer) push(b signal.Float64, bufferSize int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var dropped int
	for len(c.queue) >= bufferSize {
		c.queue[0] = nil
		c.queue = c.queue[1:]
		dropped++
	}
	if dropped > 0 {
		c.metrics.Add(metric.DroppedCounter, int64(dropped))
	}
	c.queue = append(c.queue, b)
	return dropped
}

func (c *Consumer) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.end = err
}

func (c *Consumer) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = nil
	c.end = nil
}
