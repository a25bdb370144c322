// Package split serves multiple independently paced consumers from one
// source.
//
// A single producer goroutine owns the upstream iterator. When a consumer
// pulls with an empty queue, it requests a new block from the producer;
// the block is pulled from upstream once and pushed to the queues of all
// registered consumers:
//
//	                 +--> [queue A] --> consumer A
//	source --> producer --> [queue B] --> consumer B
//	                 +--> [queue C] --> consumer C
//
// Queues are bounded. When a new block doesn't fit into a queue, the
// consumer's overflow policy is applied.
package split

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"

	"github.com/pipelined/acoustic"
	"github.com/pipelined/acoustic/log"
	"github.com/pipelined/acoustic/metric"
	"github.com/pipelined/acoustic/signal"
)

// DefaultBufferSize is the default capacity of consumer queues.
const DefaultBufferSize = 100

var (
	// ErrOverflow is returned by every Pull after a queue of consumer
	// with Fail policy has overflowed.
	ErrOverflow = errors.New("maximum size of block buffer is reached")
	// ErrNotRegistered is returned when pulling with a consumer that is not
	// registered in the splitter.
	ErrNotRegistered = errors.New("consumer is not registered")
	// ErrClosed is returned when pulling from closed splitter.
	ErrClosed = errors.New("splitter is closed")
)

// Policy defines what happens when a new block doesn't fit into consumer's
// queue.
type Policy int

const (
	// Fail halts the whole splitter: every consumer gets ErrOverflow on the
	// next pull.
	Fail Policy = iota
	// Warn logs a warning and drops the oldest block of the queue.
	Warn
	// Drop silently drops the oldest block of the queue.
	Drop
)

func (p Policy) String() string {
	switch p {
	case Fail:
		return "fail"
	case Warn:
		return "warn"
	case Drop:
		return "drop"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

type (
	// Splitter distributes blocks of one source to registered consumers.
	// Blocks are shared between consumers and must not be modified.
	Splitter struct {
		id        xid.ID
		source    acoustic.Source
		blockSize int
		logger    acoustic.Logger
		metrics   *metric.Set

		mu         sync.Mutex
		bufferSize int
		consumers  map[xid.ID]*Consumer

		overflow  atomic.Bool
		requests  chan request
		done      chan struct{}
		closeOnce sync.Once
		wg        sync.WaitGroup
	}

	// Option configures splitter.
	Option func(*Splitter)

	request struct {
		consumer *Consumer
		reply    chan error
	}
)

// WithBufferSize sets the capacity of consumer queues.
func WithBufferSize(n int) Option {
	return func(s *Splitter) {
		s.bufferSize = n
	}
}

// WithLogger sets the logger for overflow warnings.
func WithLogger(l acoustic.Logger) Option {
	return func(s *Splitter) {
		s.logger = l
	}
}

// New creates a splitter and starts its producer goroutine. Close must be
// called to stop it.
func New(source acoustic.Source, blockSize int, options ...Option) (*Splitter, error) {
	if err := acoustic.ValidateBlockSize(blockSize); err != nil {
		return nil, err
	}
	s := Splitter{
		id:         xid.New(),
		source:     source,
		blockSize:  blockSize,
		bufferSize: DefaultBufferSize,
		consumers:  make(map[xid.ID]*Consumer),
		requests:   make(chan request),
		done:       make(chan struct{}),
	}
	for _, option := range options {
		option(&s)
	}
	if s.bufferSize <= 0 {
		return nil, fmt.Errorf("invalid buffer size %d", s.bufferSize)
	}
	if s.logger == nil {
		s.logger = log.WithComponent(log.GetLogger(), "split")
	}
	s.metrics = metric.Publish("split", s.id.String())
	s.metrics.Duration(source.Properties().SampleRate)

	s.wg.Add(1)
	go s.produce()
	return &s, nil
}

// ID returns unique splitter id. Metrics are published under it.
func (s *Splitter) ID() string {
	return s.id.String()
}

// Metrics returns counters of the splitter.
func (s *Splitter) Metrics() *metric.Set {
	return s.metrics
}

// Properties returns properties of the source.
func (s *Splitter) Properties() acoustic.Properties {
	return s.source.Properties()
}

// Register adds a new consumer. It starts receiving blocks from the next
// upstream pull.
func (s *Splitter) Register(options ...ConsumerOption) *Consumer {
	c := Consumer{
		id:       xid.New(),
		splitter: s,
		policy:   Fail,
	}
	for _, option := range options {
		option(&c)
	}
	c.metrics = s.metrics.Child(metric.ConsumersLabel).Child(c.ID())
	s.mu.Lock()
	s.consumers[c.id] = &c
	s.mu.Unlock()
	return &c
}

// Unregister removes the consumer and its queue.
func (s *Splitter) Unregister(c *Consumer) {
	s.mu.Lock()
	delete(s.consumers, c.id)
	s.mu.Unlock()
	c.reset()
	s.metrics.Child(metric.ConsumersLabel).Delete(c.ID())
}

// SetBufferSize changes the capacity of consumer queues. All queued
// blocks are lost and the overflow state is reset.
func (s *Splitter) SetBufferSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("invalid buffer size %d", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bufferSize = n
	for _, c := range s.consumers {
		c.reset()
	}
	s.overflow.Store(false)
	return nil
}

// Close stops the producer goroutine. Pending pulls return ErrClosed.
func (s *Splitter) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

// Pull returns the next block for the consumer. Queued blocks are returned
// without upstream interaction. io.EOF is returned once upstream is over
// and the queue is drained; the pull after that restarts the upstream.
func (s *Splitter) Pull(ctx context.Context, c *Consumer) (signal.Float64, error) {
	for {
		if !s.registered(c) {
			return nil, ErrNotRegistered
		}
		if s.overflow.Load() {
			return nil, ErrOverflow
		}
		if b, ok, err := c.pop(); ok {
			return b, err
		}

		reply := make(chan error, 1)
		select {
		case s.requests <- request{consumer: c, reply: reply}:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.done:
			return nil, ErrClosed
		}
		select {
		case err := <-reply:
			if err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Splitter) registered(c *Consumer) bool {
	if c == nil || c.splitter != s {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.consumers[c.id]
	return ok
}

// produce is the only goroutine that advances the upstream iterator.
func (s *Splitter) produce() {
	defer s.wg.Done()
	p := producer{Splitter: s}
	for {
		select {
		case r := <-s.requests:
			r.reply <- p.handle(r.consumer)
		case <-s.done:
			return
		}
	}
}

// producer holds the state of the upstream iterator.
type producer struct {
	*Splitter
	next acoustic.BlockFunc
}

func (p *producer) handle(requester *Consumer) error {
	// queue was filled by the request of another consumer.
	if !requester.empty() {
		return nil
	}
	if p.next == nil {
		if err := p.restart(); err != nil {
			return err
		}
	}

	b, err := p.next()
	if err != nil {
		p.next = nil
		if err != io.EOF {
			p.logger.Warn(fmt.Sprintf("split source failed: %v", err))
		}
		// requester is notified through its queue as well.
		p.mu.Lock()
		for _, c := range p.consumers {
			c.finish(err)
		}
		p.mu.Unlock()
		return nil
	}
	p.metrics.Add(metric.PullCounter, 1)
	p.metrics.Add(metric.SampleCounter, int64(b.Size()))

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.consumers {
		if c.full(p.bufferSize) && c.Policy() == Fail {
			p.overflow.Store(true)
			p.metrics.Add(metric.OverflowCounter, 1)
			p.logger.Warn(fmt.Sprintf("buffer of consumer %v is overfilled", c.id))
			return ErrOverflow
		}
	}
	for _, c := range p.consumers {
		dropped := c.push(b, p.bufferSize)
		if dropped == 0 {
			continue
		}
		policy := c.Policy()
		p.metrics.Child(metric.DroppedCounter).Add(policy.String(), int64(dropped))
		if policy == Warn {
			p.logger.Warn(fmt.Sprintf("buffer of consumer %v is overfilled, oldest block is lost", c.id))
		}
	}
	return nil
}

// restart clears all queues and opens a fresh upstream iterator.
func (p *producer) restart() error {
	p.mu.Lock()
	for _, c := range p.consumers {
		c.reset()
	}
	p.mu.Unlock()
	p.overflow.Store(false)

	next, err := p.source.Blocks(p.blockSize)
	if err != nil {
		return fmt.Errorf("error opening split source: %w", err)
	}
	p.logger.Debug("split source started")
	p.metrics.Add(metric.OpenCounter, 1)
	p.next = next
	return nil
}
