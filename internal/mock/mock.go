// Package mock provides mocks for pipeline sources and allows to execute
// integration tests.
package mock

import (
	"io"
	"sync"
	"time"

	"github.com/pipelined/acoustic"
	"github.com/pipelined/acoustic/signal"
)

// Source mocks an acoustic.Source interface.
type Source struct {
	Counter
	Interval   time.Duration
	Limit      int
	Value      float64
	Channels   int
	SampleRate float64
	// Generator returns value of the sample. Value is used if it's nil.
	Generator func(channel, sample int) float64
	// Granularity forces the size of produced blocks regardless of
	// requested block size.
	Granularity int
	// Replay allows multiple Blocks calls.
	Replay bool
	// Streaming hides the number of samples.
	Streaming   bool
	ErrorOnCall error
	// ErrorAfter is the number of successful calls before ErrorOnCall is
	// returned.
	ErrorAfter int

	mu     sync.Mutex
	opened int
}

// Ramp returns generator where every sample value equals to its index
// plus 1000 times channel index.
func Ramp(channel, sample int) float64 {
	return float64(channel*1000 + sample)
}

// Properties returns mocked properties.
func (m *Source) Properties() acoustic.Properties {
	samples := m.Limit
	if m.Streaming {
		samples = acoustic.UnknownSamples
	}
	return acoustic.Properties{
		SampleRate: m.SampleRate,
		Channels:   m.Channels,
		Samples:    samples,
	}
}

// Blocks returns new block func.
func (m *Source) Blocks(blockSize int) (acoustic.BlockFunc, error) {
	if err := acoustic.ValidateBlockSize(blockSize); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if m.opened > 0 && !m.Replay {
		m.mu.Unlock()
		return nil, acoustic.ErrExhausted
	}
	m.opened++
	m.mu.Unlock()
	if m.Granularity > 0 {
		blockSize = m.Granularity
	}
	var pos, calls int
	return func() (signal.Float64, error) {
		if m.ErrorOnCall != nil && calls >= m.ErrorAfter {
			return nil, m.ErrorOnCall
		}
		if pos >= m.Limit {
			return nil, io.EOF
		}
		time.Sleep(m.Interval)

		// check if we need a shorter.
		bs := blockSize
		if left := m.Limit - pos; left < bs {
			bs = left
		}
		b := signal.EmptyFloat64(m.Channels, bs)
		for c := range b {
			for i := range b[c] {
				if m.Generator != nil {
					b[c][i] = m.Generator(c, pos+i)
				} else {
					b[c][i] = m.Value
				}
			}
		}
		pos += bs
		calls++
		m.advance(bs)
		return b, nil
	}, nil
}

// Opened returns number of Blocks calls.
func (m *Source) Opened() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// Counter counts blocks and samples.
type Counter struct {
	mu      sync.Mutex
	blocks  int
	samples int
}

func (c *Counter) advance(size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks++
	c.samples = c.samples + size
}

// Count returns blocks and samples metrics.
func (c *Counter) Count() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocks, c.samples
}

// Sink drains the source and keeps all blocks.
type Sink struct {
	Counter
	Discard bool
	buffer  signal.Float64
}

// Drain consumes all blocks of the function.
func (s *Sink) Drain(next acoustic.BlockFunc) error {
	for {
		b, err := next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if !s.Discard {
			s.buffer = s.buffer.Append(b)
		}
		s.advance(b.Size())
	}
}

// Buffer returns sink's buffer.
func (s *Sink) Buffer() signal.Float64 {
	return s.buffer
}
