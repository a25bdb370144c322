package acoustic

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pipelined/acoustic/signal"
)

// UnknownSamples is used as Properties.Samples when the length of the
// source cannot be known before it's consumed.
const UnknownSamples = -1

var (
	// ErrExhausted is returned when non-restartable source is asked for
	// blocks after it was already consumed.
	ErrExhausted = errors.New("source is exhausted")
	// ErrBlockSize is returned when block size is not positive.
	ErrBlockSize = errors.New("block size must be positive")
)

type (
	// Source is a lazy producer of fixed-size signal blocks. Implementations
	// should use next conventions:
	// 		- every block except the last one has exactly blockSize samples;
	// 		- all blocks have Properties().Channels channels;
	// 		- io.EOF is returned without data when sequence is over.
	// Sources are not restartable, Blocks must not be called twice unless
	// the implementation documents replay support.
	Source interface {
		Properties() Properties
		Blocks(blockSize int) (BlockFunc, error)
	}

	// BlockFunc returns the next block of the sequence.
	BlockFunc func() (signal.Float64, error)

	// Properties of the signal produced by source.
	Properties struct {
		SampleRate float64
		Channels   int
		Samples    int
	}
)

// NumBlocks returns number of blocks that source with these properties
// produces for provided block size. UnknownSamples is returned if length
// is unknown.
func (p Properties) NumBlocks(blockSize int) int {
	if p.Samples < 0 {
		return UnknownSamples
	}
	return (p.Samples + blockSize - 1) / blockSize
}

// ValidateBlockSize returns ErrBlockSize if block size is not positive.
func ValidateBlockSize(blockSize int) error {
	if blockSize <= 0 {
		return fmt.Errorf("%w: %d", ErrBlockSize, blockSize)
	}
	return nil
}

// ReadAll consumes the source and returns all samples in a single block.
func ReadAll(source Source, blockSize int) (signal.Float64, error) {
	next, err := source.Blocks(blockSize)
	if err != nil {
		return nil, err
	}
	result := signal.EmptyFloat64(source.Properties().Channels, 0)
	for {
		b, err := next()
		if err != nil {
			if err == io.EOF {
				return result, nil
			}
			return nil, err
		}
		result = result.Append(b)
	}
}

// Memory is a source of in-memory samples. It supports replay: every
// Blocks call starts from the first sample.
type Memory struct {
	SampleRate float64
	Data       signal.Float64
}

// Properties returns properties of memory data.
func (m *Memory) Properties() Properties {
	return Properties{
		SampleRate: m.SampleRate,
		Channels:   m.Data.NumChannels(),
		Samples:    m.Data.Size(),
	}
}

// Blocks returns blocks which are copies of memory data.
func (m *Memory) Blocks(blockSize int) (BlockFunc, error) {
	if err := ValidateBlockSize(blockSize); err != nil {
		return nil, err
	}
	var pos int
	return func() (signal.Float64, error) {
		if pos >= m.Data.Size() {
			return nil, io.EOF
		}
		b := m.Data.Slice(pos, blockSize)
		pos += b.Size()
		return b, nil
	}, nil
}

// Once wraps the source and makes it non-restartable: the second Blocks
// call returns ErrExhausted.
func Once(source Source) Source {
	return &once{Source: source}
}

type once struct {
	Source
	mu     sync.Mutex
	called bool
}

func (o *once) Blocks(blockSize int) (BlockFunc, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.called {
		return nil, ErrExhausted
	}
	if err := ValidateBlockSize(blockSize); err != nil {
		return nil, err
	}
	o.called = true
	return o.Source.Blocks(blockSize)
}
