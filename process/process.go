// Package process provides basic stages which transform blocks of their
// sources. Every stage is itself an acoustic.Source and reopens its
// upstream on every Blocks call, so it supports replay if the upstream
// does. Upstream blocks are never modified.
package process

import (
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pipelined/acoustic"
	"github.com/pipelined/acoustic/signal"
)

var (
	// ErrIncompatible is returned when mixed sources have different sample
	// rate or number of channels.
	ErrIncompatible = errors.New("incompatible sources")
	// ErrInvalidCoefficients is returned when filter coefficients cannot
	// be applied.
	ErrInvalidCoefficients = errors.New("invalid filter coefficients")
	// ErrInvalidAverage is returned when number of averaged samples is not
	// positive.
	ErrInvalidAverage = errors.New("number of averaged samples must be positive")
)

// Power squares every sample of the source.
type Power struct {
	Source acoustic.Source
}

// Properties returns properties of the source.
func (p Power) Properties() acoustic.Properties {
	return p.Source.Properties()
}

// Blocks returns squared blocks.
func (p Power) Blocks(blockSize int) (acoustic.BlockFunc, error) {
	next, err := p.Source.Blocks(blockSize)
	if err != nil {
		return nil, err
	}
	return func() (signal.Float64, error) {
		b, err := next()
		if err != nil {
			return nil, err
		}
		out := signal.EmptyFloat64(b.NumChannels(), b.Size())
		for c := range b {
			floats.MulTo(out[c], b[c], b[c])
		}
		return out, nil
	}, nil
}

// Reverse emits the source samples in reverse order. The whole source is
// read into memory on every Blocks call.
type Reverse struct {
	Source acoustic.Source
}

// Properties returns properties of the source.
func (r Reverse) Properties() acoustic.Properties {
	return r.Source.Properties()
}

// Blocks reads the source till the end and returns reversed blocks. Only
// the last block may be shorter than blockSize.
func (r Reverse) Blocks(blockSize int) (acoustic.BlockFunc, error) {
	if err := acoustic.ValidateBlockSize(blockSize); err != nil {
		return nil, err
	}
	data, err := acoustic.ReadAll(r.Source, blockSize)
	if err != nil {
		return nil, fmt.Errorf("error reading reversed source: %w", err)
	}
	for c := range data {
		floats.Reverse(data[c])
	}
	m := acoustic.Memory{SampleRate: r.Source.Properties().SampleRate, Data: data}
	return m.Blocks(blockSize)
}

// Average replaces every N samples with their mean. Sample rate and
// number of samples are decreased N times, incomplete group at the end of
// the source is dropped.
type Average struct {
	Source acoustic.Source
	N      int
}

// Properties returns properties of the averaged signal.
func (a Average) Properties() acoustic.Properties {
	props := a.Source.Properties()
	if a.N <= 0 {
		return props
	}
	props.SampleRate = props.SampleRate / float64(a.N)
	if props.Samples != acoustic.UnknownSamples {
		props.Samples = props.Samples / a.N
	}
	return props
}

// Blocks returns averaged blocks. Every output block is computed from
// blockSize*N source samples.
func (a Average) Blocks(blockSize int) (acoustic.BlockFunc, error) {
	if a.N <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAverage, a.N)
	}
	if err := acoustic.ValidateBlockSize(blockSize); err != nil {
		return nil, err
	}
	next, err := a.Source.Blocks(blockSize * a.N)
	if err != nil {
		return nil, err
	}
	return func() (signal.Float64, error) {
		b, err := next()
		if err != nil {
			return nil, err
		}
		groups := b.Size() / a.N
		if groups == 0 {
			return nil, io.EOF
		}
		out := signal.EmptyFloat64(b.NumChannels(), groups)
		for c := range b {
			for i := range out[c] {
				out[c][i] = stat.Mean(b[c][i*a.N:(i+1)*a.N], nil)
			}
		}
		return out, nil
	}, nil
}

// Mixer sums samples of multiple sources. All sources must have the same
// sample rate and number of channels. Mixing stops when the shortest
// source is over.
type Mixer struct {
	Sources []acoustic.Source
}

// Properties returns properties of the first source. Samples is the
// length of the shortest source.
func (m Mixer) Properties() acoustic.Properties {
	if len(m.Sources) == 0 {
		return acoustic.Properties{}
	}
	props := m.Sources[0].Properties()
	for _, s := range m.Sources[1:] {
		samples := s.Properties().Samples
		switch {
		case samples == acoustic.UnknownSamples:
		case props.Samples == acoustic.UnknownSamples || samples < props.Samples:
			props.Samples = samples
		}
	}
	return props
}

func (m Mixer) validate() error {
	if len(m.Sources) == 0 {
		return fmt.Errorf("%w: no sources to mix", ErrIncompatible)
	}
	first := m.Sources[0].Properties()
	for i, s := range m.Sources[1:] {
		props := s.Properties()
		if props.SampleRate != first.SampleRate {
			return fmt.Errorf("%w: source %d has sample rate %v, expected %v", ErrIncompatible, i+1, props.SampleRate, first.SampleRate)
		}
		if props.Channels != first.Channels {
			return fmt.Errorf("%w: source %d has %d channels, expected %d", ErrIncompatible, i+1, props.Channels, first.Channels)
		}
	}
	return nil
}

// Blocks returns mixed blocks.
func (m Mixer) Blocks(blockSize int) (acoustic.BlockFunc, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	nexts := make([]acoustic.BlockFunc, len(m.Sources))
	for i, s := range m.Sources {
		next, err := s.Blocks(blockSize)
		if err != nil {
			return nil, fmt.Errorf("error opening mixer source %d: %w", i, err)
		}
		nexts[i] = next
	}
	return func() (signal.Float64, error) {
		var out signal.Float64
		for _, next := range nexts {
			b, err := next()
			if err != nil {
				return nil, err
			}
			if out == nil {
				out = b.Slice(0, b.Size())
				continue
			}
			size := out.Size()
			if b.Size() < size {
				size = b.Size()
				out = out.Slice(0, size)
			}
			for c := range out {
				floats.Add(out[c], b[c][:size])
			}
		}
		return out, nil
	}, nil
}

// Filter applies an IIR filter to every channel of the source. The filter
// is implemented in transposed direct form II, its state is carried
// across blocks. B are feedforward and A are feedback coefficients, A[0]
// must not be zero.
type Filter struct {
	Source acoustic.Source
	B      []float64
	A      []float64
}

// Properties returns properties of the source.
func (f Filter) Properties() acoustic.Properties {
	return f.Source.Properties()
}

// coefficients returns normalized coefficients of equal length.
func (f Filter) coefficients() ([]float64, []float64, error) {
	if len(f.B) == 0 || len(f.A) == 0 || f.A[0] == 0 {
		return nil, nil, fmt.Errorf("%w: b=%v a=%v", ErrInvalidCoefficients, f.B, f.A)
	}
	order := len(f.B)
	if len(f.A) > order {
		order = len(f.A)
	}
	b, a := make([]float64, order), make([]float64, order)
	copy(b, f.B)
	copy(a, f.A)
	floats.Scale(1/f.A[0], b)
	floats.Scale(1/f.A[0], a)
	return b, a, nil
}

// Blocks returns filtered blocks. Filter state starts from zero on every
// call.
func (f Filter) Blocks(blockSize int) (acoustic.BlockFunc, error) {
	b, a, err := f.coefficients()
	if err != nil {
		return nil, err
	}
	next, err := f.Source.Blocks(blockSize)
	if err != nil {
		return nil, err
	}
	state := signal.EmptyFloat64(f.Source.Properties().Channels, len(b)-1)
	return func() (signal.Float64, error) {
		in, err := next()
		if err != nil {
			return nil, err
		}
		out := signal.EmptyFloat64(in.NumChannels(), in.Size())
		for c := range in {
			lfilter(b, a, state[c], in[c], out[c])
		}
		return out, nil
	}, nil
}

func lfilter(b, a, z, x, y []float64) {
	n := len(b) - 1
	for i, v := range x {
		if n == 0 {
			y[i] = b[0] * v
			continue
		}
		out := b[0]*v + z[0]
		for k := 1; k < n; k++ {
			z[k-1] = b[k]*v - a[k]*out + z[k]
		}
		z[n-1] = b[n]*v - a[n]*out
		y[i] = out
	}
}

// MapFunc transforms a block. It must not modify the input block.
type MapFunc func(signal.Float64) (signal.Float64, error)

// Map applies a stateless function to every block of the source. Channels
// is the number of channels of produced blocks, zero means the same as
// source has. The number of samples must be preserved.
type Map struct {
	Source   acoustic.Source
	Channels int
	Func     MapFunc
}

// Properties returns properties of the mapped signal.
func (m Map) Properties() acoustic.Properties {
	props := m.Source.Properties()
	if m.Channels > 0 {
		props.Channels = m.Channels
	}
	return props
}

// Blocks returns mapped blocks.
func (m Map) Blocks(blockSize int) (acoustic.BlockFunc, error) {
	next, err := m.Source.Blocks(blockSize)
	if err != nil {
		return nil, err
	}
	channels := m.Properties().Channels
	return func() (signal.Float64, error) {
		b, err := next()
		if err != nil {
			return nil, err
		}
		out, err := m.Func(b)
		if err != nil {
			return nil, fmt.Errorf("error mapping block: %w", err)
		}
		if out.NumChannels() != channels || out.Size() != b.Size() {
			return nil, fmt.Errorf("map returned block %dx%d, expected %dx%d", out.NumChannels(), out.Size(), channels, b.Size())
		}
		return out, nil
	}, nil
}
