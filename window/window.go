// Package window provides a sample-accurate view into a sub-range of
// source samples and channels.
//
// Buffer re-emits blocks of the requested size regardless of the block
// boundaries of its source:
//
//	source:  |----|----|----|----|----|
//	window:       [  start     stop)
//	output:       |---|---|---|-|
package window

import (
	"errors"
	"fmt"
	"io"

	"github.com/pipelined/acoustic"
	"github.com/pipelined/acoustic/signal"
)

// End is used as Window.Stop to select samples till the end of source.
const End = -1

var (
	// ErrEmptyWindow is returned when window doesn't contain any samples.
	ErrEmptyWindow = errors.New("window is empty")
	// ErrInvalidWindow is returned when window bounds or channels are out
	// of range.
	ErrInvalidWindow = errors.New("invalid window")
)

// Window defines a sub-range [Start, Stop) of samples and an ordered set of
// channels. Nil Channels selects all channels.
type Window struct {
	Start    int
	Stop     int
	Channels []int
}

// Exclude returns mask of all channels except invalid ones.
func Exclude(numChannels int, invalid ...int) []int {
	skip := make(map[int]struct{}, len(invalid))
	for _, c := range invalid {
		skip[c] = struct{}{}
	}
	channels := make([]int, 0, numChannels)
	for c := 0; c < numChannels; c++ {
		if _, ok := skip[c]; !ok {
			channels = append(channels, c)
		}
	}
	return channels
}

// bounds resolves window against total number of samples. Stop is End if
// total is unknown and window is not bounded.
func (w Window) bounds(total int) (int, int, error) {
	if w.Start < 0 || (w.Stop < 0 && w.Stop != End) {
		return 0, 0, fmt.Errorf("%w: [%d, %d)", ErrInvalidWindow, w.Start, w.Stop)
	}
	start, stop := w.Start, w.Stop
	if total >= 0 {
		if stop == End || stop > total {
			stop = total
		}
		if start > total {
			start = total
		}
	}
	if stop != End && start >= stop {
		return 0, 0, fmt.Errorf("%w: [%d, %d) of %d samples", ErrEmptyWindow, w.Start, w.Stop, total)
	}
	return start, stop, nil
}

// mask validates channels against number of source channels.
func (w Window) mask(numChannels int) ([]int, error) {
	if w.Channels == nil {
		return nil, nil
	}
	seen := make(map[int]struct{}, len(w.Channels))
	for _, c := range w.Channels {
		if c < 0 || c >= numChannels {
			return nil, fmt.Errorf("%w: channel %d of %d", ErrInvalidWindow, c, numChannels)
		}
		if _, ok := seen[c]; ok {
			return nil, fmt.Errorf("%w: duplicate channel %d", ErrInvalidWindow, c)
		}
		seen[c] = struct{}{}
	}
	return w.Channels, nil
}

// Buffer exposes the window of its source. It supports replay if the
// source does: every Blocks call reopens the source.
type Buffer struct {
	Window
	source acoustic.Source
}

// New returns a buffer for provided window of the source.
func New(source acoustic.Source, w Window) *Buffer {
	return &Buffer{
		Window: w,
		source: source,
	}
}

// Properties returns properties of the windowed signal. Samples is zero
// for invalid windows.
func (b *Buffer) Properties() acoustic.Properties {
	props := b.source.Properties()
	if b.Channels != nil {
		props.Channels = len(b.Channels)
	}
	start, stop, err := b.bounds(props.Samples)
	switch {
	case err != nil:
		props.Samples = 0
	case stop == End:
		props.Samples = acoustic.UnknownSamples
	default:
		props.Samples = stop - start
	}
	return props
}

// Blocks returns blocks of the window. ErrEmptyWindow is returned before
// the source is opened.
func (b *Buffer) Blocks(blockSize int) (acoustic.BlockFunc, error) {
	if err := acoustic.ValidateBlockSize(blockSize); err != nil {
		return nil, err
	}
	props := b.source.Properties()
	start, stop, err := b.bounds(props.Samples)
	if err != nil {
		return nil, err
	}
	channels, err := b.mask(props.Channels)
	if err != nil {
		return nil, err
	}
	numChannels := props.Channels
	if channels != nil {
		numChannels = len(channels)
	}
	if numChannels == 0 {
		return nil, fmt.Errorf("%w: no channels selected", ErrInvalidWindow)
	}
	next, err := b.source.Blocks(blockSize)
	if err != nil {
		return nil, fmt.Errorf("error opening window source: %w", err)
	}

	// full range doesn't need any buffering.
	if start == 0 && (stop == End || stop == props.Samples) {
		return func() (signal.Float64, error) {
			block, err := next()
			if err != nil || channels == nil {
				return block, err
			}
			return block.Select(channels), nil
		}, nil
	}

	slack := (blockSize - start%blockSize) % blockSize
	if slack == 0 {
		slack = blockSize
	}
	r := rewindow{
		next:     next,
		channels: channels,
		start:    start,
		stop:     stop,
		size:     blockSize,
		carry:    signal.EmptyFloat64(numChannels, blockSize+slack),
		view:     make(signal.Float64, numChannels),
	}
	return r.block, nil
}

// rewindow accumulates source rows in the carry buffer and emits them in
// blocks of fixed size.
type rewindow struct {
	next     acoustic.BlockFunc
	channels []int
	start    int
	stop     int
	size     int

	carry  signal.Float64
	filled int
	// masked rows of current block, not copied.
	view signal.Float64
	// current source block, position of its first sample and number of
	// consumed samples.
	current signal.Float64
	pos     int
	offset  int
	done    bool
}

func (r *rewindow) block() (signal.Float64, error) {
	capacity := r.carry.Size()
	for r.filled < r.size && !r.done {
		if r.offset >= r.current.Size() {
			r.pos += r.current.Size()
			if r.stop != End && r.pos >= r.stop {
				r.done = true
				break
			}
			b, err := r.next()
			if err != nil {
				if err == io.EOF {
					r.done = true
					break
				}
				return nil, err
			}
			r.current, r.offset = b, 0
			if r.pos+b.Size() <= r.start {
				r.offset = b.Size()
				continue
			}
			if r.pos < r.start {
				r.offset = r.start - r.pos
			}
		}

		end := r.current.Size()
		if r.stop != End && r.pos+end > r.stop {
			end = r.stop - r.pos
		}
		n := end - r.offset
		if free := capacity - r.filled; n > free {
			n = free
		}
		for i := range r.view {
			c := i
			if r.channels != nil {
				c = r.channels[i]
			}
			r.view[i] = r.current[c][r.offset : r.offset+n]
		}
		r.filled += r.carry.Copy(r.filled, r.view)
		r.offset += n
		if r.offset >= end {
			r.offset = r.current.Size()
		}
	}

	if r.filled == 0 {
		return nil, io.EOF
	}
	n := r.size
	if r.filled < n {
		n = r.filled
	}
	out := r.carry.Slice(0, n)
	for i := range r.carry {
		copy(r.carry[i], r.carry[i][n:r.filled])
	}
	r.filled -= n
	return out, nil
}
