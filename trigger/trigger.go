// Package trigger identifies once-per-revolution trigger peaks in a single
// channel signal.
//
// The detector searches for samples above/below a signed threshold. The
// greatest distance between adjacent peaks is an estimate of one
// revolution. Peaks closer than a hunk (a fraction of that estimate) are
// reduced to one, and finally the distances between the remaining peaks are
// checked to not vary too much.
package trigger

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pipelined/acoustic"
	"github.com/pipelined/acoustic/log"
)

// Default detector settings.
const (
	DefaultHunkLength   = 0.1
	DefaultMaxVariation = 0.02
	DefaultBlockSize    = 2048
)

var (
	// ErrChannelCount is returned when trigger signal has other than one
	// channel.
	ErrChannelCount = errors.New("trigger signal must have exactly one channel")
	// ErrInsufficientData is returned when less than two peaks are found.
	ErrInsufficientData = errors.New("not enough trigger data")
	// ErrInvalidConfig is returned when detector settings are out of range.
	ErrInvalidConfig = errors.New("invalid trigger configuration")
)

// Mode defines how samples are compared against threshold.
type Mode int

const (
	// Level mode triggers on samples above positive or below negative
	// threshold. It's used for single pulses.
	Level Mode = iota
	// Edge mode compares the difference between adjacent samples. It's used
	// for rectangular signals: positive threshold triggers on rising edges,
	// negative on falling ones.
	Edge
)

// Policy defines which peak is kept when multiple peaks are within one hunk.
type Policy int

const (
	// Extremum keeps the peak with larger absolute value.
	Extremum Policy = iota
	// First keeps the earliest peak.
	First
)

// Detector finds trigger peaks. Zero values of HunkLength, MaxVariation and
// BlockSize are replaced with defaults. Zero Threshold is estimated from
// the signal, this requires a source that supports replay.
type Detector struct {
	Threshold    float64
	Mode         Mode
	Policy       Policy
	HunkLength   float64
	MaxVariation float64
	BlockSize    int
	Logger       acoustic.Logger
}

// Peak is a confirmed trigger sample.
type Peak struct {
	Index int
	Value float64
}

// Result of trigger detection.
type Result struct {
	Peaks       []Peak
	MaxDistance int
	MinDistance int
	Threshold   float64
	// Estimated is true if threshold was not provided.
	Estimated bool
	// Irregular contains indices of peaks which start revolutions with
	// too large deviation from the mean revolution length.
	Irregular []int
}

// Indices returns sample indices of peaks.
func (r Result) Indices() []int {
	indices := make([]int, len(r.Peaks))
	for i, p := range r.Peaks {
		indices[i] = p.Index
	}
	return indices
}

func (d Detector) withDefaults() Detector {
	if d.HunkLength == 0 {
		d.HunkLength = DefaultHunkLength
	}
	if d.MaxVariation == 0 {
		d.MaxVariation = DefaultMaxVariation
	}
	if d.BlockSize == 0 {
		d.BlockSize = DefaultBlockSize
	}
	if d.Logger == nil {
		d.Logger = log.WithComponent(log.GetLogger(), "trigger")
	}
	return d
}

func (d Detector) validate() error {
	if d.HunkLength <= 0 || d.HunkLength > 1 {
		return fmt.Errorf("%w: hunk length %v must be in (0, 1]", ErrInvalidConfig, d.HunkLength)
	}
	if d.MaxVariation < 0 {
		return fmt.Errorf("%w: negative max variation %v", ErrInvalidConfig, d.MaxVariation)
	}
	if d.Mode != Level && d.Mode != Edge {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidConfig, d.Mode)
	}
	if d.Policy != Extremum && d.Policy != First {
		return fmt.Errorf("%w: unknown policy %d", ErrInvalidConfig, d.Policy)
	}
	return acoustic.ValidateBlockSize(d.BlockSize)
}

// Detect consumes the source and returns confirmed peaks.
func (d Detector) Detect(source acoustic.Source) (Result, error) {
	d = d.withDefaults()
	if err := d.validate(); err != nil {
		return Result{}, err
	}
	if n := source.Properties().Channels; n != 1 {
		return Result{}, fmt.Errorf("%w: got %d", ErrChannelCount, n)
	}

	result := Result{Threshold: d.Threshold}
	if result.Threshold == 0 {
		threshold, err := estimate(source, d.BlockSize)
		if err != nil {
			return Result{}, err
		}
		result.Threshold, result.Estimated = threshold, true
		d.Logger.Warn(fmt.Sprintf("no threshold was passed, estimated threshold %v is used", threshold))
	}

	s := scanner{threshold: result.Threshold, mode: d.Mode}
	if err := each(source, d.BlockSize, s.scan); err != nil {
		return Result{}, err
	}
	if len(s.peaks) < 2 {
		return Result{}, fmt.Errorf("%w: %d peaks found, check threshold sign and value", ErrInsufficientData, len(s.peaks))
	}
	d.Logger.Debug(fmt.Sprintf("found %d samples above threshold %v", len(s.peaks), result.Threshold))

	hunk := d.HunkLength * floats.Max(distances(s.peaks))
	result.Peaks = collapse(s.peaks, hunk, d.Policy)

	gaps := distances(result.Peaks)
	result.MaxDistance, result.MinDistance = int(floats.Max(gaps)), int(floats.Min(gaps))
	mean := stat.Mean(gaps, nil)
	for i, gap := range gaps {
		if math.Abs(gap-mean) > d.MaxVariation*mean {
			result.Irregular = append(result.Irregular, result.Peaks[i].Index)
		}
	}
	if len(result.Irregular) > 0 {
		d.Logger.Warn(fmt.Sprintf("distances between trigger peaks vary too much, check samples %v", result.Irregular))
	}
	return result, nil
}

// each calls fn for every block of the only source channel.
func each(source acoustic.Source, blockSize int, fn func([]float64)) error {
	next, err := source.Blocks(blockSize)
	if err != nil {
		return err
	}
	for {
		b, err := next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if b.NumChannels() != 1 {
			return fmt.Errorf("%w: got block with %d", ErrChannelCount, b.NumChannels())
		}
		fn(b[0])
	}
}

// estimate returns 75% of the largest deviation of extremums from the
// mean value.
func estimate(source acoustic.Source, blockSize int) (float64, error) {
	var (
		lowest  = math.Inf(1)
		highest = math.Inf(-1)
		sum     float64
		count   int
	)
	err := each(source, blockSize, func(x []float64) {
		if len(x) == 0 {
			return
		}
		lowest = math.Min(lowest, floats.Min(x))
		highest = math.Max(highest, floats.Max(x))
		sum += floats.Sum(x)
		count += len(x)
	})
	if err != nil {
		return 0, fmt.Errorf("error estimating threshold: %w", err)
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: empty signal", ErrInsufficientData)
	}
	mean := sum / float64(count)
	deviation := lowest - mean
	if math.Abs(highest-mean) > math.Abs(deviation) {
		deviation = highest - mean
	}
	if deviation == 0 {
		return 0, fmt.Errorf("%w: constant signal", ErrInsufficientData)
	}
	return 0.75 * deviation, nil
}

// scanner collects samples that pass the threshold across block
// boundaries.
type scanner struct {
	threshold float64
	mode      Mode
	pos       int
	prev      float64
	started   bool
	peaks     []Peak
}

func (s *scanner) scan(x []float64) {
	for i, v := range x {
		test := v
		if s.mode == Edge {
			test, s.prev = v-s.prev, v
			if !s.started {
				s.started = true
				continue
			}
		}
		if s.passes(test) {
			s.peaks = append(s.peaks, Peak{Index: s.pos + i, Value: v})
		}
	}
	s.pos += len(x)
}

func (s *scanner) passes(v float64) bool {
	if s.threshold > 0 {
		return v > s.threshold
	}
	return v < s.threshold
}

// distances returns distances between adjacent peaks.
func distances(peaks []Peak) []float64 {
	d := make([]float64, 0, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		d = append(d, float64(peaks[i].Index-peaks[i-1].Index))
	}
	return d
}

// collapse reduces peaks until no distance between adjacent peaks is
// shorter than hunk. The first collision is always resolved first and the
// distances before it stay unchanged, so every collision is resolved
// against the last kept peak. Ties of Extremum policy keep the later peak.
func collapse(peaks []Peak, hunk float64, policy Policy) []Peak {
	kept := make([]Peak, 1, len(peaks))
	kept[0] = peaks[0]
	for _, p := range peaks[1:] {
		last := &kept[len(kept)-1]
		if float64(p.Index-last.Index) >= hunk {
			kept = append(kept, p)
			continue
		}
		if policy == Extremum && math.Abs(p.Value) >= math.Abs(last.Value) {
			*last = p
		}
	}
	return kept
}
