// Package angle calculates rotation speed and angle for every sample of a
// signal from trigger peaks.
package angle

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"

	"github.com/pipelined/acoustic"
	"github.com/pipelined/acoustic/signal"
	"github.com/pipelined/acoustic/trigger"
)

// Channels of the tracker output.
const (
	RPM = iota
	Angle
)

// minPeaks is the number of peaks required to fit the spline.
const minPeaks = 4

// ErrInvalidConfig is returned when tracker settings are out of range.
var ErrInvalidConfig = errors.New("invalid angle tracker configuration")

// Tracker interpolates the number of revolutions between trigger peaks.
// Zero TriggersPerRevolution means one trigger per revolution. Direction
// is -1 for clockwise (default) and 1 for counter-clockwise rotation.
// StartAngle is the angle in radians at the trigger position.
type Tracker struct {
	TriggersPerRevolution int
	Direction             int
	StartAngle            float64
}

func (t Tracker) withDefaults() Tracker {
	if t.TriggersPerRevolution == 0 {
		t.TriggersPerRevolution = 1
	}
	if t.Direction == 0 {
		t.Direction = -1
	}
	return t
}

// Track returns a two-channel source aligned with provided one: RPM
// channel contains revolutions per minute and Angle channel contains
// rotation angle in [0, 2π). Peaks are sample indices of triggers in
// increasing order. Outside of peaks the rotation is extrapolated
// linearly.
func (t Tracker) Track(source acoustic.Source, peaks []int) (*Source, error) {
	t = t.withDefaults()
	if t.TriggersPerRevolution < 0 {
		return nil, fmt.Errorf("%w: %d triggers per revolution", ErrInvalidConfig, t.TriggersPerRevolution)
	}
	if t.Direction != 1 && t.Direction != -1 {
		return nil, fmt.Errorf("%w: direction %d", ErrInvalidConfig, t.Direction)
	}
	if len(peaks) < minPeaks {
		return nil, fmt.Errorf("%w: %d peaks, at least %d required", trigger.ErrInsufficientData, len(peaks), minPeaks)
	}

	xs, ys := make([]float64, len(peaks)), make([]float64, len(peaks))
	for i, p := range peaks {
		if i > 0 && p <= peaks[i-1] {
			return nil, fmt.Errorf("%w: peaks are not increasing at %d", ErrInvalidConfig, i)
		}
		xs[i] = float64(p)
		ys[i] = float64(i) / float64(t.TriggersPerRevolution)
	}
	var spline interp.AkimaSpline
	if err := spline.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("error fitting rotation spline: %w", err)
	}
	return &Source{
		Tracker:    t,
		source:     source,
		spline:     &spline,
		first:      xs[0],
		last:       xs[len(xs)-1],
		sampleRate: source.Properties().SampleRate,
	}, nil
}

// Source produces rpm and angle channels. It supports replay if the
// aligned source does.
type Source struct {
	Tracker
	source     acoustic.Source
	spline     *interp.AkimaSpline
	first      float64
	last       float64
	sampleRate float64
}

// Properties returns properties of the tracker output.
func (s *Source) Properties() acoustic.Properties {
	props := s.source.Properties()
	props.Channels = 2
	return props
}

// Blocks returns rpm and angle blocks. The aligned source is read to
// follow its length.
func (s *Source) Blocks(blockSize int) (acoustic.BlockFunc, error) {
	next, err := s.source.Blocks(blockSize)
	if err != nil {
		return nil, err
	}
	var pos int
	return func() (signal.Float64, error) {
		b, err := next()
		if err != nil {
			return nil, err
		}
		out := signal.EmptyFloat64(2, b.Size())
		for i := range out[RPM] {
			out[RPM][i], out[Angle][i] = s.At(pos + i)
		}
		pos += b.Size()
		return out, nil
	}, nil
}

// At returns rpm and angle at provided sample index.
func (s *Source) At(index int) (float64, float64) {
	x := float64(index)
	var revolutions, slope float64
	switch {
	case x < s.first:
		slope = s.spline.PredictDerivative(s.first)
		revolutions = s.spline.Predict(s.first) + slope*(x-s.first)
	case x > s.last:
		slope = s.spline.PredictDerivative(s.last)
		revolutions = s.spline.Predict(s.last) + slope*(x-s.last)
	default:
		slope = s.spline.PredictDerivative(x)
		revolutions = s.spline.Predict(x)
	}
	rpm := slope * 60 * s.sampleRate
	angle := math.Mod(revolutions*2*math.Pi*float64(s.Direction)+s.StartAngle, 2*math.Pi)
	if angle < 0 {
		angle += 2 * math.Pi
	}
	return rpm, angle
}
