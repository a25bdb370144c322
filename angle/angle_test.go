package angle_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/acoustic"
	"github.com/pipelined/acoustic/angle"
	"github.com/pipelined/acoustic/internal/mock"
	"github.com/pipelined/acoustic/trigger"
)

// peaks returns n trigger indices with constant period.
func peaks(n, start, period int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = start + i*period
	}
	return p
}

// 10 revolutions per second at 1 kHz.
func TestConstantRotation(t *testing.T) {
	source := &mock.Source{Limit: 1200, Channels: 1, SampleRate: 1000}
	tracked, err := angle.Tracker{}.Track(source, peaks(10, 100, 100))
	require.NoError(t, err)
	assert.Equal(t, 2, tracked.Properties().Channels)
	assert.Equal(t, 1200, tracked.Properties().Samples)

	result, err := acoustic.ReadAll(tracked, 64)
	require.NoError(t, err)
	require.Equal(t, 1200, result.Size())
	for i, v := range result[angle.RPM] {
		assert.InDelta(t, 600, v, 1e-6, "sample %d", i)
	}

	tests := []struct {
		index    int
		expected float64
	}{
		{index: 100, expected: 0},
		{index: 125, expected: 1.5 * math.Pi},
		{index: 150, expected: math.Pi},
		{index: 50, expected: math.Pi},
		{index: 1150, expected: math.Pi},
	}
	for _, test := range tests {
		assert.InDelta(t, test.expected, result[angle.Angle][test.index], 1e-6, "sample %d", test.index)
	}
}

func TestTrackerSettings(t *testing.T) {
	source := &mock.Source{Limit: 500, Channels: 1, SampleRate: 1000, Replay: true}
	tracked, err := angle.Tracker{
		TriggersPerRevolution: 2,
		Direction:             1,
		StartAngle:            math.Pi / 4,
	}.Track(source, peaks(5, 0, 100))
	require.NoError(t, err)

	// two triggers per revolution halve the speed.
	rpm, a := tracked.At(50)
	assert.InDelta(t, 300, rpm, 1e-6)
	assert.InDelta(t, math.Pi/4+math.Pi/2, a, 1e-6)

	// replay follows the aligned source.
	_, err = acoustic.ReadAll(tracked, 100)
	require.NoError(t, err)
	_, err = acoustic.ReadAll(tracked, 100)
	require.NoError(t, err)
}

func TestTrackerErrors(t *testing.T) {
	source := &mock.Source{Limit: 500, Channels: 1, SampleRate: 1000}
	tests := []struct {
		tracker angle.Tracker
		peaks   []int
		err     error
	}{
		{peaks: peaks(3, 0, 100), err: trigger.ErrInsufficientData},
		{peaks: []int{0, 100, 100, 200}, err: angle.ErrInvalidConfig},
		{tracker: angle.Tracker{Direction: 2}, peaks: peaks(5, 0, 100), err: angle.ErrInvalidConfig},
		{tracker: angle.Tracker{TriggersPerRevolution: -1}, peaks: peaks(5, 0, 100), err: angle.ErrInvalidConfig},
	}
	for _, test := range tests {
		_, err := test.tracker.Track(source, test.peaks)
		assert.ErrorIs(t, err, test.err)
	}
}
