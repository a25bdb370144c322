package process_test

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/acoustic"
	"github.com/pipelined/acoustic/internal/mock"
	"github.com/pipelined/acoustic/process"
	"github.com/pipelined/acoustic/signal"
)

func TestPower(t *testing.T) {
	source := &mock.Source{Limit: 25, Channels: 2, Generator: mock.Ramp, Replay: true}
	power := process.Power{Source: source}
	assert.Equal(t, source.Properties(), power.Properties())

	result, err := acoustic.ReadAll(power, 10)
	require.NoError(t, err)
	require.Equal(t, 25, result.Size())
	for c := range result {
		for i, v := range result[c] {
			x := mock.Ramp(c, i)
			assert.Equal(t, x*x, v)
		}
	}

	// replay follows upstream.
	_, err = acoustic.ReadAll(power, 7)
	require.NoError(t, err)
	_, err = acoustic.ReadAll(process.Power{Source: acoustic.Once(source)}, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, source.Opened())
}

func TestReverse(t *testing.T) {
	source := &mock.Source{Limit: 25, Channels: 2, Generator: mock.Ramp, Replay: true}
	reverse := process.Reverse{Source: source}
	assert.Equal(t, source.Properties(), reverse.Properties())

	next, err := reverse.Blocks(10)
	require.NoError(t, err)
	var sizes []int
	result := signal.EmptyFloat64(2, 0)
	for {
		b, err := next()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
		sizes = append(sizes, b.Size())
		result = result.Append(b)
	}
	assert.Equal(t, []int{10, 10, 5}, sizes)
	for c := range result {
		for i, v := range result[c] {
			assert.Equal(t, mock.Ramp(c, 24-i), v)
		}
	}

	_, err = reverse.Blocks(0)
	assert.ErrorIs(t, err, acoustic.ErrBlockSize)
	// upstream is read on every Blocks call.
	once := process.Reverse{Source: acoustic.Once(source)}
	_, err = once.Blocks(10)
	require.NoError(t, err)
	_, err = once.Blocks(10)
	assert.ErrorIs(t, err, acoustic.ErrExhausted)
}

func TestAverage(t *testing.T) {
	tests := []struct {
		limit     int
		n         int
		blockSize int
		expected  []float64
	}{
		{limit: 12, n: 4, blockSize: 2, expected: []float64{1.5, 5.5, 9.5}},
		{limit: 14, n: 4, blockSize: 2, expected: []float64{1.5, 5.5, 9.5}},
		{limit: 10, n: 2, blockSize: 3, expected: []float64{0.5, 2.5, 4.5, 6.5, 8.5}},
		{limit: 3, n: 4, blockSize: 1, expected: nil},
	}
	for _, test := range tests {
		source := &mock.Source{Limit: test.limit, Channels: 1, Generator: mock.Ramp, SampleRate: 1000}
		avg := process.Average{Source: source, N: test.n}
		props := avg.Properties()
		assert.Equal(t, 1000/float64(test.n), props.SampleRate)
		assert.Equal(t, test.limit/test.n, props.Samples)

		result, err := acoustic.ReadAll(avg, test.blockSize)
		require.NoError(t, err)
		if test.expected == nil {
			assert.Equal(t, 0, result.Size())
			continue
		}
		assert.Equal(t, test.expected, result[0])
	}

	_, err := process.Average{Source: &mock.Source{Limit: 10, Channels: 1}}.Blocks(10)
	assert.ErrorIs(t, err, process.ErrInvalidAverage)
}

func TestMixer(t *testing.T) {
	a := &mock.Source{Limit: 30, Channels: 2, Generator: mock.Ramp, SampleRate: 44100}
	b := &mock.Source{Limit: 25, Channels: 2, Value: 0.5, SampleRate: 44100}
	mixer := process.Mixer{Sources: []acoustic.Source{a, b}}
	assert.Equal(t, 25, mixer.Properties().Samples)

	result, err := acoustic.ReadAll(mixer, 10)
	require.NoError(t, err)
	require.Equal(t, 25, result.Size())
	for c := range result {
		for i, v := range result[c] {
			assert.Equal(t, mock.Ramp(c, i)+0.5, v)
		}
	}

	tests := []process.Mixer{
		{},
		{Sources: []acoustic.Source{a, &mock.Source{Limit: 10, Channels: 1, SampleRate: 44100}}},
		{Sources: []acoustic.Source{a, &mock.Source{Limit: 10, Channels: 2, SampleRate: 48000}}},
	}
	for _, m := range tests {
		_, err := m.Blocks(10)
		assert.ErrorIs(t, err, process.ErrIncompatible)
	}
}

func TestFilter(t *testing.T) {
	impulse := signal.EmptyFloat64(1, 8)
	impulse[0][0] = 1
	tests := []struct {
		b, a     []float64
		expected []float64
	}{
		{
			// one pole low-pass.
			b:        []float64{0.5},
			a:        []float64{1, -0.5},
			expected: []float64{0.5, 0.25, 0.125, 0.0625, 0.03125, 0.015625, 0.0078125, 0.00390625},
		},
		{
			// moving average.
			b:        []float64{1, 1},
			a:        []float64{2},
			expected: []float64{0.5, 0.5, 0, 0, 0, 0, 0, 0},
		},
		{
			b:        []float64{2},
			a:        []float64{1},
			expected: []float64{2, 0, 0, 0, 0, 0, 0, 0},
		},
	}
	for _, test := range tests {
		// state must be carried across any block boundaries.
		for _, blockSize := range []int{1, 3, 8} {
			f := process.Filter{Source: &acoustic.Memory{Data: impulse}, B: test.b, A: test.a}
			result, err := acoustic.ReadAll(f, blockSize)
			require.NoError(t, err)
			assert.InDeltaSlice(t, test.expected, result[0], 1e-12)
		}
	}

	_, err := process.Filter{Source: &acoustic.Memory{Data: impulse}, B: []float64{1}, A: []float64{0, 1}}.Blocks(8)
	assert.ErrorIs(t, err, process.ErrInvalidCoefficients)
	_, err = process.Filter{Source: &acoustic.Memory{Data: impulse}, A: []float64{1}}.Blocks(8)
	assert.ErrorIs(t, err, process.ErrInvalidCoefficients)
}

func TestMap(t *testing.T) {
	source := &mock.Source{Limit: 20, Channels: 3, Generator: mock.Ramp}
	sum := process.Map{
		Source:   source,
		Channels: 1,
		Func: func(b signal.Float64) (signal.Float64, error) {
			out := signal.EmptyFloat64(1, b.Size())
			for c := range b {
				for i, v := range b[c] {
					out[0][i] += v
				}
			}
			return out, nil
		},
	}
	assert.Equal(t, 1, sum.Properties().Channels)
	result, err := acoustic.ReadAll(sum, 8)
	require.NoError(t, err)
	require.Equal(t, 20, result.Size())
	assert.Equal(t, 3000.0, result[0][0])
	assert.Equal(t, 3003.0, result[0][1])

	errTest := errors.New("test error")
	failing := process.Map{
		Source: &mock.Source{Limit: 20, Channels: 1},
		Func: func(signal.Float64) (signal.Float64, error) {
			return nil, errTest
		},
	}
	_, err = acoustic.ReadAll(failing, 8)
	assert.ErrorIs(t, err, errTest)

	wrong := process.Map{
		Source: &mock.Source{Limit: 20, Channels: 2},
		Func: func(b signal.Float64) (signal.Float64, error) {
			return b.Select([]int{0}), nil
		},
	}
	_, err = acoustic.ReadAll(wrong, 8)
	assert.Error(t, err)
}
