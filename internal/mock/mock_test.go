package mock_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/acoustic"
	"github.com/pipelined/acoustic/internal/mock"
)

func TestSource(t *testing.T) {
	tests := []struct {
		source   *mock.Source
		size     int
		blocks   int
		samples  int
		expected []float64
	}{
		{
			source:   &mock.Source{Limit: 10, Channels: 2, Value: 0.5},
			size:     4,
			blocks:   3,
			samples:  10,
			expected: []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
		},
		{
			source:   &mock.Source{Limit: 5, Channels: 1, Generator: mock.Ramp, Granularity: 2},
			size:     100,
			blocks:   3,
			samples:  5,
			expected: []float64{0, 1, 2, 3, 4},
		},
	}
	for _, test := range tests {
		next, err := test.source.Blocks(test.size)
		require.NoError(t, err)
		sink := &mock.Sink{}
		require.NoError(t, sink.Drain(next))
		blocks, samples := test.source.Count()
		assert.Equal(t, test.blocks, blocks)
		assert.Equal(t, test.samples, samples)
		assert.Equal(t, test.expected, sink.Buffer()[0])

		_, err = test.source.Blocks(test.size)
		assert.ErrorIs(t, err, acoustic.ErrExhausted)
	}
}

func TestSourceError(t *testing.T) {
	errTest := errors.New("test error")
	source := &mock.Source{Limit: 100, Channels: 1, ErrorOnCall: errTest, ErrorAfter: 2}
	next, err := source.Blocks(10)
	require.NoError(t, err)
	sink := &mock.Sink{Discard: true}
	assert.ErrorIs(t, sink.Drain(next), errTest)
	blocks, samples := sink.Count()
	assert.Equal(t, 2, blocks)
	assert.Equal(t, 20, samples)
}
