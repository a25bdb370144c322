package signal_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pipelined/acoustic/signal"
)

func TestInterIntsAsFloat64(t *testing.T) {
	tests := []struct {
		ints        []int
		numChannels int
		bitDepth    signal.BitDepth
		expected    [][]float64
	}{
		{
			ints:        []int{1, 2, 1, 2, 1, 2, 1, 2},
			numChannels: 2,
			expected: [][]float64{
				{1, 1, 1, 1},
				{2, 2, 2, 2},
			},
		},
		{
			ints:        []int{1, 2, 1, 2, 1},
			numChannels: 2,
			expected: [][]float64{
				{1, 1, 1},
				{2, 2, 0},
			},
		},
		{
			ints:        []int{math.MaxInt16, -math.MaxInt16},
			numChannels: 2,
			expected: [][]float64{
				{1},
				{-1},
			},
			bitDepth: signal.BitDepth16,
		},
		{
			ints:        []int{1<<23 - 1},
			numChannels: 1,
			expected:    [][]float64{{1}},
			bitDepth:    signal.BitDepth24,
		},
		{
			ints:     nil,
			expected: nil,
		},
		{
			ints:     []int{1, 2, 3},
			expected: nil,
		},
	}

	for _, test := range tests {
		ints := signal.InterInt{
			Data:        test.ints,
			NumChannels: test.numChannels,
			BitDepth:    test.bitDepth,
		}
		result := ints.AsFloat64()
		assert.Equal(t, len(test.expected), len(result))
		for i := range test.expected {
			assert.Equal(t, test.expected[i], []float64(result[i]))
		}
	}
}

func TestFloat64AsInterInt(t *testing.T) {
	tests := []struct {
		floats   [][]float64
		bitDepth signal.BitDepth
		expected []int
	}{
		{
			floats: [][]float64{
				{1, 0, -1},
				{0.5, 0.5, 0.5},
			},
			bitDepth: signal.BitDepth8,
			expected: []int{126, 63, 0, 63, -126, 63},
		},
		{
			floats: [][]float64{
				{2},
				{-3},
			},
			bitDepth: signal.BitDepth16,
			expected: []int{math.MaxInt16 - 1, -(math.MaxInt16 - 1)},
		},
		{
			floats:   nil,
			expected: nil,
		},
	}

	for _, test := range tests {
		floats := signal.Float64(test.floats)
		ints := floats.AsInterInt(test.bitDepth)
		assert.Equal(t, test.expected, ints)
	}
}

func TestSlice(t *testing.T) {
	block := signal.Float64{
		{0, 1, 2, 3, 4},
		{5, 6, 7, 8, 9},
	}
	tests := []struct {
		start    int
		length   int
		expected signal.Float64
	}{
		{start: 1, length: 2, expected: signal.Float64{{1, 2}, {6, 7}}},
		{start: 3, length: 10, expected: signal.Float64{{3, 4}, {8, 9}}},
		{start: 5, length: 1, expected: nil},
		{start: -1, length: 1, expected: nil},
	}
	for _, test := range tests {
		result := block.Slice(test.start, test.length)
		assert.Equal(t, test.expected, result)
	}

	// slice is a copy
	s := block.Slice(0, 1)
	s[0][0] = 100
	assert.Equal(t, 0.0, block[0][0])
}

func TestSelectAndAppend(t *testing.T) {
	block := signal.Float64{
		{0, 1},
		{2, 3},
		{4, 5},
	}
	selected := block.Select([]int{2, 0})
	assert.Equal(t, signal.Float64{{4, 5}, {0, 1}}, selected)
	assert.Equal(t, block, block.Select(nil))

	var all signal.Float64
	all = all.Append(selected)
	all = all.Append(selected)
	assert.Equal(t, 2, all.NumChannels())
	assert.Equal(t, 4, all.Size())
	assert.Equal(t, []float64{4, 5, 4, 5}, all[0])
}

func TestCopy(t *testing.T) {
	dst := signal.EmptyFloat64(2, 4)
	n := dst.Copy(1, signal.Float64{{1, 2}, {3, 4}})
	assert.Equal(t, 2, n)
	assert.Equal(t, signal.Float64{{0, 1, 2, 0}, {0, 3, 4, 0}}, dst)

	n = dst.Copy(3, signal.Float64{{7, 7}, {8, 8}})
	assert.Equal(t, 1, n)
	assert.Equal(t, 7.0, dst[0][3])
}

func TestDurationOf(t *testing.T) {
	assert.Equal(t, time.Second, signal.DurationOf(44100, 44100))
	assert.Equal(t, 500*time.Millisecond, signal.DurationOf(1000, 500))
	assert.Equal(t, time.Duration(0), signal.DurationOf(0, 500))
}
