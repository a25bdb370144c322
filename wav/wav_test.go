package wav_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/acoustic"
	"github.com/pipelined/acoustic/internal/mock"
	"github.com/pipelined/acoustic/signal"
	"github.com/pipelined/acoustic/wav"
)

func sine(numChannels, size int) *acoustic.Memory {
	data := signal.EmptyFloat64(numChannels, size)
	for c := range data {
		for i := range data[c] {
			data[c][i] = 0.5 * math.Sin(2*math.Pi*float64(i*(c+1))/100)
		}
	}
	return &acoustic.Memory{SampleRate: 44100, Data: data}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		bitDepth  signal.BitDepth
		blockSize int
	}{
		{bitDepth: signal.BitDepth16, blockSize: 128},
		{bitDepth: signal.BitDepth24, blockSize: 1000},
		{bitDepth: signal.BitDepth32, blockSize: 333},
	}
	for _, test := range tests {
		path := filepath.Join(t.TempDir(), "test.wav")
		input := sine(2, 1000)
		require.NoError(t, wav.Write(path, input, test.bitDepth, test.blockSize))

		source, err := wav.NewSource(path)
		require.NoError(t, err)
		assert.Equal(t, acoustic.Properties{SampleRate: 44100, Channels: 2, Samples: 1000}, source.Properties())
		assert.Equal(t, test.bitDepth, source.BitDepth())

		next, err := source.Blocks(test.blockSize)
		require.NoError(t, err)
		sink := &mock.Sink{}
		require.NoError(t, sink.Drain(next))
		blocks, samples := sink.Count()
		assert.Equal(t, source.Properties().NumBlocks(test.blockSize), blocks)
		assert.Equal(t, 1000, samples)

		// precision of the most narrow bit depth.
		delta := 2.0 / math.MaxInt16
		result := sink.Buffer()
		for c := range result {
			assert.InDeltaSlice(t, input.Data[c], result[c], delta)
		}

		// file is reopened on every call.
		replay, err := acoustic.ReadAll(source, 64)
		require.NoError(t, err)
		assert.Equal(t, result, replay)
	}
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()
	err := wav.Write(filepath.Join(dir, "test.wav"), sine(1, 10), signal.BitDepth8, 10)
	assert.ErrorIs(t, err, wav.ErrUnsupportedBitDepth)

	_, err = wav.NewSource(filepath.Join(dir, "missing.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	invalid := filepath.Join(dir, "invalid.wav")
	require.NoError(t, os.WriteFile(invalid, []byte("definitely not a wav file"), 0o644))
	_, err = wav.NewSource(invalid)
	assert.ErrorIs(t, err, wav.ErrInvalidFile)

	source, err := wav.NewSource(writeTestFile(t, dir))
	require.NoError(t, err)
	_, err = source.Blocks(0)
	assert.ErrorIs(t, err, acoustic.ErrBlockSize)
}

func writeTestFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "valid.wav")
	require.NoError(t, wav.Write(path, sine(1, 100), signal.BitDepth16, 10))
	return path
}
