// Package wav reads and writes PCM wav files.
package wav

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/pipelined/acoustic"
	"github.com/pipelined/acoustic/signal"
)

// pcmFormat is the wav audio format code of integer PCM.
const pcmFormat = 1

var (
	// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
	ErrUnsupportedBitDepth = errors.New("only 16, 24 and 32 bit depth is supported")
	// ErrInvalidFile is returned when file is not a valid wav.
	ErrInvalidFile = errors.New("wav is not valid")
)

func validateBitDepth(bitDepth signal.BitDepth) error {
	switch bitDepth {
	case signal.BitDepth16, signal.BitDepth24, signal.BitDepth32:
		return nil
	}
	return fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
}

// Source reads samples from wav file. Every Blocks call reopens the file,
// the file is closed when all samples are read or error occurs.
type Source struct {
	path     string
	props    acoustic.Properties
	bitDepth signal.BitDepth
}

// NewSource reads wav header and returns a new source.
func NewSource(path string) (*Source, error) {
	f, d, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bitDepth := signal.BitDepth(d.BitDepth)
	samples := d.PCMSize / (int(d.BitDepth) / 8) / int(d.NumChans)
	return &Source{
		path:     path,
		bitDepth: bitDepth,
		props: acoustic.Properties{
			SampleRate: float64(d.SampleRate),
			Channels:   int(d.NumChans),
			Samples:    samples,
		},
	}, nil
}

// open opens the file and forwards decoder to PCM data.
func open(path string) (*os.File, *wav.Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidFile, path)
	}
	if err := validateBitDepth(signal.BitDepth(d.BitDepth)); err != nil {
		f.Close()
		return nil, nil, err
	}
	if d.NumChans == 0 {
		f.Close()
		return nil, nil, fmt.Errorf("%w: no channels in %s", ErrInvalidFile, path)
	}
	if err := d.FwdToPCM(); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("error reading pcm chunk of %s: %w", path, err)
	}
	return f, d, nil
}

// BitDepth returns bit depth of the file.
func (s *Source) BitDepth() signal.BitDepth {
	return s.bitDepth
}

// Properties returns properties of the file.
func (s *Source) Properties() acoustic.Properties {
	return s.props
}

// Blocks opens the file and returns its blocks.
func (s *Source) Blocks(blockSize int) (acoustic.BlockFunc, error) {
	if err := acoustic.ValidateBlockSize(blockSize); err != nil {
		return nil, err
	}
	f, d, err := open(s.path)
	if err != nil {
		return nil, err
	}
	numChannels := int(d.NumChans)
	data := make([]int, blockSize*numChannels)
	var closed bool
	closeFile := func() error {
		if closed {
			return nil
		}
		closed = true
		return f.Close()
	}
	return func() (signal.Float64, error) {
		if closed {
			return nil, io.EOF
		}
		// file reads can be short, fill the whole block.
		var filled int
		for filled < len(data) {
			ib := &audio.IntBuffer{Data: data[filled:]}
			n, err := d.PCMBuffer(ib)
			if err != nil {
				closeFile()
				return nil, fmt.Errorf("error reading %s: %w", s.path, err)
			}
			if n == 0 {
				break
			}
			filled += n
		}
		// trailing incomplete frame is dropped.
		filled -= filled % numChannels
		if filled == 0 {
			if err := closeFile(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		return signal.InterInt{
			Data:        data[:filled],
			NumChannels: numChannels,
			BitDepth:    s.bitDepth,
		}.AsFloat64(), nil
	}, nil
}

// Write consumes the source and writes its samples to the file.
func Write(path string, source acoustic.Source, bitDepth signal.BitDepth, blockSize int) error {
	if err := validateBitDepth(bitDepth); err != nil {
		return err
	}
	props := source.Properties()
	next, err := source.Blocks(blockSize)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	e := wav.NewEncoder(f, int(props.SampleRate), int(bitDepth), props.Channels, pcmFormat)
	ib := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: props.Channels,
			SampleRate:  int(props.SampleRate),
		},
		SourceBitDepth: int(bitDepth),
	}
	for {
		b, err := next()
		if err != nil {
			if err == io.EOF {
				break
			}
			f.Close()
			return err
		}
		ib.Data = b.AsInterInt(bitDepth)
		if err := e.Write(ib); err != nil {
			f.Close()
			return fmt.Errorf("error writing %s: %w", path, err)
		}
	}
	if err := e.Close(); err != nil {
		f.Close()
		return fmt.Errorf("error closing wav encoder: %w", err)
	}
	return f.Close()
}
