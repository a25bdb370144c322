package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pipelined/acoustic"
	"github.com/pipelined/acoustic/log"
	"github.com/pipelined/acoustic/process"
	"github.com/pipelined/acoustic/signal"
	"github.com/pipelined/acoustic/split"
	"github.com/pipelined/acoustic/wav"
	"github.com/pipelined/acoustic/window"
)

type splitCommand struct {
	outDir     string
	blockSize  int
	bufferSize int
	average    int
	power      bool
	policy     string
	bitDepth   int
}

func (c *splitCommand) command(logger *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <file.wav>",
		Short: "Write every channel into a separate wav file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, args[0], logger)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&c.outDir, "out", "o", ".", "output directory")
	fs.IntVar(&c.blockSize, "block-size", 1024, "number of samples per block")
	fs.IntVar(&c.bufferSize, "buffer-size", split.DefaultBufferSize, "number of blocks buffered per channel")
	fs.IntVar(&c.average, "average", 1, "number of averaged samples")
	fs.BoolVar(&c.power, "power", false, "square the samples")
	fs.StringVar(&c.policy, "policy", "fail", "overflow policy: fail, warn or drop")
	fs.IntVar(&c.bitDepth, "bit-depth", 0, "bit depth of output files, defaults to input's one")
	return cmd
}

func parsePolicy(s string) (split.Policy, error) {
	for _, p := range []split.Policy{split.Fail, split.Warn, split.Drop} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown overflow policy %q", s)
}

func (c *splitCommand) run(cmd *cobra.Command, path string, logger *logrus.Logger) error {
	policy, err := parsePolicy(c.policy)
	if err != nil {
		return err
	}
	if c.average < 1 {
		return fmt.Errorf("%w: %d", process.ErrInvalidAverage, c.average)
	}
	source, err := wav.NewSource(path)
	if err != nil {
		return err
	}
	bitDepth := signal.BitDepth(c.bitDepth)
	if bitDepth == 0 {
		bitDepth = source.BitDepth()
	}

	// averaging stage pulls average*blockSize samples at once.
	s, err := split.New(source, c.blockSize*c.average,
		split.WithBufferSize(c.bufferSize),
		split.WithLogger(log.WithComponent(logger, "split")),
	)
	if err != nil {
		return err
	}
	defer s.Close()

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	outputs := make([]string, source.Properties().Channels)
	var g errgroup.Group
	for i := range outputs {
		var stage acoustic.Source = window.New(
			s.Register(split.WithPolicy(policy)),
			window.Window{Stop: window.End, Channels: []int{i}},
		)
		if c.power {
			stage = process.Power{Source: stage}
		}
		if c.average > 1 {
			stage = process.Average{Source: stage, N: c.average}
		}
		outputs[i] = filepath.Join(c.outDir, fmt.Sprintf("%s_%d.wav", base, i))
		output := outputs[i]
		g.Go(func() error {
			return wav.Write(output, stage, bitDepth, c.blockSize)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, output := range outputs {
		fmt.Fprintf(out, "%s\n", output)
	}
	logger.Debugf("split %s metrics: %v", s.ID(), s.Metrics())
	return nil
}
