package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pipelined/acoustic/signal"
	"github.com/pipelined/acoustic/wav"
)

type infoCommand struct{}

func (c *infoCommand) command(logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.wav>",
		Short: "Show properties of wav file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := wav.NewSource(args[0])
			if err != nil {
				return err
			}
			props := source.Properties()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sample rate: %v\n", props.SampleRate)
			fmt.Fprintf(out, "channels:    %d\n", props.Channels)
			fmt.Fprintf(out, "samples:     %d\n", props.Samples)
			fmt.Fprintf(out, "bit depth:   %d\n", source.BitDepth())
			fmt.Fprintf(out, "duration:    %v\n", signal.DurationOf(props.SampleRate, int64(props.Samples)))
			return nil
		},
	}
}
