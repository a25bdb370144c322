package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/pipelined/acoustic/angle"
	"github.com/pipelined/acoustic/cache"
	"github.com/pipelined/acoustic/log"
	"github.com/pipelined/acoustic/wav"
	"github.com/pipelined/acoustic/window"
)

type triggerCommand struct {
	config     detectorConfig
	configPath string
	cacheMode  string
}

func (c *triggerCommand) command(logger *logrus.Logger) *cobra.Command {
	c.config = defaultDetectorConfig()
	c.configPath = ""
	c.cacheMode = cache.Individual.String()
	cmd := &cobra.Command{
		Use:   "trigger <file.wav>",
		Short: "Detect once-per-revolution trigger peaks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.configPath != "" {
				if err := c.config.load(c.configPath, cmd.Flags()); err != nil {
					return err
				}
			}
			return c.run(cmd, args[0], logger)
		},
	}
	c.config.register(cmd.Flags())
	cmd.Flags().StringVar(&c.configPath, "config", "", "yaml file with detector settings, flags take precedence")
	cmd.Flags().StringVar(&c.cacheMode, "cache", c.cacheMode, "cache mode of trigger channel: individual, none, readonly or overwrite")
	return cmd
}

func (c *triggerCommand) run(cmd *cobra.Command, path string, logger *logrus.Logger) error {
	detector, err := c.config.detector()
	if err != nil {
		return err
	}
	detector.Logger = log.WithComponent(logger, "trigger")
	mode, err := cache.ParseMode(c.cacheMode)
	if err != nil {
		return err
	}

	source, err := wav.NewSource(path)
	if err != nil {
		return err
	}
	w := window.Window{Stop: window.End, Channels: []int{c.config.Channel}}
	// estimated threshold needs two passes, the second one is served
	// from memory.
	key, err := cache.Descriptor{
		Stage:      "window",
		SampleRate: source.Properties().SampleRate,
		Channels:   w.Channels,
		Start:      w.Start,
		Stop:       w.Stop,
		Params:     map[string]string{"path": path},
	}.Key()
	if err != nil {
		return err
	}
	channel := cache.New(window.New(source, w), cache.NewMemory(), key, mode,
		cache.WithLogger(log.WithComponent(logger, "cache")),
	)
	result, err := detector.Detect(channel)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "threshold:    %v (estimated: %v)\n", result.Threshold, result.Estimated)
	fmt.Fprintf(out, "peaks:        %d\n", len(result.Peaks))
	fmt.Fprintf(out, "max distance: %d\n", result.MaxDistance)
	fmt.Fprintf(out, "min distance: %d\n", result.MinDistance)
	if len(result.Irregular) > 0 {
		fmt.Fprintf(out, "irregular:    %v\n", result.Irregular)
	}

	tracked, err := angle.Tracker{TriggersPerRevolution: c.config.TriggersPerRevolution}.Track(channel, result.Indices())
	if err != nil {
		logger.Warnf("rotation speed is not available: %v", err)
		return nil
	}
	rpm := make([]float64, len(result.Peaks))
	for i, p := range result.Peaks {
		rpm[i], _ = tracked.At(p.Index)
	}
	fmt.Fprintf(out, "rpm:          %.2f..%.2f\n", floats.Min(rpm), floats.Max(rpm))
	return nil
}
