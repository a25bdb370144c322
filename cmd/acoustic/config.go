package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/pipelined/acoustic/trigger"
)

// detectorConfig is the yaml representation of trigger detector settings.
type detectorConfig struct {
	Channel               int     `yaml:"channel"`
	Threshold             float64 `yaml:"threshold"`
	Mode                  string  `yaml:"mode"`
	Policy                string  `yaml:"policy"`
	HunkLength            float64 `yaml:"hunk_length"`
	MaxVariation          float64 `yaml:"max_variation"`
	BlockSize             int     `yaml:"block_size"`
	TriggersPerRevolution int     `yaml:"triggers_per_revolution"`
}

func defaultDetectorConfig() detectorConfig {
	return detectorConfig{
		Mode:                  "level",
		Policy:                "extremum",
		HunkLength:            trigger.DefaultHunkLength,
		MaxVariation:          trigger.DefaultMaxVariation,
		BlockSize:             trigger.DefaultBlockSize,
		TriggersPerRevolution: 1,
	}
}

// register binds config fields to flags.
func (c *detectorConfig) register(fs *pflag.FlagSet) {
	fs.IntVar(&c.Channel, "channel", c.Channel, "index of trigger channel")
	fs.Float64Var(&c.Threshold, "threshold", c.Threshold, "trigger threshold, estimated if zero")
	fs.StringVar(&c.Mode, "mode", c.Mode, "trigger mode: level or edge")
	fs.StringVar(&c.Policy, "policy", c.Policy, "hunk policy: extremum or first")
	fs.Float64Var(&c.HunkLength, "hunk-length", c.HunkLength, "fraction of revolution where only one peak is valid")
	fs.Float64Var(&c.MaxVariation, "max-variation", c.MaxVariation, "allowed deviation of revolution length")
	fs.IntVar(&c.BlockSize, "block-size", c.BlockSize, "number of samples per block")
	fs.IntVar(&c.TriggersPerRevolution, "triggers-per-revolution", c.TriggersPerRevolution, "number of trigger peaks per revolution")
}

// load reads yaml file into config. Values of flags that were set
// explicitly are preserved.
func (c *detectorConfig) load(path string, fs *pflag.FlagSet) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fromFile := *c
	if err := yaml.Unmarshal(b, &fromFile); err != nil {
		return fmt.Errorf("error parsing config %s: %w", path, err)
	}
	flags := *c
	*c = fromFile
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "channel":
			c.Channel = flags.Channel
		case "threshold":
			c.Threshold = flags.Threshold
		case "mode":
			c.Mode = flags.Mode
		case "policy":
			c.Policy = flags.Policy
		case "hunk-length":
			c.HunkLength = flags.HunkLength
		case "max-variation":
			c.MaxVariation = flags.MaxVariation
		case "block-size":
			c.BlockSize = flags.BlockSize
		case "triggers-per-revolution":
			c.TriggersPerRevolution = flags.TriggersPerRevolution
		}
	})
	return nil
}

func (c detectorConfig) detector() (trigger.Detector, error) {
	d := trigger.Detector{
		Threshold:    c.Threshold,
		HunkLength:   c.HunkLength,
		MaxVariation: c.MaxVariation,
		BlockSize:    c.BlockSize,
	}
	switch c.Mode {
	case "level":
		d.Mode = trigger.Level
	case "edge":
		d.Mode = trigger.Edge
	default:
		return trigger.Detector{}, fmt.Errorf("%w: unknown mode %q", trigger.ErrInvalidConfig, c.Mode)
	}
	switch c.Policy {
	case "extremum":
		d.Policy = trigger.Extremum
	case "first":
		d.Policy = trigger.First
	default:
		return trigger.Detector{}, fmt.Errorf("%w: unknown policy %q", trigger.ErrInvalidConfig, c.Policy)
	}
	return d, nil
}
