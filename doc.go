/*
Package acoustic allows to build lazy, pull-based pipelines of multi-channel
time-series data such as microphone array recordings.

Concept

Every stage of the pipeline implements the Source contract:

    Properties - sample rate, number of channels and number of samples;
    Blocks - returns a BlockFunc that yields fixed-size blocks on demand.

Blocks are non-interleaved signal.Float64 buffers. Every block except the
last one has exactly the requested number of samples. The end of the
sequence is signaled with io.EOF.

Sources are not restartable unless documented otherwise. Once can be used
to enforce this for any source:

    src := acoustic.Once(wav.NewSource(path))

Stages

The library provides the following stages:

    window.Buffer - sample-accurate sub-range and channel selection;
    split.Splitter - bounded fan-out of one source to many consumers;
    trigger.Detector - once-per-revolution peak detection;
    angle.Tracker - rotation speed and angle from trigger peaks;
    process - power, average, mixing and filtering;
    cache.Cache - read-back and write-through caching of stage output.

Components are composed by wrapping one source into another:

    w := window.New(src, window.Window{Start: 1000, Stop: window.End, Channels: []int{0}})
    result, err := trigger.Detector{Threshold: 0.5}.Detect(w)
*/
package acoustic
