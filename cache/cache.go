// Package cache stores results of pipeline stages under stable keys.
//
// Keys are computed from a versioned Descriptor of the producing stage.
// The Stage wraps a source and, depending on Mode, reads blocks back from
// the Store or writes them through while they are consumed.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/pipelined/acoustic"
	"github.com/pipelined/acoustic/log"
	"github.com/pipelined/acoustic/signal"
)

// DescriptorVersion is the current version of Descriptor layout. It's
// a part of every key, so changing it invalidates all cached entries.
const DescriptorVersion = 1

var (
	// ErrNotFound is returned when key is not present in store.
	ErrNotFound = errors.New("cache entry not found")
	// ErrCommitted is returned when appending to committed entry.
	ErrCommitted = errors.New("cache entry is already committed")
)

// Descriptor is an explicit description of the stage configuration that
// produced cached signal. Upstream is the key of the source stage.
type Descriptor struct {
	Version    int               `yaml:"version"`
	Stage      string            `yaml:"stage"`
	SampleRate float64           `yaml:"sample_rate"`
	Channels   []int             `yaml:"channels,omitempty"`
	Start      int               `yaml:"start"`
	Stop       int               `yaml:"stop"`
	Params     map[string]string `yaml:"params,omitempty"`
	Upstream   string            `yaml:"upstream,omitempty"`
}

// Key returns hex encoded sha256 of descriptor's yaml representation. Map
// keys are sorted by encoder, so equal descriptors always have equal keys.
// Zero version is replaced with DescriptorVersion.
func (d Descriptor) Key() (string, error) {
	if d.Version == 0 {
		d.Version = DescriptorVersion
	}
	b, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("error encoding descriptor: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

type (
	// Store keeps cached signals.
	Store interface {
		Exists(key string) bool
		// Open starts a new entry. It becomes visible only after commit.
		Open(key string, props acoustic.Properties) (Appender, error)
		// Read returns up to n samples starting from start. Empty block
		// is returned when start is beyond the entry.
		Read(key string, start, n int) (signal.Float64, error)
		Properties(key string) (acoustic.Properties, error)
		Remove(key string) error
	}

	// Appender appends blocks to an entry.
	Appender interface {
		Append(signal.Float64) error
		Commit() error
	}
)

// Mode defines how cache stage uses its store.
type Mode int

const (
	// Individual reads back the cached entry if it exists and writes
	// through otherwise.
	Individual Mode = iota
	// None doesn't use cache.
	None
	// ReadOnly reads back the cached entry if it exists, but never writes.
	ReadOnly
	// Overwrite always recalculates and replaces the cached entry.
	Overwrite
)

func (m Mode) String() string {
	switch m {
	case Individual:
		return "individual"
	case None:
		return "none"
	case ReadOnly:
		return "readonly"
	case Overwrite:
		return "overwrite"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode returns mode by its name.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{Individual, None, ReadOnly, Overwrite} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown cache mode %q", s)
}

// Stage is a caching source.
type Stage struct {
	source acoustic.Source
	store  Store
	key    string
	mode   Mode
	logger acoustic.Logger
}

// Option configures cache stage.
type Option func(*Stage)

// WithLogger sets the logger of cache stage.
func WithLogger(l acoustic.Logger) Option {
	return func(s *Stage) {
		s.logger = l
	}
}

// New returns a caching stage for the source.
func New(source acoustic.Source, store Store, key string, mode Mode, options ...Option) *Stage {
	s := Stage{
		source: source,
		store:  store,
		key:    key,
		mode:   mode,
	}
	for _, option := range options {
		option(&s)
	}
	if s.logger == nil {
		s.logger = log.WithComponent(log.GetLogger(), "cache")
	}
	return &s
}

func (s *Stage) cached() bool {
	return (s.mode == Individual || s.mode == ReadOnly) && s.store.Exists(s.key)
}

// Properties returns properties of the cached entry if it's used,
// properties of the source otherwise.
func (s *Stage) Properties() acoustic.Properties {
	if s.cached() {
		if props, err := s.store.Properties(s.key); err == nil {
			return props
		}
	}
	return s.source.Properties()
}

// Blocks returns blocks of cached entry or of the source.
func (s *Stage) Blocks(blockSize int) (acoustic.BlockFunc, error) {
	if err := acoustic.ValidateBlockSize(blockSize); err != nil {
		return nil, err
	}
	switch {
	case s.mode == None:
		return s.source.Blocks(blockSize)
	case s.cached():
		s.logger.Debug(fmt.Sprintf("reading cache entry %s", s.key))
		return s.readBack(blockSize), nil
	case s.mode == ReadOnly:
		s.logger.Debug(fmt.Sprintf("cache entry %s not found, read-only mode", s.key))
		return s.source.Blocks(blockSize)
	case s.mode == Overwrite && s.store.Exists(s.key):
		if err := s.store.Remove(s.key); err != nil {
			return nil, fmt.Errorf("error removing cache entry: %w", err)
		}
	}
	return s.writeThrough(blockSize)
}

func (s *Stage) readBack(blockSize int) acoustic.BlockFunc {
	var pos int
	return func() (signal.Float64, error) {
		b, err := s.store.Read(s.key, pos, blockSize)
		if err != nil {
			return nil, err
		}
		if b.Size() == 0 {
			return nil, io.EOF
		}
		pos += b.Size()
		return b, nil
	}
}

// writeThrough commits the entry only if source is consumed till the end.
func (s *Stage) writeThrough(blockSize int) (acoustic.BlockFunc, error) {
	next, err := s.source.Blocks(blockSize)
	if err != nil {
		return nil, err
	}
	appender, err := s.store.Open(s.key, s.source.Properties())
	if err != nil {
		return nil, fmt.Errorf("error opening cache entry: %w", err)
	}
	s.logger.Debug(fmt.Sprintf("writing cache entry %s", s.key))
	var committed bool
	return func() (signal.Float64, error) {
		if committed {
			return nil, io.EOF
		}
		b, err := next()
		if err != nil {
			if err == io.EOF {
				if err := appender.Commit(); err != nil {
					return nil, fmt.Errorf("error committing cache entry: %w", err)
				}
				committed = true
			}
			return nil, err
		}
		if err := appender.Append(b); err != nil {
			return nil, fmt.Errorf("error appending cache entry: %w", err)
		}
		return b, nil
	}, nil
}
