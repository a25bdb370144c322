// Package metric publishes counters of acoustic components through expvar.
//
// Every component instance owns a Set published as a single expvar map
// under acoustic.<kind>.<name>. Sets can be nested, e.g. a splitter keeps
// counters of its consumers:
//
//	acoustic.split.<id>
//	    Opened, Pulls, Samples, Duration, Overflows
//	    Dropped   {warn, drop}
//	    Consumers {<consumer id>: {Received, Dropped}}
package metric

import (
	"expvar"
	"fmt"
	"sync"

	"github.com/pipelined/acoustic/signal"
)

const label = "acoustic"

const (
	// OpenCounter counts opened upstream iterators.
	OpenCounter = "Opened"
	// PullCounter counts blocks pulled from upstream.
	PullCounter = "Pulls"
	// SampleCounter counts samples pulled from upstream.
	SampleCounter = "Samples"
	// DurationCounter is the duration of pulled signal.
	DurationCounter = "Duration"
	// OverflowCounter counts overflows of consumers with fail policy.
	OverflowCounter = "Overflows"
	// DroppedCounter counts blocks lost by consumer queues.
	DroppedCounter = "Dropped"
	// ReceivedCounter counts blocks returned to consumer.
	ReceivedCounter = "Received"
	// ConsumersLabel groups sets of consumers.
	ConsumersLabel = "Consumers"
)

// mu makes lookup-or-create of maps atomic.
var mu sync.Mutex

// Set is a group of counters published as one expvar map.
type Set struct {
	m *expvar.Map
}

// Publish returns the set of component instance. A new map is published
// on the first call with given kind and name.
func Publish(kind, name string) *Set {
	key := fmt.Sprintf("%s.%s.%s", label, kind, name)
	mu.Lock()
	defer mu.Unlock()
	if m, ok := expvar.Get(key).(*expvar.Map); ok {
		return &Set{m: m}
	}
	m := new(expvar.Map)
	expvar.Publish(key, m)
	return &Set{m: m}
}

// Child returns a nested set, it's created if it doesn't exist.
func (s *Set) Child(name string) *Set {
	mu.Lock()
	defer mu.Unlock()
	if m, ok := s.m.Get(name).(*expvar.Map); ok {
		return &Set{m: m}
	}
	m := new(expvar.Map)
	s.m.Set(name, m)
	return &Set{m: m}
}

// Delete removes a counter or a nested set.
func (s *Set) Delete(name string) {
	s.m.Delete(name)
}

// Add adds delta to the counter.
func (s *Set) Add(counter string, delta int64) {
	s.m.Add(counter, delta)
}

// Value returns the value of the counter. Missing counter is zero.
func (s *Set) Value(counter string) int64 {
	if v, ok := s.m.Get(counter).(*expvar.Int); ok {
		return v.Value()
	}
	return 0
}

// Duration publishes DurationCounter calculated from SampleCounter.
func (s *Set) Duration(sampleRate float64) {
	s.m.Set(DurationCounter, expvar.Func(func() any {
		return signal.DurationOf(sampleRate, s.Value(SampleCounter)).String()
	}))
}

// Values returns formatted values of all counters of the set. Nested sets
// are formatted as json.
func (s *Set) Values() map[string]string {
	values := make(map[string]string)
	s.m.Do(func(kv expvar.KeyValue) {
		values[kv.Key] = kv.Value.String()
	})
	return values
}

// String returns json representation of the set.
func (s *Set) String() string {
	return s.m.String()
}
