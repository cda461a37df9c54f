/*
Package logsampler decides which log lines of a hot path are worth writing.

The .etl reader can hit the same decoding failure for thousands of events in a
row (one broken manifest is enough). Logging each of them buries everything
else, so the consumer logger asks a Sampler first and reports how many lines
were dropped in between.
*/
package logsampler

import (
	"sync"
	"sync/atomic"
	"time"
)

// BackoffConfig defines the parameters for the exponential backoff strategy.
type BackoffConfig struct {
	InitialInterval time.Duration // Quiet window after the first emitted line of a key.
	MaxInterval     time.Duration // Upper bound of the quiet window.
	Factor          float64       // Growth of the window after each emitted line.
	// ResetInterval is the inactivity after which a key starts over from InitialInterval
	// and is forgotten. Zero keeps keys forever.
	ResetInterval time.Duration
}

// DefaultBackoffConfig is used by the etw loggers.
var DefaultBackoffConfig = BackoffConfig{
	InitialInterval: 1 * time.Second,
	MaxInterval:     1 * time.Hour,
	Factor:          1.5,
	ResetInterval:   10 * time.Minute,
}

// SummaryReporter receives the suppressed count of keys that go quiet, so the
// sampler does not depend on a logging library.
type SummaryReporter interface {
	LogSummary(key string, suppressedCount int64)
}

// Sampler defines the interface for deciding if a log message should be processed.
type Sampler interface {
	// ShouldLog reports whether the line for key should be written. When it
	// returns true it also returns how many lines of the key were suppressed
	// since the previous written one.
	ShouldLog(key string, err error) (bool, int64)
	// Flush reports a summary of any suppressed logs.
	Flush()
	// Close stops the sampler, flushing one last time.
	Close()
}

type clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// RateSampler lets one out of every rate lines through per window. It keeps a
// single counter for all keys.
type RateSampler struct {
	rate   int64
	window int64
	count  atomic.Int64
	last   atomic.Int64
}

// NewRateSampler creates a new rate sampler. A rate below 1 is treated as 1.
func NewRateSampler(rate int, window time.Duration) *RateSampler {
	if rate < 1 {
		rate = 1
	}
	s := &RateSampler{
		rate:   int64(rate),
		window: int64(window),
	}
	s.last.Store(time.Now().UnixNano())
	return s
}

// ShouldLog implements Sampler.
func (s *RateSampler) ShouldLog(key string, err error) (bool, int64) {
	now := time.Now().UnixNano()
	lastReset := s.last.Load()

	if now-lastReset > s.window {
		if s.last.CompareAndSwap(lastReset, now) {
			s.count.Store(0)
		}
	}
	return (s.count.Add(1)-1)%s.rate == 0, 0
}

// Flush is a no-op, RateSampler does not count suppressed lines.
func (s *RateSampler) Flush() {}

// Close is a no-op.
func (s *RateSampler) Close() {}

type keyState struct {
	suppressed int64
	lastLog    int64
	window     int64
}

// BackoffSampler deduplicates by key: the first line of a key passes, then the
// key is muted for a window that grows by Factor after every line written.
// It runs no goroutine; stale keys are swept while sampling.
type BackoffSampler struct {
	config   BackoffConfig
	reporter SummaryReporter
	clock    clock

	mu        sync.Mutex
	keys      map[string]*keyState
	lastSweep int64
}

// NewBackoffSampler creates a sampler. reporter may be nil, in which case
// suppressed counts of forgotten keys are dropped.
func NewBackoffSampler(config BackoffConfig, reporter SummaryReporter) *BackoffSampler {
	if config.Factor < 1 {
		config.Factor = 1
	}
	return &BackoffSampler{
		config:   config,
		reporter: reporter,
		clock:    systemClock{},
		keys:     make(map[string]*keyState),
	}
}

// ShouldLog implements Sampler.
func (s *BackoffSampler) ShouldLog(key string, err error) (bool, int64) {
	now := s.clock.Now().UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(now)

	st, ok := s.keys[key]
	if !ok {
		s.keys[key] = &keyState{lastLog: now, window: int64(s.config.InitialInterval)}
		return true, 0
	}

	if s.config.ResetInterval > 0 && now-st.lastLog > int64(s.config.ResetInterval) {
		suppressed := st.suppressed
		*st = keyState{lastLog: now, window: int64(s.config.InitialInterval)}
		return true, suppressed
	}

	if now-st.lastLog > st.window {
		suppressed := st.suppressed
		st.suppressed = 0
		st.lastLog = now
		next := int64(float64(st.window) * s.config.Factor)
		if max := int64(s.config.MaxInterval); max > 0 && next > max {
			next = max
		}
		st.window = next
		return true, suppressed
	}

	st.suppressed++
	return false, 0
}

// sweep forgets keys idle for longer than ResetInterval, at most once per
// ResetInterval. Must be called with mu held.
func (s *BackoffSampler) sweep(now int64) {
	reset := int64(s.config.ResetInterval)
	if reset <= 0 || now-s.lastSweep < reset {
		return
	}
	s.lastSweep = now
	for key, st := range s.keys {
		if now-st.lastLog > reset {
			if st.suppressed > 0 && s.reporter != nil {
				s.reporter.LogSummary(key, st.suppressed)
			}
			delete(s.keys, key)
		}
	}
}

// Len returns the number of tracked keys.
func (s *BackoffSampler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Flush reports every suppressed count and clears the sampler state.
func (s *BackoffSampler) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reporter != nil {
		for key, st := range s.keys {
			if st.suppressed > 0 {
				s.reporter.LogSummary(key, st.suppressed)
			}
		}
	}
	clear(s.keys)
}

// Close is equivalent to Flush.
func (s *BackoffSampler) Close() {
	s.Flush()
}
