// Package phusluadapter plugs a logsampler.Sampler into a phuslu/log logger.
package phusluadapter

import (
	"hash/maphash"
	"strconv"
	"sync/atomic"

	"github.com/tekert/eventtrace/logsampler"

	plog "github.com/phuslu/log"
)

var hashSeed = maphash.MakeSeed()

// SummaryReporter implements logsampler.SummaryReporter with a phuslu logger.
type SummaryReporter struct {
	Logger *plog.Logger
}

// LogSummary logs a sampler summary report.
func (r *SummaryReporter) LogSummary(key string, suppressedCount int64) {
	r.Logger.Info().
		Str("samplerKey", key).
		Int64("suppressedCount", suppressedCount).
		Msg("log sampler summary")
}

// SampledLogger extends plog.Logger with sampled entries.
type SampledLogger struct {
	*plog.Logger
	Sampler logsampler.Sampler
}

// NewSampledLogger creates a new logger with sampling capabilities.
func NewSampledLogger(base *plog.Logger, sampler logsampler.Sampler) *SampledLogger {
	return &SampledLogger{Logger: base, Sampler: sampler}
}

// Sampled returns an entry for level, or nil when the level is disabled or the
// sampler drops the line. With useErrSig the error text becomes part of the
// key, so different failures under one key are sampled apart.
// Calling methods on a nil *plog.Entry is a no-op.
func (l *SampledLogger) Sampled(level plog.Level, key string, useErrSig bool, err error) *plog.Entry {
	if plog.Level(atomic.LoadUint32((*uint32)(&l.Logger.Level))) > level {
		return nil
	}

	if useErrSig && err != nil {
		var h maphash.Hash
		h.SetSeed(hashSeed)
		h.WriteString(err.Error())

		var buf [128]byte
		b := append(buf[:0], key...)
		b = append(b, ':')
		b = strconv.AppendUint(b, h.Sum64(), 16)
		key = string(b)
	}

	var suppressed int64
	if l.Sampler != nil {
		var ok bool
		if ok, suppressed = l.Sampler.ShouldLog(key, err); !ok {
			return nil
		}
	}

	entry := l.Logger.WithLevel(level)
	if suppressed > 0 {
		entry = entry.Int64("suppressedCount", suppressed)
	}
	if err != nil {
		entry = entry.Err(err)
	}
	return entry
}

// SampledWarn starts a sampled Warn entry keyed by the error signature.
func (l *SampledLogger) SampledWarn(key string, err error) *plog.Entry {
	return l.Sampled(plog.WarnLevel, key, true, err)
}

// SampledError starts a sampled Error entry keyed by the error signature.
func (l *SampledLogger) SampledError(key string, err error) *plog.Entry {
	return l.Sampled(plog.ErrorLevel, key, true, err)
}

// SampledDebug starts a sampled Debug entry keyed only by key.
func (l *SampledLogger) SampledDebug(key string) *plog.Entry {
	return l.Sampled(plog.DebugLevel, key, false, nil)
}
