package etw

import (
	"os"

	"github.com/tekert/eventtrace/logsampler"
	"github.com/tekert/eventtrace/logsampler/phusluadapter"

	plog "github.com/phuslu/log"
)

// LoggerName defines the name of a logger for configuration.
// Use these as keys when configuring log levels.
type LoggerName string

const (
	ConsumerLogger LoggerName = "consumer" // .etl decoding hot path
	SessionLogger  LoggerName = "session"  // session start, stop and queries
	DefaultLogger  LoggerName = "default"  // everything else
)

// SampledLogger is the phuslu logger with a sampler in front of it.
type SampledLogger = phusluadapter.SampledLogger

// LoggerManager owns the package loggers and the sampler of the consumer logger.
type LoggerManager struct {
	writer  plog.Writer
	sampler logsampler.Sampler
	loggers map[LoggerName]*plog.Logger
}

var (
	loggerManager *LoggerManager
	conlog        *SampledLogger // Consumer hot path
	seslog        *plog.Logger   // Session operations
	log           *plog.Logger   // Default/everything else
)

func init() {
	loggerManager = NewLoggerManager()
	conlog = phusluadapter.NewSampledLogger(
		loggerManager.loggers[ConsumerLogger],
		loggerManager.sampler,
	)
	seslog = loggerManager.loggers[SessionLogger]
	log = loggerManager.loggers[DefaultLogger]
}

// NewLoggerManager creates the loggers with their default levels, writing to stderr.
func NewLoggerManager() *LoggerManager {
	writer := &plog.IOWriter{Writer: os.Stderr}

	lm := &LoggerManager{
		writer:  writer,
		loggers: make(map[LoggerName]*plog.Logger),
	}

	levels := map[LoggerName]plog.Level{
		ConsumerLogger: plog.WarnLevel,
		SessionLogger:  plog.InfoLevel,
		DefaultLogger:  plog.InfoLevel,
	}
	for name, level := range levels {
		lm.loggers[name] = &plog.Logger{
			Level:   level,
			Writer:  writer,
			Context: plog.NewContext(nil).Str("component", string(name)).Value(),
		}
	}

	// The sampler reports the suppressed counts of keys that went quiet.
	reporter := &phusluadapter.SummaryReporter{Logger: lm.loggers[DefaultLogger]}
	lm.sampler = logsampler.NewBackoffSampler(logsampler.DefaultBackoffConfig, reporter)

	return lm
}

// SetBaseContext changes the base context for all loggers.
func (lm *LoggerManager) SetBaseContext(ctx []byte) {
	for name, logger := range lm.loggers {
		logger.Context = plog.NewContext(ctx).Str("component", string(name)).Value()
	}
}

// SetSampler replaces the consumer sampler, closing the previous one.
func (lm *LoggerManager) SetSampler(sampler logsampler.Sampler) {
	if lm.sampler != nil {
		lm.sampler.Close()
	}
	lm.sampler = sampler
	if conlog != nil && lm == loggerManager {
		conlog.Sampler = sampler
	}
}

// SetWriter changes the writer for all loggers.
func (lm *LoggerManager) SetWriter(writer plog.Writer) {
	lm.writer = writer
	for _, logger := range lm.loggers {
		logger.Writer = writer
	}
}

// SetLogLevels sets the log level for one or more loggers.
func (lm *LoggerManager) SetLogLevels(levels map[LoggerName]plog.Level) {
	for name, level := range levels {
		if logger, ok := lm.loggers[name]; ok {
			logger.SetLevel(level)
		}
	}
}

// Sampler returns the sampler of the consumer logger.
func (lm *LoggerManager) Sampler() logsampler.Sampler {
	return lm.sampler
}

// SetSampler sets the sampler of the consumer logger.
func SetSampler(s logsampler.Sampler) { loggerManager.SetSampler(s) }

// SetLogLevels sets the log level for one or more loggers.
func SetLogLevels(levels map[LoggerName]plog.Level) { loggerManager.SetLogLevels(levels) }

// SetLogLevelsAll sets all loggers to the given level.
func SetLogLevelsAll(level plog.Level) {
	levels := make(map[LoggerName]plog.Level, len(loggerManager.loggers))
	for name := range loggerManager.loggers {
		levels[name] = level
	}
	SetLogLevels(levels)
}

func SetLogDebugLevel() { SetLogLevelsAll(plog.DebugLevel) }
func SetLogInfoLevel()  { SetLogLevelsAll(plog.InfoLevel) }
func SetLogWarnLevel()  { SetLogLevelsAll(plog.WarnLevel) }
func SetLogErrorLevel() { SetLogLevelsAll(plog.ErrorLevel) }

// DisableLogging mutes every logger.
func DisableLogging() {
	SetLogLevelsAll(99) // above PanicLevel
}

// SetLogWriter sets the writer of all loggers.
func SetLogWriter(writer plog.Writer) { loggerManager.SetWriter(writer) }

// SetLogBaseContext sets the base context of all loggers.
func SetLogBaseContext(ctx []byte) { loggerManager.SetBaseContext(ctx) }

// GetLogManager returns the package logger manager.
func GetLogManager() *LoggerManager { return loggerManager }
