package etw

import (
	"bytes"
	"strings"
	"testing"
	"time"

	plog "github.com/phuslu/log"

	"github.com/tekert/eventtrace/internal/test"
	"github.com/tekert/eventtrace/logsampler"
)

func TestLoggerManager(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	lm := NewLoggerManager()
	defer lm.Sampler().Close()

	var buf bytes.Buffer
	lm.SetWriter(&plog.IOWriter{Writer: &buf})

	lm.loggers[SessionLogger].Info().Str("session", "s1").Msg("Session started")
	out := buf.String()
	tt.Assert(strings.Contains(out, `"component":"session"`), out)
	tt.Assert(strings.Contains(out, `"session":"s1"`), out)

	// consumer logs only warnings by default
	buf.Reset()
	lm.loggers[ConsumerLogger].Info().Msg("hidden")
	tt.Equal(buf.Len(), 0)

	lm.SetLogLevels(map[LoggerName]plog.Level{
		ConsumerLogger: plog.DebugLevel,
		SessionLogger:  plog.ErrorLevel,
	})
	lm.loggers[ConsumerLogger].Debug().Msg("shown")
	lm.loggers[SessionLogger].Warn().Msg("hidden")
	out = buf.String()
	tt.Assert(strings.Contains(out, "shown"), out)
	tt.Assert(!strings.Contains(out, "hidden"), out)

	buf.Reset()
	lm.SetBaseContext(plog.NewContext(nil).Str("app", "test").Value())
	lm.loggers[DefaultLogger].Info().Msg("with base")
	out = buf.String()
	tt.Assert(strings.Contains(out, `"app":"test"`), out)
	tt.Assert(strings.Contains(out, `"component":"default"`), out)
}

func TestLoggerManagerSampler(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	lm := NewLoggerManager()
	first := lm.Sampler()
	tt.Assert(first != nil)

	rate := logsampler.NewRateSampler(1, time.Hour)
	lm.SetSampler(rate)
	tt.Assert(lm.Sampler() == logsampler.Sampler(rate))
}
