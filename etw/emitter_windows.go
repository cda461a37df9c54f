//go:build windows && (amd64 || arm64)

package etw

import (
	winetw "github.com/Microsoft/go-winio/pkg/etw"
	"github.com/Microsoft/go-winio/pkg/guid"
)

type tlgWriter struct {
	p *winetw.Provider
}

func newEventWriter(name string) (eventWriter, GUID, error) {
	callback := func(_ guid.GUID, state winetw.ProviderState, level winetw.Level, matchAny, matchAll uint64, _ uintptr) {
		log.Debug().Str("provider", name).
			Uint32("state", uint32(state)).
			Uint8("level", uint8(level)).
			Uint64("matchAny", matchAny).
			Uint64("matchAll", matchAll).
			Msg("emitter enable callback")
	}
	p, err := winetw.NewProvider(name, callback)
	if err != nil {
		return nil, GUID{}, err
	}
	return &tlgWriter{p: p}, GUID(p.ID), nil
}

func (w *tlgWriter) writeEvent(name string, level uint8, keyword uint64, fields []EventProperty) error {
	opts := []winetw.EventOpt{
		winetw.WithLevel(winetw.Level(level)),
		winetw.WithKeyword(keyword),
	}
	fieldOpts := make([]winetw.FieldOpt, 0, len(fields))
	for _, f := range fields {
		fieldOpts = append(fieldOpts, winetw.StringField(f.Name, f.Value))
	}
	return w.p.WriteEvent(name, opts, fieldOpts)
}

func (w *tlgWriter) enabled() bool {
	return w.p.IsEnabled()
}

func (w *tlgWriter) close() error {
	return w.p.Close()
}
