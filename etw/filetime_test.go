package etw

import (
	"testing"
	"time"

	"github.com/tekert/eventtrace/internal/test"
)

func TestFromFiletime(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	tt.Assert(FromFiletime(0).IsZero())
	tt.Assert(FromFiletimeUTC(0).IsZero())

	tt.Equal(FromFiletimeUTC(FiletimeEpoch), time.Unix(0, 0).UTC())

	// 2024-01-02 03:04:05.1234567 UTC
	want := time.Date(2024, 1, 2, 3, 4, 5, 123456700, time.UTC)
	ft := want.UnixNano()/100 + FiletimeEpoch
	tt.Equal(FromFiletimeUTC(ft), want)
	tt.Assert(FromFiletime(ft).Equal(want))
}
