package etw

import "time"

// FiletimeEpoch is the Unix epoch as a FILETIME (100ns intervals since 1601).
const FiletimeEpoch = 116444736000000000

// FromFiletime converts a FILETIME to a local time.Time. Zero stays the zero
// time.
//
//go:inline
func FromFiletime(fileTime int64) time.Time {
	if fileTime == 0 {
		return time.Time{}
	}
	return time.Unix(0, (fileTime-FiletimeEpoch)*100)
}

// FromFiletimeUTC is FromFiletime in UTC.
//
//go:inline
func FromFiletimeUTC(fileTime int64) time.Time {
	if fileTime == 0 {
		return time.Time{}
	}
	return time.Unix(0, (fileTime-FiletimeEpoch)*100).UTC()
}
