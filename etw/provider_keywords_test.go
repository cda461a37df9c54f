package etw

import (
	"testing"

	"github.com/tekert/eventtrace/internal/test"
)

func TestKeywordMask(t *testing.T) {
	t.Parallel()

	keywords := []ProviderKeyword{
		{Name: "WINEVENT_KEYWORD_PROCESS", Value: 0x10},
		{Name: "WINEVENT_KEYWORD_THREAD", Value: 0x20},
		{Name: "WINEVENT_KEYWORD_IMAGE", Value: 0x40},
		{Name: "Microsoft-Windows-Kernel-Process/Analytic", Value: 0x8000000000000000},
	}

	tests := []struct {
		name    string
		names   []string
		want    uint64
		wantErr bool
	}{
		{"None", nil, 0, false},
		{"One", []string{"WINEVENT_KEYWORD_PROCESS"}, 0x10, false},
		{"Case Insensitive", []string{"winevent_keyword_thread", " WINEVENT_KEYWORD_IMAGE "}, 0x60, false},
		{"High Bit", []string{"Microsoft-Windows-Kernel-Process/Analytic"}, 0x8000000000000000, false},
		{"Numeric", []string{"0x100", "1"}, 0x101, false},
		{"Mixed", []string{"WINEVENT_KEYWORD_PROCESS", "0x1"}, 0x11, false},
		{"Unknown", []string{"WINEVENT_KEYWORD_NOPE"}, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tt := test.FromT(t)
			got, err := KeywordMask(keywords, tc.names...)
			if tc.wantErr {
				tt.ExpectErr(err, nil)
				return
			}
			tt.CheckErr(err)
			tt.Equal(got, tc.want)
		})
	}
}

func TestGetProviderKeywordsMissing(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	_, err := GetProviderKeywords("")
	tt.ExpectErr(err, ErrMissingParameter)
	_, err = GetProviderLevels(" ")
	tt.ExpectErr(err, ErrMissingParameter)
}

func TestProviderLabel(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	g := *MustParseGUID("22fb2cd6-0e7b-422b-a0c7-2fad1fd0e716")
	tt.Equal(providerLabel(ProviderMetadata{Name: "Kernel-Process", GUID: g}), "Kernel-Process")
	tt.Equal(providerLabel(ProviderMetadata{GUID: g}), "{22FB2CD6-0E7B-422B-A0C7-2FAD1FD0E716}")
}
