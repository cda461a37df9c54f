package etw

import (
	"slices"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tekert/eventtrace/internal/test"
)

// Not registered anywhere, resolves without a name on every system.
const testProviderGUID = "{b1d7e2c0-5a4f-4c3e-9d21-7f3e8a6b4c10}"

func TestNewProviderConfig(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	cfg := NewProviderConfig()
	tt.Equal(cfg, ProviderConfig{})
	tt.Assert(!cfg.Enabled, "a new config starts disabled")

	b, err := json.Marshal(cfg)
	tt.CheckErr(err)
	var keys map[string]any
	tt.CheckErr(json.Unmarshal(b, &keys))

	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	slices.Sort(names)
	tt.Equal(names, []string{"enabled", "guid", "keywords", "name"})
	tt.Equal(keys["guid"], "00000000-0000-0000-0000-000000000000")
}

func TestProviderConfigFor(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	cfg, err := ProviderConfigFor(testProviderGUID)
	tt.CheckErr(err)
	tt.Equal(cfg, ProviderConfig{
		GUID:     *MustParseGUID(testProviderGUID),
		Keywords: AllKeywords,
		Enabled:  true,
	})

	_, err = ProviderConfigFor("")
	tt.ExpectErr(err, ErrMissingParameter)
}

func TestParseProvider(t *testing.T) {
	t.Parallel()

	guid := *MustParseGUID(testProviderGUID)
	defaults := NewProviderOption()

	tests := []struct {
		name     string
		input    string
		wantCfg  ProviderConfig
		wantOpts ProviderOptions
		wantErr  bool
	}{
		{
			name:     "GUID Only",
			input:    testProviderGUID,
			wantCfg:  ProviderConfig{GUID: guid, Keywords: AllKeywords, Enabled: true},
			wantOpts: defaults,
		},
		{
			name:    "All Fields",
			input:   testProviderGUID + ":0x4:12,13, 14:0x10:0x3",
			wantCfg: ProviderConfig{GUID: guid, Keywords: 0x10, Enabled: true},
			wantOpts: ProviderOptions{
				Level:            4,
				EventIDsToEnable: []uint16{12, 13, 14},
				MatchAllKeywords: 0x3,
			},
		},
		{
			name:     "Empty Chunks Keep Defaults",
			input:    testProviderGUID + ":::0x20",
			wantCfg:  ProviderConfig{GUID: guid, Keywords: 0x20, Enabled: true},
			wantOpts: defaults,
		},
		{
			name:    "Bad Level",
			input:   testProviderGUID + ":256",
			wantErr: true,
		},
		{
			name:    "Bad Event ID",
			input:   testProviderGUID + ":4:12,x",
			wantErr: true,
		},
		{
			name:    "Bad Keyword",
			input:   testProviderGUID + ":4::zz",
			wantErr: true,
		},
		{
			name:    "Too Many Fields",
			input:   testProviderGUID + ":4:1:1:1:1",
			wantErr: true,
		},
		{
			name:    "Empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tt := test.FromT(t)
			cfg, opts, err := ParseProvider(tc.input)
			if tc.wantErr {
				tt.ExpectErr(err, nil)
				return
			}
			tt.CheckErr(err)
			tt.Equal(cfg, tc.wantCfg)
			tt.Equal(opts, tc.wantOpts)
		})
	}
}
