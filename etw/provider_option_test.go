package etw

import (
	"testing"

	"github.com/goccy/go-json"

	"github.com/tekert/eventtrace/internal/test"
)

func TestNewProviderOption(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	o := NewProviderOption()
	tt.Equal(o.Level, uint8(0xFF))
	tt.Equal(o.EnableProperties, uint32(0))
	tt.Assert(!o.StacksEnabled)
	tt.CheckErr(o.Validate())
	tt.Assert(len(o.filters()) == 0, "default options must not filter")
}

func TestProviderOptionsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    ProviderOptions
		wantErr bool
	}{
		{"Defaults", NewProviderOption(), false},
		{"Eight PIDs", ProviderOptions{ProcessIDs: []uint32{1, 2, 3, 4, 5, 6, 7, 8}}, false},
		{"Nine PIDs", ProviderOptions{ProcessIDs: []uint32{1, 2, 3, 4, 5, 6, 7, 8, 9}}, true},
		{"Exe Names", ProviderOptions{ExecutableNames: []string{"a.exe", "b.exe"}}, false},
		{"Empty Exe Name", ProviderOptions{ExecutableNames: []string{"a.exe", " "}}, true},
		{"Exe Name With Separator", ProviderOptions{ExecutableNames: []string{"a.exe;b.exe"}}, true},
		{"Disjoint Event IDs", ProviderOptions{EventIDsToEnable: []uint16{1, 2}, EventIDsToDisable: []uint16{3}}, false},
		{"Event ID Enabled And Disabled", ProviderOptions{EventIDsToEnable: []uint16{1, 2}, EventIDsToDisable: []uint16{2}}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tt := test.FromT(t)
			err := tc.opts.Validate()
			if tc.wantErr {
				tt.ExpectErr(err, nil)
			} else {
				tt.CheckErr(err)
			}
		})
	}
}

func TestProviderOptionsFilters(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	o := NewProviderOption()
	o.ProcessIDs = []uint32{4, 0x01020304}
	o.ExecutableNames = []string{"a.exe", "bc.exe"}
	o.EventIDsToEnable = []uint16{1, 0x0102}
	o.EventIDsToDisable = []uint16{7}

	tt.Equal(o.filters(), []providerFilter{
		{
			Type: EVENT_FILTER_TYPE_PID,
			Data: []byte{4, 0, 0, 0, 4, 3, 2, 1},
		},
		{
			Type: EVENT_FILTER_TYPE_EXECUTABLE_NAME,
			Data: []byte{
				'a', 0, '.', 0, 'e', 0, 'x', 0, 'e', 0, ';', 0,
				'b', 0, 'c', 0, '.', 0, 'e', 0, 'x', 0, 'e', 0,
				0, 0,
			},
		},
		// Only one event ID filter per call, the include list wins.
		{
			Type: EVENT_FILTER_TYPE_EVENT_ID,
			Data: []byte{1, 0, 2, 0, 1, 0, 2, 1},
		},
	})
}

func TestEventIDFilterExclude(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	o := ProviderOptions{EventIDsToDisable: []uint16{10, 11, 12}}
	fs := o.filters()
	tt.Assert(len(fs) == 1)
	tt.Equal(fs[0], providerFilter{
		Type: EVENT_FILTER_TYPE_EVENT_ID,
		Data: []byte{0, 0, 3, 0, 10, 0, 11, 0, 12, 0},
	})
}

func TestEnableProperties(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	o := NewProviderOption()
	o.EnableProperties = EVENT_ENABLE_PROPERTY_SID
	tt.Equal(o.enableProperties(), uint32(EVENT_ENABLE_PROPERTY_SID))

	o.StacksEnabled = true
	tt.Equal(o.enableProperties(), uint32(EVENT_ENABLE_PROPERTY_SID|EVENT_ENABLE_PROPERTY_STACK_TRACE))
	// The stored flags are left alone.
	tt.Equal(o.EnableProperties, uint32(EVENT_ENABLE_PROPERTY_SID))
}

func TestProviderOptionsJSON(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	o := NewProviderOption()
	o.ProcessIDs = []uint32{42}
	o.StacksEnabled = true

	b, err := json.Marshal(o)
	tt.CheckErr(err)

	var back ProviderOptions
	tt.CheckErr(json.Unmarshal(b, &back))
	tt.Equal(back, o)

	var keys map[string]any
	tt.CheckErr(json.Unmarshal(b, &keys))
	_, ok := keys["eventIDsToEnable"]
	tt.Assert(!ok, "empty lists are omitted")
	tt.Equal(keys["level"], float64(255))
}
