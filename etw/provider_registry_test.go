package etw

import (
	"errors"
	"testing"

	"github.com/tekert/eventtrace/internal/test"
)

var (
	kernelProcessGUID = MustParseGUID("{22fb2cd6-0e7b-422b-a0c7-2fad1fd0e716}")
	kernelFileGUID    = MustParseGUID("{edd08927-9cc4-4e65-b970-c2560fb5c289}")
	mofGUID           = MustParseGUID("{9e814aad-3204-11d2-9a82-006008a86939}")
)

func fakeProviders() ([]ProviderMetadata, error) {
	return []ProviderMetadata{
		{Name: "Microsoft-Windows-Kernel-Process", GUID: *kernelProcessGUID, SchemaSource: SchemaManifest},
		{Name: "MSNT_SystemTrace", GUID: *mofGUID, SchemaSource: SchemaMOF},
		{Name: "Microsoft-Windows-Kernel-File", GUID: *kernelFileGUID, SchemaSource: SchemaManifest},
		// duplicate name, the first registration is kept
		{Name: "microsoft-windows-kernel-file", GUID: *MustParseGUID("{11111111-2222-3333-4444-555555555555}")},
	}, nil
}

func TestProviderRegistryList(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	r := newProviderRegistry(fakeProviders)
	list, err := r.providers()
	tt.CheckErr(err)
	tt.Equal(len(list), 4)
	tt.Equal(list[0].Name, "Microsoft-Windows-Kernel-File")
	tt.Equal(list[2].Name, "Microsoft-Windows-Kernel-Process")
	tt.Equal(list[3].Name, "MSNT_SystemTrace")

	// callers get a copy
	list[0].Name = "changed"
	again, err := r.providers()
	tt.CheckErr(err)
	tt.Equal(again[0].Name, "Microsoft-Windows-Kernel-File")
}

func TestProviderRegistryResolve(t *testing.T) {
	t.Parallel()

	r := newProviderRegistry(fakeProviders)

	tests := []struct {
		name  string
		input string
		want  ProviderMetadata
		err   error
	}{
		{
			name:  "Exact Name",
			input: "Microsoft-Windows-Kernel-Process",
			want:  ProviderMetadata{Name: "Microsoft-Windows-Kernel-Process", GUID: *kernelProcessGUID, SchemaSource: SchemaManifest},
		},
		{
			name:  "Case Insensitive Name",
			input: "  MICROSOFT-WINDOWS-KERNEL-FILE ",
			want:  ProviderMetadata{Name: "Microsoft-Windows-Kernel-File", GUID: *kernelFileGUID, SchemaSource: SchemaManifest},
		},
		{
			name:  "Registered GUID",
			input: "{9E814AAD-3204-11D2-9A82-006008A86939}",
			want:  ProviderMetadata{Name: "MSNT_SystemTrace", GUID: *mofGUID, SchemaSource: SchemaMOF},
		},
		{
			name:  "Unregistered GUID",
			input: "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
			want:  ProviderMetadata{GUID: *MustParseGUID("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")},
		},
		{
			name:  "Unknown Name",
			input: "Not-A-Provider",
			err:   ErrUnknownProvider,
		},
		{
			name:  "Empty",
			input: "",
			err:   ErrMissingParameter,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tt := test.FromT(t)
			got, err := r.resolve(tc.input)
			if tc.err != nil {
				tt.ExpectErr(err, tc.err)
				return
			}
			tt.CheckErr(err)
			tt.Equal(got, tc.want)
		})
	}
}

func TestProviderRegistryKnown(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	r := newProviderRegistry(fakeProviders)
	tt.Assert(r.known("microsoft-windows-kernel-process"))
	tt.Assert(r.known(kernelFileGUID.String()))
	tt.Assert(!r.known("Not-A-Provider"))
	tt.Assert(!r.known("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"))

	tt.Equal(r.name(kernelProcessGUID), "Microsoft-Windows-Kernel-Process")
	tt.Equal(r.name(&GUID{Data1: 1}), "")
}

func TestProviderRegistryLoadError(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	loadErr := errors.New("boom")
	calls := 0
	r := newProviderRegistry(func() ([]ProviderMetadata, error) {
		calls++
		return nil, loadErr
	})

	_, err := r.providers()
	tt.ExpectErr(err, loadErr)
	_, err = r.resolve("Microsoft-Windows-Kernel-Process")
	tt.ExpectErr(err, loadErr)
	tt.Assert(!r.known("Microsoft-Windows-Kernel-Process"))
	tt.Equal(calls, 1)

	// GUIDs still resolve without the registry.
	p, err := r.resolve(kernelProcessGUID.StringU())
	tt.CheckErr(err)
	tt.Equal(p, ProviderMetadata{GUID: *kernelProcessGUID})
}
