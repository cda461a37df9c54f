//go:build windows && (amd64 || arm64)

package main

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tekert/eventtrace/etw"
	"github.com/tekert/eventtrace/internal/test"
)

const kernelProcess = "Microsoft-Windows-Kernel-Process"

func TestProviderCommandsWindows(t *testing.T) {
	tt := test.FromT(t)
	if !etw.IsKnownProvider(kernelProcess) {
		t.Skipf("%s is not registered", kernelProcess)
	}

	out, err := runApp(t, "guid", kernelProcess)
	tt.CheckErr(err)
	var guid etw.GUID
	tt.CheckErr(json.Unmarshal([]byte(out), &guid))
	tt.Equal(guid.String(), "22fb2cd6-0e7b-422b-a0c7-2fad1fd0e716")

	out, err = runApp(t, "provider-config", kernelProcess, "--keywords", "0x10")
	tt.CheckErr(err)
	var cfg etw.ProviderConfig
	tt.CheckErr(json.Unmarshal([]byte(out), &cfg))
	tt.Equal(cfg, etw.ProviderConfig{Name: kernelProcess, GUID: guid, Keywords: 0x10, Enabled: true})

	out, err = runApp(t, "--format", "table", "keywords", kernelProcess)
	tt.CheckErr(err)
	tt.Assert(strings.Contains(out, "WINEVENT_KEYWORD_PROCESS"), out)

	out, err = runApp(t, "providers", "--filter", "kernel-process")
	tt.CheckErr(err)
	var list []etw.ProviderMetadata
	tt.CheckErr(json.Unmarshal([]byte(out), &list))
	tt.Assert(len(list) > 0, "no providers matched")

	_, err = runApp(t, "guid", "Microsoft-Windows-Unknown-Provider")
	tt.ExpectErr(err, etw.ErrUnknownProvider)
}
