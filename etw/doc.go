// Package etw drives Event Tracing for Windows (ETW) file sessions without CGO.
//
// It resolves providers and their keywords, starts and stops named sessions
// that write .etl files, queries running sessions and reads .etl files back
// into decoded events. Buffering, the file format and event decoding are left
// to advapi32.dll and tdh.dll.
//
// Basic usage:
//
//	cfg, err := etw.ProviderConfigFor("Microsoft-Windows-Kernel-Process")
//	if err != nil {
//	    return err
//	}
//	if _, err := etw.StartSession("MyTrace", `C:\traces\my.etl`, []etw.ProviderConfig{cfg}); err != nil {
//	    return err
//	}
//	// ... workload ...
//	if _, err := etw.StopSession("MyTrace"); err != nil {
//	    return err
//	}
//	log, err := etw.ReadEventLog(ctx, `C:\traces\my.etl`)
//
// Starting sessions needs administrator rights or membership of the
// Performance Log Users group. Outside 64-bit Windows every call that reaches
// the OS returns ErrNotSupported.
package etw

// To modernize:
// go run golang.org/x/tools/gopls/internal/analysis/modernize/cmd/modernize@latest -fix -test ./...
