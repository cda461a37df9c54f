//go:build !windows || !(amd64 || arm64)

package etw

import "context"

func startTrace(name, logFile string, cfg *sessionConfig) (uint64, error) {
	return 0, ErrNotSupported
}

func enableTrace(handle uint64, p *ProviderConfig, o *ProviderOptions) error {
	return ErrNotSupported
}

func controlTrace(name string, code uint32) (*SessionDetails, error) {
	return nil, ErrNotSupported
}

func queryAllTraces() ([]SessionDetails, error) {
	return nil, ErrNotSupported
}

func enumerateProviders() ([]ProviderMetadata, error) {
	return nil, ErrNotSupported
}

func providerFields(guid *GUID, ft EventFieldType) ([]ProviderKeyword, error) {
	return nil, ErrNotSupported
}

func processLogFile(ctx context.Context, path string, cfg *logConfig, fn func(*Event) error) (LogHeader, error) {
	return LogHeader{}, ErrNotSupported
}

func newEventWriter(name string) (eventWriter, GUID, error) {
	return nil, GUID{}, ErrNotSupported
}
