package etw

import (
	"fmt"
	"strconv"
	"strings"
)

// AllKeywords enables every keyword of modern and legacy providers.
const AllKeywords uint64 = 0xFFFFFFFFFFFFFFFF

// ProviderConfig selects a provider for a session. The caller builds it and
// StartSession consumes it; only enabled configs are turned on.
type ProviderConfig struct {
	// Name is informational, GUID identifies the provider.
	Name string `json:"name"`
	GUID GUID   `json:"guid"`

	// Keywords is the MatchAnyKeyword mask. The provider writes an event if
	// any of its keyword bits are set here or the event has no keywords.
	// Zero means all keywords for manifest and TraceLogging providers but
	// none for MOF providers, use AllKeywords to cover both.
	Keywords uint64 `json:"keywords"`

	Enabled bool `json:"enabled"`
}

// NewProviderConfig returns an empty, disabled config for the caller to fill in.
func NewProviderConfig() ProviderConfig {
	return ProviderConfig{}
}

// ProviderConfigFor resolves a provider and returns an enabled config with
// all keywords.
func ProviderConfigFor(nameOrGUID string) (ProviderConfig, error) {
	p, err := ResolveProvider(nameOrGUID)
	if err != nil {
		return ProviderConfig{}, err
	}
	return ProviderConfig{
		Name:     p.Name,
		GUID:     p.GUID,
		Keywords: AllKeywords,
		Enabled:  true,
	}, nil
}

// ParseProvider parses a provider selector and returns an enabled config plus
// the options to enable it with.
//
// The format is strictly positional:
//
//	(Name|GUID)[:Level[:EventIDs[:MatchAnyKeyword[:MatchAllKeyword]]]]
//
// An empty chunk keeps the default, so "ProviderName:::0x10" only sets the
// keyword mask. Example: "Microsoft-Windows-Kernel-File:0xff:12,13,14".
//
// Event IDs can be found in the provider manifest:
//
//	> logman query providers "provider-name"
//	> wevtutil gp "provider-name"
func ParseProvider(s string) (cfg ProviderConfig, opts ProviderOptions, err error) {
	var u uint64

	opts = NewProviderOption()
	parts := strings.Split(s, ":")

	for i, chunk := range parts {
		if chunk == "" && i > 0 {
			continue
		}

		switch i {
		case 0:
			if cfg, err = ProviderConfigFor(chunk); err != nil {
				return
			}
		case 1:
			if u, err = strconv.ParseUint(chunk, 0, 8); err != nil {
				err = fmt.Errorf("failed to parse level %q: %w", chunk, err)
				return
			}
			opts.Level = uint8(u)
		case 2:
			for idStr := range strings.SplitSeq(chunk, ",") {
				if u, err = strconv.ParseUint(strings.TrimSpace(idStr), 0, 16); err != nil {
					err = fmt.Errorf("failed to parse event ID %q: %w", idStr, err)
					return
				}
				opts.EventIDsToEnable = append(opts.EventIDsToEnable, uint16(u))
			}
		case 3:
			if u, err = strconv.ParseUint(chunk, 0, 64); err != nil {
				err = fmt.Errorf("failed to parse MatchAnyKeyword %q: %w", chunk, err)
				return
			}
			cfg.Keywords = u
		case 4:
			if u, err = strconv.ParseUint(chunk, 0, 64); err != nil {
				err = fmt.Errorf("failed to parse MatchAllKeyword %q: %w", chunk, err)
				return
			}
			opts.MatchAllKeywords = u
		default:
			err = fmt.Errorf("too many fields in provider %q", s)
			return
		}
	}
	return
}
