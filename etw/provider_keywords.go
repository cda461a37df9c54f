package etw

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ProviderKeyword is one named value a provider publishes in its metadata: a
// keyword bit, a level, a channel, a task or an opcode.
type ProviderKeyword struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Value       uint64 `json:"value"`
}

// EventFieldType selects the metadata TdhEnumerateProviderFieldInformation returns.
type EventFieldType uint32

const (
	EventKeywordInformation EventFieldType = 0
	EventLevelInformation   EventFieldType = 1
	EventChannelInformation EventFieldType = 2
	EventTaskInformation    EventFieldType = 3
	EventOpcodeInformation  EventFieldType = 4
)

func providerFieldList(provider string, ft EventFieldType) (ProviderMetadata, []ProviderKeyword, error) {
	meta, err := ResolveProvider(provider)
	if err != nil {
		return meta, nil, err
	}
	items, err := providerFields(&meta.GUID, ft)
	if err != nil {
		return meta, nil, fmt.Errorf("failed to query fields of %s: %w", providerLabel(meta), err)
	}
	slices.SortStableFunc(items, func(a, b ProviderKeyword) int {
		return cmp.Compare(a.Value, b.Value)
	})
	return meta, items, nil
}

// GetProviderKeywords returns the keywords of a provider sorted by value.
// Providers without keyword metadata (classic MOF, TraceLogging) fail with
// ErrNoKeywords.
func GetProviderKeywords(provider string) ([]ProviderKeyword, error) {
	meta, items, err := providerFieldList(provider, EventKeywordInformation)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoKeywords, providerLabel(meta))
	}
	return items, nil
}

// GetProviderLevels returns the levels a provider declares, sorted by value.
// The result is empty for providers that only use the standard levels.
func GetProviderLevels(provider string) ([]ProviderKeyword, error) {
	_, items, err := providerFieldList(provider, EventLevelInformation)
	return items, err
}

// KeywordMask ORs together the keywords selected by name (case-insensitive).
// A selector can also be a number, "0x10" or "16".
func KeywordMask(keywords []ProviderKeyword, names ...string) (uint64, error) {
	var mask uint64
	for _, name := range names {
		name = strings.TrimSpace(name)
		i := slices.IndexFunc(keywords, func(k ProviderKeyword) bool {
			return strings.EqualFold(k.Name, name)
		})
		if i >= 0 {
			mask |= keywords[i].Value
			continue
		}
		v, err := strconv.ParseUint(name, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("unknown keyword %q", name)
		}
		mask |= v
	}
	return mask, nil
}

func providerLabel(p ProviderMetadata) string {
	if p.Name == "" {
		return p.GUID.StringU()
	}
	return p.Name
}
