package etw

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Schema sources reported by TdhEnumerateProviders.
const (
	SchemaManifest = "Manifest"
	SchemaMOF      = "MOF"
)

// ProviderMetadata describes a provider registered on the system.
type ProviderMetadata struct {
	Name         string `json:"name"`
	GUID         GUID   `json:"guid"`
	SchemaSource string `json:"schemaSource"`
}

// providerRegistry indexes the registered providers by name and GUID. It is
// loaded once per process; providers installed later are only reachable by GUID.
type providerRegistry struct {
	load func() ([]ProviderMetadata, error)

	once   sync.Once
	err    error
	list   []ProviderMetadata
	byName map[string]int
	byGUID map[GUID]int
}

var registry = newProviderRegistry(enumerateProviders)

func newProviderRegistry(load func() ([]ProviderMetadata, error)) *providerRegistry {
	return &providerRegistry{load: load}
}

func (r *providerRegistry) init() error {
	r.once.Do(func() {
		list, err := r.load()
		if err != nil {
			r.err = fmt.Errorf("failed to enumerate providers: %w", err)
			return
		}
		slices.SortStableFunc(list, func(a, b ProviderMetadata) int {
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
		r.list = list
		r.byName = make(map[string]int, len(list))
		r.byGUID = make(map[GUID]int, len(list))
		for i, p := range list {
			// Some MOF classes share a name, the first one wins.
			key := strings.ToLower(p.Name)
			if _, ok := r.byName[key]; !ok {
				r.byName[key] = i
			}
			r.byGUID[p.GUID] = i
		}
		log.Debug().Int("providers", len(list)).Msg("provider registry loaded")
	})
	return r.err
}

func (r *providerRegistry) providers() ([]ProviderMetadata, error) {
	if err := r.init(); err != nil {
		return nil, err
	}
	return slices.Clone(r.list), nil
}

func (r *providerRegistry) resolve(s string) (ProviderMetadata, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ProviderMetadata{}, missing("provider")
	}

	if g, err := ParseGUID(s); err == nil {
		if r.init() == nil {
			if i, ok := r.byGUID[*g]; ok {
				return r.list[i], nil
			}
		}
		// TraceLogging providers never register, a GUID is all there is.
		return ProviderMetadata{GUID: *g}, nil
	}

	if err := r.init(); err != nil {
		return ProviderMetadata{}, err
	}
	if i, ok := r.byName[strings.ToLower(s)]; ok {
		return r.list[i], nil
	}
	return ProviderMetadata{}, fmt.Errorf("%w %q", ErrUnknownProvider, s)
}

// name returns the registered name of a provider, empty if there is none.
func (r *providerRegistry) name(guid *GUID) string {
	if r.init() != nil {
		return ""
	}
	if i, ok := r.byGUID[*guid]; ok {
		return r.list[i].Name
	}
	return ""
}

func (r *providerRegistry) known(s string) bool {
	if r.init() != nil {
		return false
	}
	if g, err := ParseGUID(s); err == nil {
		_, ok := r.byGUID[*g]
		return ok
	}
	_, ok := r.byName[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// ListProviders returns every provider registered on the system, sorted by name.
func ListProviders() ([]ProviderMetadata, error) {
	return registry.providers()
}

// ResolveProvider looks up a provider by name (case-insensitive) or GUID.
// A well formed GUID that is not registered resolves to a provider without
// name, since TraceLogging providers can be enabled without registration.
func ResolveProvider(nameOrGUID string) (ProviderMetadata, error) {
	return registry.resolve(nameOrGUID)
}

// ConvertToGUID returns the GUID of an installed provider.
func ConvertToGUID(providerName string) (GUID, error) {
	p, err := registry.resolve(providerName)
	if err != nil {
		return GUID{}, err
	}
	return p.GUID, nil
}

// IsKnownProvider returns true if the name or GUID is registered on the system.
func IsKnownProvider(nameOrGUID string) bool {
	return registry.known(nameOrGUID)
}
