package country

import (
	"context"
	"encoding/json"
	"sync"

	"payrouter/internal/apperr"
	"payrouter/internal/models"
	"payrouter/internal/repository"
)

// Info is the decoded configuration of one country.
type Info struct {
	Name            string
	Code            string
	PayoutProviders []string
	KYCProvider     string
}

// Registry caches the country table. Countries change rarely, the cache is
// loaded once at startup and refreshed on demand.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Info
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]Info{}}
}

// Load builds the registry from the countries table.
func Load(ctx context.Context, repo repository.ReferenceRepository) (*Registry, error) {
	rows, err := repo.FindCountries(ctx)
	if err != nil {
		return nil, err
	}
	registry := NewRegistry()
	for _, row := range rows {
		info, err := decode(row)
		if err != nil {
			return nil, err
		}
		registry.put(info)
	}
	return registry, nil
}

func decode(row *models.Country) (Info, error) {
	info := Info{Name: row.Name, Code: row.Code}
	if row.KYCProvider != nil {
		info.KYCProvider = *row.KYCProvider
	}
	if err := json.Unmarshal([]byte(row.PayoutProviders), &info.PayoutProviders); err != nil {
		return Info{}, apperr.Internalf("Country %s has malformed payout providers: %v", row.Name, err)
	}
	return info, nil
}

func (r *Registry) put(info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[info.Name] = info
}

// Get returns the country configuration by name.
func (r *Registry) Get(name string) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.byName[name]
	if !ok {
		return Info{}, apperr.New(apperr.WrongParameters, "Unknown country %s", name)
	}
	return info, nil
}

// ProvidersFor returns the payout providers operating in the country.
func (r *Registry) ProvidersFor(name string) ([]string, error) {
	info, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return info.PayoutProviders, nil
}
