package plans

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	FamilyBasic    = "BASIC"
	FamilyInfinity = "INFINITY"
	FamilyComfort  = "COMFORT"
	FamilyPlatinum = "PLATINUM"
)

// FamilyPolicy holds the billing rules shared by every plan of a family.
type FamilyPolicy struct {
	Family              string `yaml:"family"`
	AnnualOnly          bool   `yaml:"annual_only"`
	MultiPetDiscount    bool   `yaml:"multi_pet_discount"`
	MaxCardInstallments int    `yaml:"max_card_installments"`
}

type policyFile struct {
	Families []FamilyPolicy `yaml:"families"`
}

// fallbackPolicy applies to families missing from the registry: no discount
// and a single installment.
var fallbackPolicy = FamilyPolicy{MaxCardInstallments: 1}

type Registry struct {
	mu       sync.RWMutex
	families map[string]*FamilyPolicy
}

func NewRegistry() *Registry {
	return &Registry{
		families: make(map[string]*FamilyPolicy),
	}
}

// DefaultRegistry holds the built-in family table.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&FamilyPolicy{Family: FamilyBasic, MultiPetDiscount: true, MaxCardInstallments: 1})
	r.Register(&FamilyPolicy{Family: FamilyInfinity, MultiPetDiscount: true, MaxCardInstallments: 1})
	r.Register(&FamilyPolicy{Family: FamilyComfort, AnnualOnly: true, MaxCardInstallments: 12})
	r.Register(&FamilyPolicy{Family: FamilyPlatinum, AnnualOnly: true, MaxCardInstallments: 12})
	return r
}

// LoadFromFile reads a YAML family table. An empty path yields the defaults.
func LoadFromFile(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan policy file: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse plan policy file: %w", err)
	}

	registry := NewRegistry()
	for i := range file.Families {
		p := &file.Families[i]
		if p.Family == "" {
			return nil, fmt.Errorf("plan policy entry %d has no family", i)
		}
		if p.MaxCardInstallments < 1 {
			p.MaxCardInstallments = 1
		}
		registry.Register(p)
	}
	return registry, nil
}

func (r *Registry) Register(p *FamilyPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.families[normalizeFamily(p.Family)] = p
}

// Policy returns the family's rules, or the single-installment fallback.
func (r *Registry) Policy(family string) FamilyPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.families[normalizeFamily(family)]; ok {
		return *p
	}
	p := fallbackPolicy
	p.Family = family
	return p
}

func (r *Registry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.families))
	for name := range r.families {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func normalizeFamily(family string) string {
	return strings.ToUpper(strings.TrimSpace(family))
}
