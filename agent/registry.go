package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/opsmesh/core"
)

// Canonical specialist names.
const (
	InventorySpecialist    = "inventory_specialist"
	PolicyExpert           = "policy_expert"
	AnalyticsSpecialist    = "analytics_specialist"
	OrderSpecialist        = "order_specialist"
	NotificationSpecialist = "notification_specialist"
)

// Spec describes a registered agent: its canonical name, the URL route it is
// served under, alternative names the classifier may emit and whether it
// performs side-effecting actions.
type Spec struct {
	Name        string
	Route       string
	Description string
	Aliases     []string
	// Action agents run after all data agents and receive their output.
	Action bool
}

// DefaultSpecs lists the built-in specialists.
func DefaultSpecs() []Spec {
	return []Spec{
		{
			Name:        InventorySpecialist,
			Route:       "inventory",
			Description: "Queries product inventory by name, SKU or category: stock levels, availability, pricing and locations. Not for price filtering.",
		},
		{
			Name:        PolicyExpert,
			Route:       "policy",
			Description: "Searches company policy documents: returns, warranties, HR policies, customer compliance and regulations. Not for supplier compliance.",
		},
		{
			Name:        AnalyticsSpecialist,
			Route:       "analytics",
			Description: "Business intelligence: trends, forecasts, valuation, reports and price or quantity filtering (products under, over or between values).",
		},
		{
			Name:        OrderSpecialist,
			Route:       "orders",
			Aliases:     []string{"order", "orders_specialist"},
			Description: "Order management and procurement: purchase orders, suppliers, reorders, tracking and supplier compliance.",
		},
		{
			Name:        NotificationSpecialist,
			Route:       "notification",
			Aliases:     []string{"action_taker", "email"},
			Description: "Drafts e-mails and sends them after human approval.",
			Action:      true,
		},
	}
}

type registration struct {
	spec  Spec
	agent core.Agent
}

// Registry resolves agent names, aliases and routes to agents. Lookups are
// case-insensitive.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registration
	aliases map[string]string
	order   []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]*registration{}, aliases: map[string]string{}}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds agent under spec. Names, routes and aliases must be unique.
func (r *Registry) Register(spec Spec, a core.Agent) error {
	if a == nil {
		return fmt.Errorf("register %q: nil agent", spec.Name)
	}
	if spec.Name == "" {
		spec.Name = a.Name()
	}
	if spec.Description == "" {
		spec.Description = a.Description()
	}

	canonical := normalize(spec.Name)
	keys := append([]string{canonical, normalize(spec.Route)}, spec.Aliases...)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[canonical]; ok {
		return fmt.Errorf("register %q: already registered", spec.Name)
	}
	for _, k := range keys {
		k = normalize(k)
		if k == "" {
			continue
		}
		if owner, ok := r.aliases[k]; ok {
			return fmt.Errorf("register %q: name %q already used by %q", spec.Name, k, owner)
		}
	}

	r.entries[canonical] = &registration{spec: spec, agent: a}
	for _, k := range keys {
		if k = normalize(k); k != "" {
			r.aliases[k] = canonical
		}
	}
	r.order = append(r.order, canonical)
	return nil
}

// Canonical maps a name, alias or route to the canonical agent name.
func (r *Registry) Canonical(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.aliases[normalize(name)]
	if !ok {
		return "", false
	}
	return r.entries[c].spec.Name, true
}

// Lookup returns the agent registered under name, alias or route.
func (r *Registry) Lookup(name string) (core.Agent, bool) {
	reg, ok := r.lookup(name)
	if !ok {
		return nil, false
	}
	return reg.agent, true
}

// Spec returns the registration under name, alias or route.
func (r *Registry) Spec(name string) (Spec, bool) {
	reg, ok := r.lookup(name)
	if !ok {
		return Spec{}, false
	}
	return reg.spec, true
}

// IsAction reports whether name resolves to an action agent.
func (r *Registry) IsAction(name string) bool {
	reg, ok := r.lookup(name)
	return ok && reg.spec.Action
}

// Specs returns all specs in registration order.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.order))
	for _, c := range r.order {
		out = append(out, r.entries[c].spec)
	}
	return out
}

// Names returns the canonical names, sorted.
func (r *Registry) Names() []string {
	specs := r.Specs()
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) lookup(name string) (*registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.aliases[normalize(name)]
	if !ok {
		return nil, false
	}
	reg, ok := r.entries[c]
	return reg, ok
}
