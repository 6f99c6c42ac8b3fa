package agent

import (
	"fmt"
	"time"

	"github.com/hupe1980/opsmesh/a2a"
	"github.com/hupe1980/opsmesh/core"
	"github.com/hupe1980/opsmesh/logging"
	"github.com/hupe1980/opsmesh/model"
)

const specialistRules = `
RULES:
- Answer only the question you were given; other specialists handle the rest.
- Present facts as short lines such as "Name (SKU: X)", "Stock: N units", "Price: $P".
- If a previous conversation context is included, use it to resolve pronouns.
- Do not ask follow-up questions and do not offer further actions.`

// Instructions holds the default instruction template of each data specialist.
var Instructions = map[string]string{
	InventorySpecialist: `You are the Inventory Specialist for {{.company_name}}, a data expert
responsible for product inventory: stock levels, availability, pricing and
warehouse locations. Look products up by name, SKU or category.` + specialistRules,

	PolicyExpert: `You are the Policy Expert for {{.company_name}}, a specialist in company
policy compliance and regulatory interpretation: returns, warranties, HR
policies and customer-facing regulations. Cite the policy section you rely on.` + specialistRules,

	AnalyticsSpecialist: `You are the Analytics Specialist for {{.company_name}}, responsible for
business intelligence: inventory trends, fast and slow movers, valuation,
forecasts and filtering products by price or quantity ranges.` + specialistRules,

	OrderSpecialist: `You are the Order Management Specialist for {{.company_name}}, responsible
for procurement: purchase orders with accurate totals, supplier catalogs,
reorder suggestions, order tracking and supplier compliance.` + specialistRules,
}

// Factory builds the agent for a spec.
type Factory func(spec Spec) (core.Agent, error)

// BuildRegistry registers one agent per spec using factory.
func BuildRegistry(specs []Spec, factory Factory) (*Registry, error) {
	reg := NewRegistry()
	for _, spec := range specs {
		a, err := factory(spec)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", spec.Name, err)
		}
		if err := reg.Register(spec, a); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// LocalOptions configures LocalFactory.
type LocalOptions struct {
	CompanyName string
	Signature   string
	Now         func() time.Time
	Logger      logging.Logger
}

// LocalFactory builds in-process agents: a DraftAgent for action specs and a
// ModelAgent with the matching instruction for data specs.
func LocalFactory(llm model.Model, optFns ...func(o *LocalOptions)) Factory {
	opts := LocalOptions{CompanyName: "Company", Now: time.Now, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return func(spec Spec) (core.Agent, error) {
		if spec.Action {
			return NewDraftAgent(spec.Name, func(o *DraftAgentOptions) {
				o.Description = spec.Description
				o.CompanyName = opts.CompanyName
				o.Signature = opts.Signature
				o.Model = llm
				o.Now = opts.Now
				o.Logger = opts.Logger
			}), nil
		}
		if llm == nil {
			return nil, fmt.Errorf("no model configured for %s", spec.Name)
		}
		instruction, ok := Instructions[spec.Name]
		if !ok {
			instruction = fmt.Sprintf("You are %s. %s", core.AgentTitle(spec.Name), spec.Description) + specialistRules
		}
		return NewModelAgent(spec.Name, llm, func(o *ModelAgentOptions) {
			o.Description = spec.Description
			o.Instruction = NewInstructionFromText(instruction)
			o.Vars = map[string]any{"company_name": opts.CompanyName}
			o.Logger = opts.Logger
		}), nil
	}
}

// RemoteFactory builds RemoteAgents posting to {baseURL}/{route}/a2a/interact.
func RemoteFactory(baseURL string, client *a2a.Client) Factory {
	return func(spec Spec) (core.Agent, error) {
		if baseURL == "" {
			return nil, fmt.Errorf("no base url for remote agent %s", spec.Name)
		}
		return NewRemoteAgent(spec.Name, spec.Description, Endpoint(baseURL, spec.Route), client), nil
	}
}
