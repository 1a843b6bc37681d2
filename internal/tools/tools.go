// Package tools implements the four ordering tools the voice assistant can
// call: storing dietary preferences, storing the budget, searching for
// restaurants and asking the user to confirm an order.
package tools

import (
	"github.com/soyeahso/foodvoice/internal/agent"
	"github.com/soyeahso/foodvoice/internal/domain"
	"github.com/soyeahso/foodvoice/internal/logging"
	"github.com/soyeahso/foodvoice/internal/memory"
	"github.com/soyeahso/foodvoice/internal/places"
	"github.com/soyeahso/foodvoice/internal/research"
)

// Tool names as the model sees them.
const (
	NameStoreDietary   = "store_dietary_preferences"
	NameStoreBudget    = "store_budget_info"
	NameSearch         = "search_restaurants"
	NameAskForConfirm  = "ask_for_confirmation_of_order"
	estimatedDelivery  = "30-45 minutes"
	defaultRecallLimit = 5
)

// Deps are the collaborators the tools need.
type Deps struct {
	Places       places.Searcher
	Research     research.Researcher
	Memory       memory.Store
	Location     domain.LatLng
	RadiusMeters float64
	MaxResults   int
	IncludedType string
	Log          *logging.Logger
}

// RegisterAll registers every ordering tool, in the order the system prompt
// introduces them.
func RegisterAll(reg *agent.ToolRegistry, deps Deps) {
	if deps.Memory == nil {
		deps.Memory = memory.Noop{}
	}
	if deps.Places == nil {
		deps.Places = places.Unconfigured{}
	}
	log := deps.Log.Sub("tools")

	reg.Register(&StoreDietary{memory: deps.Memory, log: log})
	reg.Register(&StoreBudget{memory: deps.Memory, log: log})
	reg.Register(&SearchRestaurants{
		places:   deps.Places,
		research: deps.Research,
		memory:   deps.Memory,
		location: deps.Location,
		radius:   deps.RadiusMeters,
		limit:    deps.MaxResults,
		typ:      deps.IncludedType,
		log:      log,
	})
	reg.Register(&AskForConfirmation{})
}
