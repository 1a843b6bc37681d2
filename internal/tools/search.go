package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soyeahso/foodvoice/internal/agent"
	"github.com/soyeahso/foodvoice/internal/domain"
	"github.com/soyeahso/foodvoice/internal/logging"
	"github.com/soyeahso/foodvoice/internal/memory"
	"github.com/soyeahso/foodvoice/internal/places"
	"github.com/soyeahso/foodvoice/internal/research"
)

// SearchRestaurants finds nearby places, researches their menus and
// delivery platforms, and keeps only restaurants that can be delivered.
type SearchRestaurants struct {
	places   places.Searcher
	research research.Researcher
	memory   memory.Store
	location domain.LatLng
	radius   float64
	limit    int
	typ      string
	log      *logging.Logger
}

func (t *SearchRestaurants) Name() string { return NameSearch }

func (t *SearchRestaurants) Description() string {
	return "Search for restaurants near the user's location that match their dietary needs and budget. Uses Google Places API and web search to find restaurants on Uber Eats, DoorDash, or Instacart with menu items and prices."
}

func (t *SearchRestaurants) InputSchema() string {
	return `{
  "type": "object",
  "properties": {
    "dietary_preferences": {
      "type": "string",
      "description": "Summary of dietary restrictions and preferences"
    },
    "budget": {
      "type": "string",
      "description": "Budget constraints (e.g., 'under $25', 'moderate $20-30')"
    },
    "order_summary": {
      "type": "string",
      "description": "A summary of what the user wants to order"
    }
  },
  "required": ["dietary_preferences", "budget", "order_summary"]
}`
}

type searchArgs struct {
	DietaryPreferences string `json:"dietary_preferences"`
	Budget             string `json:"budget"`
	OrderSummary       string `json:"order_summary"`
}

func (t *SearchRestaurants) Execute(ctx context.Context, tc *agent.ToolContext, input json.RawMessage) (*agent.ToolResult, error) {
	var args searchArgs
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if tc != nil && tc.State != nil {
		prefs := tc.State.Preferences()
		if args.DietaryPreferences == "" {
			args.DietaryPreferences = prefs.Dietary
		}
		if args.Budget == "" {
			args.Budget = prefs.Budget
		}
	}

	log := t.log.With("tool", NameSearch)

	found, err := t.places.Search(ctx, places.Query{
		Text:         searchText(args),
		Location:     t.location,
		RadiusMeters: t.radius,
		Limit:        t.limit,
		IncludedType: t.typ,
	})
	if err != nil {
		return nil, fmt.Errorf("place search: %w", err)
	}

	var known []string
	if q := strings.TrimSpace(args.DietaryPreferences + " " + args.OrderSummary); q != "" {
		matches, err := t.memory.Recall(ctx, q, defaultRecallLimit)
		if err != nil {
			log.Warn().Err(err).Msg("preference recall failed")
		}
		known = memory.Texts(matches)
	}

	var researched []domain.Restaurant
	if t.research != nil {
		researched, err = t.research.Enrich(ctx, research.Request{
			Places:       found,
			Dietary:      args.DietaryPreferences,
			Budget:       args.Budget,
			OrderSummary: args.OrderSummary,
			Known:        known,
		})
		if err != nil {
			return nil, fmt.Errorf("restaurant research: %w", err)
		}
	} else {
		for _, p := range found {
			researched = append(researched, domain.RestaurantFromPlace(p))
		}
	}

	restaurants := make([]domain.Restaurant, 0, len(researched))
	for _, r := range researched {
		if r.Deliverable() {
			restaurants = append(restaurants, r)
		}
	}
	if tc != nil && tc.State != nil {
		tc.State.SetSearchResults(restaurants)
	}

	log.Info().Int("places", len(found)).Int("deliverable", len(restaurants)).Msg("restaurant search finished")

	if len(restaurants) == 0 {
		return &agent.ToolResult{Output: map[string]any{
			"success":     false,
			"restaurants": restaurants,
			"count":       0,
			"summary":     "No restaurants matching the request deliver through Uber Eats, DoorDash, or Instacart.",
		}}, nil
	}

	return &agent.ToolResult{
		Output: map[string]any{
			"success":     true,
			"restaurants": restaurants,
			"count":       len(restaurants),
			"summary":     summarize(restaurants),
		},
		UIUpdate: map[string]any{"restaurants": restaurants},
	}, nil
}

func searchText(args searchArgs) string {
	parts := []string{}
	for _, s := range []string{args.OrderSummary, args.DietaryPreferences} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "restaurants"
	}
	return strings.Join(parts, " ") + " restaurants"
}

func summarize(rs []domain.Restaurant) string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = fmt.Sprintf("%s (%s)", r.Name, strings.Join(r.DeliveryPlatforms, ", "))
	}
	return fmt.Sprintf("Found %d restaurants that deliver: %s", len(rs), strings.Join(names, "; "))
}
