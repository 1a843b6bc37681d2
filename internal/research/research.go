// Package research attaches menus and delivery platforms to places found by
// search, using a JSON-only LLM prompt stage.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soyeahso/foodvoice/internal/domain"
	"github.com/soyeahso/foodvoice/internal/llm"
	"github.com/soyeahso/foodvoice/internal/logging"
)

// Request is the input to one research pass.
type Request struct {
	Places       []domain.Place
	Dietary      string
	Budget       string
	OrderSummary string
	// Known holds remembered preferences from earlier conversations.
	Known []string
}

// Researcher enriches places into restaurants.
type Researcher interface {
	Enrich(ctx context.Context, req Request) ([]domain.Restaurant, error)
}

// LLM researches places by asking a model for menus and platforms.
type LLM struct {
	client    llm.Client
	model     string
	maxTokens int
	log       *logging.Logger
}

// NewLLM creates an LLM-backed researcher. Empty model uses the client default.
func NewLLM(client llm.Client, model string, maxTokens int, log *logging.Logger) *LLM {
	return &LLM{client: client, model: model, maxTokens: maxTokens, log: log.Sub("research")}
}

const systemPrompt = `You research restaurants for a food delivery assistant.
For each restaurant you are given, list menu items that fit the diner's dietary needs and budget, with realistic prices in US dollars, and the delivery platforms that carry it. Only use these platform names: "Uber Eats", "DoorDash", "Instacart". If you do not believe a restaurant delivers through any of them, give it an empty delivery_platforms list. Never add restaurants that are not in the input.
Respond with JSON only, in this shape:
{"restaurants":[{"place_id":"...","menu_items":[{"name":"...","price":12.5,"description":"..."}],"delivery_platforms":["Uber Eats"]}]}`

type researchOutput struct {
	Restaurants []struct {
		PlaceID           string            `json:"place_id"`
		MenuItems         []domain.MenuItem `json:"menu_items"`
		DeliveryPlatforms []string          `json:"delivery_platforms"`
	} `json:"restaurants"`
}

type promptPlace struct {
	PlaceID    string  `json:"place_id"`
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	Rating     float64 `json:"rating,omitempty"`
	PriceLevel string  `json:"price_level,omitempty"`
	Website    string  `json:"website,omitempty"`
}

// Enrich returns one restaurant per input place, in input order. Places the
// model skipped come back with no platforms.
func (r *LLM) Enrich(ctx context.Context, req Request) ([]domain.Restaurant, error) {
	if len(req.Places) == 0 {
		return nil, nil
	}

	resp, err := r.client.Complete(ctx, llm.CompletionRequest{
		Model:      r.model,
		System:     systemPrompt,
		Messages:   []llm.Message{{Role: llm.RoleUser, Content: buildPrompt(req)}},
		MaxTokens:  r.maxTokens,
		JSONOutput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("research completion: %w", err)
	}

	var out researchOutput
	if err := json.Unmarshal([]byte(llm.ExtractJSON(resp.Content)), &out); err != nil {
		return nil, fmt.Errorf("parsing research output: %w", err)
	}

	byID := make(map[string]int, len(out.Restaurants))
	for i, rr := range out.Restaurants {
		byID[rr.PlaceID] = i
	}

	restaurants := make([]domain.Restaurant, 0, len(req.Places))
	for _, p := range req.Places {
		rest := domain.RestaurantFromPlace(p)
		rest.MenuItems = []domain.MenuItem{}
		rest.DeliveryPlatforms = []string{}
		if i, ok := byID[p.ID]; ok {
			found := out.Restaurants[i]
			if found.MenuItems != nil {
				rest.MenuItems = found.MenuItems
			}
			rest.DeliveryPlatforms = NormalizePlatforms(found.DeliveryPlatforms)
		}
		restaurants = append(restaurants, rest)
	}

	r.log.Debug().Int("places", len(req.Places)).Int("researched", len(out.Restaurants)).Msg("research complete")
	return restaurants, nil
}

func buildPrompt(req Request) string {
	places := make([]promptPlace, len(req.Places))
	for i, p := range req.Places {
		places[i] = promptPlace{
			PlaceID:    p.ID,
			Name:       p.Name,
			Address:    p.Address,
			Rating:     p.Rating,
			PriceLevel: p.PriceLevel,
			Website:    p.Website,
		}
	}
	data, _ := json.MarshalIndent(places, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "Dietary preferences: %s\n", orNone(req.Dietary))
	fmt.Fprintf(&b, "Budget: %s\n", orNone(req.Budget))
	fmt.Fprintf(&b, "Wants: %s\n", orNone(req.OrderSummary))
	if len(req.Known) > 0 {
		b.WriteString("Previously stated preferences:\n")
		for _, k := range req.Known {
			fmt.Fprintf(&b, "- %s\n", k)
		}
	}
	b.WriteString("\nRestaurants:\n")
	b.Write(data)
	return b.String()
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none given"
	}
	return s
}

// NormalizePlatforms maps loose platform names onto the accepted values and
// drops anything unrecognized or repeated.
func NormalizePlatforms(in []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, p := range in {
		name := canonicalPlatform(p)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func canonicalPlatform(p string) string {
	key := strings.ToLower(strings.Join(strings.Fields(p), ""))
	switch {
	case strings.Contains(key, "uber"):
		return domain.PlatformUberEats
	case strings.Contains(key, "doordash"):
		return domain.PlatformDoorDash
	case strings.Contains(key, "instacart"):
		return domain.PlatformInstacart
	default:
		return ""
	}
}

// Static returns fixed restaurants. Used by tests and offline demos.
type Static struct {
	Restaurants []domain.Restaurant
	Err         error
}

func (s Static) Enrich(context.Context, Request) ([]domain.Restaurant, error) {
	return s.Restaurants, s.Err
}
