package order

import (
	"fmt"
	"strings"
)

// Task is one unit of work for the executor: fill a cart on one site.
type Task struct {
	Platform    string `json:"platform"`
	Site        string `json:"site"`
	SiteURL     string `json:"site_url"`
	Description string `json:"description"`
	Items       []Item `json:"items"`
}

// NewTask builds the executor task for one group of a draft.
func NewTask(g Group, budget string, dietary []string) Task {
	site := PlatformFor(g.Platform)
	return Task{
		Platform:    g.Platform,
		Site:        site.Key,
		SiteURL:     site.URL,
		Description: TaskDescription(g, budget, dietary),
		Items:       append([]Item(nil), g.Items...),
	}
}

// TaskDescription renders the natural-language instructions the browser
// agent follows for one group.
func TaskDescription(g Group, budget string, dietary []string) string {
	site := PlatformFor(g.Platform)

	var items strings.Builder
	for _, it := range g.Items {
		items.WriteString("- ")
		items.WriteString(it.Name)
		if it.Quantity != "" {
			fmt.Fprintf(&items, " (quantity: %s)", it.Quantity)
		}
		if it.Details != "" {
			fmt.Fprintf(&items, " - %s", it.Details)
		}
		items.WriteString("\n")
	}

	var extra strings.Builder
	if len(dietary) > 0 {
		fmt.Fprintf(&extra, "\nDietary restrictions to consider: %s\n", strings.Join(dietary, ", "))
	}
	if b := strings.TrimSpace(budget); b != "" {
		if !strings.HasPrefix(b, "$") {
			b = "$" + b
		}
		fmt.Fprintf(&extra, "\nBudget limit: %s\n", b)
	}

	return fmt.Sprintf(`Search for the following items on %s at the nearest store:

%s
You will buy all of the items at the same store.
For each item:
1. Search for the item
2. Find the best match (closest name, lowest price)
3. Add the item to the cart
%s
SAFETY REQUIREMENTS:
- Never add items that violate the dietary restrictions or allergies
- Check ingredient lists and allergen information
- If an item contains restricted ingredients, pick a safe alternative or skip it
- Consider cross-contamination for severe allergies

STORE HOURS:
- Check that the restaurant or store is open before ordering
- If it is closed, stop immediately and report an error
- Look for "Closed", "Currently unavailable" or "Hours" on the page
- Do not add items to the cart when the store is not taking orders

Site: %s: %s
`, site.Name, items.String(), extra.String(), site.Name, site.URL)
}
