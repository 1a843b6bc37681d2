package order

import "strings"

// Site keys understood by the executor.
const (
	SiteInstacart = "instacart"
	SiteUberEats  = "ubereats"
	SiteDoorDash  = "doordash"
)

// Site describes a delivery website the executor can drive.
type Site struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Sites lists the supported delivery websites by key.
var Sites = map[string]Site{
	SiteInstacart: {Key: SiteInstacart, Name: "Instacart", URL: "https://www.instacart.com/", Description: "grocery delivery service"},
	SiteUberEats:  {Key: SiteUberEats, Name: "UberEats", URL: "https://www.ubereats.com/", Description: "food and grocery delivery service"},
	SiteDoorDash:  {Key: SiteDoorDash, Name: "DoorDash", URL: "https://www.doordash.com/", Description: "food and grocery delivery service"},
}

// PlatformFor maps a free-form platform name onto a site. Unknown names
// fall back to Instacart.
func PlatformFor(platform string) Site {
	p := strings.ToLower(platform)
	switch {
	case strings.Contains(p, "instacart"):
		return Sites[SiteInstacart]
	case strings.Contains(p, "uber"):
		return Sites[SiteUberEats]
	case strings.Contains(p, "door"):
		return Sites[SiteDoorDash]
	default:
		return Sites[SiteInstacart]
	}
}
