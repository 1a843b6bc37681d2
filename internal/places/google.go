package places

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/soyeahso/foodvoice/internal/config"
	"github.com/soyeahso/foodvoice/internal/domain"
	"github.com/soyeahso/foodvoice/internal/logging"
	"github.com/soyeahso/foodvoice/internal/version"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	placesapi "google.golang.org/api/places/v1"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// fieldMask selects the response fields; the Places API bills by field.
var fieldMask = strings.Join([]string{
	"places.id",
	"places.displayName",
	"places.formattedAddress",
	"places.location",
	"places.rating",
	"places.priceLevel",
	"places.websiteUri",
}, ",")

// Google searches the Places API (New) text search endpoint.
type Google struct {
	svc *placesapi.Service
	log *logging.Logger
}

// NewGoogle builds a Places client. Credentials are taken, in order, from the
// API key, the service-account file, then application default credentials.
func NewGoogle(ctx context.Context, cfg config.PlacesConfig, log *logging.Logger) (*Google, error) {
	opts := []option.ClientOption{option.WithUserAgent(version.UserAgent())}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("reading places credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("parsing places credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(oauth2.ReuseTokenSource(nil, creds.TokenSource)))
	default:
		creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
		}
		opts = append(opts, option.WithTokenSource(creds.TokenSource))
	}

	svc, err := placesapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating places service: %w", err)
	}
	return &Google{svc: svc, log: log.Sub("places")}, nil
}

// NewGoogleWithHTTPClient builds a client against a custom endpoint without
// credentials, for tests and local proxies.
func NewGoogleWithHTTPClient(ctx context.Context, endpoint string, client *http.Client, log *logging.Logger) (*Google, error) {
	svc, err := placesapi.NewService(ctx,
		option.WithEndpoint(endpoint),
		option.WithHTTPClient(client),
	)
	if err != nil {
		return nil, fmt.Errorf("creating places service: %w", err)
	}
	return &Google{svc: svc, log: log.Sub("places")}, nil
}

// Search runs a text search biased to a circle around q.Location.
func (g *Google) Search(ctx context.Context, q Query) ([]domain.Place, error) {
	req := &placesapi.GoogleMapsPlacesV1SearchTextRequest{
		TextQuery:      q.Text,
		MaxResultCount: int64(q.Limit),
		IncludedType:   q.IncludedType,
	}
	if q.RadiusMeters > 0 {
		req.LocationBias = &placesapi.GoogleMapsPlacesV1SearchTextRequestLocationBias{
			Circle: &placesapi.GoogleMapsPlacesV1Circle{
				Center: &placesapi.GoogleTypeLatLng{
					Latitude:  q.Location.Lat,
					Longitude: q.Location.Lng,
				},
				Radius: q.RadiusMeters,
			},
		}
	}

	call := g.svc.Places.SearchText(req)
	call.Header().Set("X-Goog-FieldMask", fieldMask)

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("places text search: %w", err)
	}

	out := make([]domain.Place, 0, len(resp.Places))
	for _, p := range resp.Places {
		if p == nil {
			continue
		}
		place := domain.Place{
			ID:         p.Id,
			Address:    p.FormattedAddress,
			Rating:     p.Rating,
			PriceLevel: p.PriceLevel,
			Website:    p.WebsiteUri,
		}
		if p.DisplayName != nil {
			place.Name = p.DisplayName.Text
		}
		if p.Location != nil {
			place.Location = domain.LatLng{Lat: p.Location.Latitude, Lng: p.Location.Longitude}
		}
		out = append(out, place)
	}

	g.log.Debug().Str("query", q.Text).Int("results", len(out)).Msg("text search complete")
	return out, nil
}
