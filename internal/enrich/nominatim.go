package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

// Nominatim geocodes names against an OpenStreetMap Nominatim instance.
type Nominatim struct {
	baseURL    string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
}

// NewNominatim creates a gazetteer client. The usage policy requires a
// descriptive User-Agent.
func NewNominatim(baseURL, userAgent string, timeout time.Duration, httpClient *http.Client) *Nominatim {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	return &Nominatim{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode implements Gazetteer. The country is the last comma-separated
// token of the display address.
func (n *Nominatim) Geocode(ctx context.Context, name string) (model.Location, error) {
	q := url.Values{}
	q.Set("q", name)
	q.Set("format", "json")
	q.Set("limit", "1")

	var places []nominatimPlace
	if err := getJSON(ctx, n.httpClient, n.baseURL+"/search?"+q.Encode(), n.userAgent, "", n.timeout, &places); err != nil {
		return model.Location{}, fmt.Errorf("nominatim search: %w", err)
	}
	if len(places) == 0 {
		return model.Location{}, ErrNotFound
	}

	place := places[0]
	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return model.Location{}, fmt.Errorf("nominatim lat %q: %w", place.Lat, err)
	}
	lon, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return model.Location{}, fmt.Errorf("nominatim lon %q: %w", place.Lon, err)
	}

	return model.Location{
		Lat:     lat,
		Lon:     lon,
		Country: lastToken(place.DisplayName),
		Found:   true,
	}, nil
}

func lastToken(address string) string {
	if i := strings.LastIndex(address, ","); i >= 0 {
		return strings.TrimSpace(address[i+1:])
	}
	return strings.TrimSpace(address)
}
