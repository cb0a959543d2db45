package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

const (
	propHeadquarters = "P159"
	propCoordinates  = "P625"
)

// GlobalThrottle delays every caller by at least a fixed interval and keeps
// successive callers at least one interval apart, across goroutines.
type GlobalThrottle struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewThrottle returns a GlobalThrottle. A non-positive interval never waits.
func NewThrottle(interval time.Duration) *GlobalThrottle {
	if interval <= 0 {
		return &GlobalThrottle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &GlobalThrottle{limiter: rate.NewLimiter(rate.Every(interval), 1), interval: interval}
}

// Wait blocks for max(interval, the caller's place in the global queue).
func (t *GlobalThrottle) Wait(ctx context.Context) error {
	r := t.limiter.Reserve()
	if !r.OK() {
		return errors.New("throttle: reservation refused")
	}
	delay := max(r.Delay(), t.interval)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wikidata resolves an organization's headquarters through the Wikidata
// action API: entity search, headquarters claim, then the headquarters
// entity's coordinates and English label.
type Wikidata struct {
	apiURL     string
	userAgent  string
	timeout    time.Duration
	throttle   Throttle
	httpClient *http.Client
}

// NewWikidata creates a knowledge-graph client. baseURL is the wiki root,
// e.g. https://www.wikidata.org. Each call is bounded by timeout; throttle
// is waited on once before the first call of every lookup.
func NewWikidata(baseURL, userAgent string, timeout time.Duration, throttle Throttle, httpClient *http.Client) *Wikidata {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	return &Wikidata{
		apiURL:     strings.TrimRight(baseURL, "/") + "/w/api.php",
		userAgent:  userAgent,
		timeout:    timeout,
		throttle:   throttle,
		httpClient: httpClient,
	}
}

type wbSearchResponse struct {
	Search []struct {
		ID string `json:"id"`
	} `json:"search"`
}

type wbSnak struct {
	Mainsnak struct {
		Datavalue struct {
			Value json.RawMessage `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}

type wbClaimsResponse struct {
	Claims map[string][]wbSnak `json:"claims"`
}

type wbEntitiesResponse struct {
	Entities map[string]struct {
		Labels map[string]struct {
			Value string `json:"value"`
		} `json:"labels"`
		Claims map[string][]wbSnak `json:"claims"`
	} `json:"entities"`
}

// Headquarters implements KnowledgeGraph. Country carries the headquarters
// label, which is usually a city.
func (w *Wikidata) Headquarters(ctx context.Context, name string) (model.Location, error) {
	if w.throttle != nil {
		if err := w.throttle.Wait(ctx); err != nil {
			return model.Location{}, fmt.Errorf("wikidata throttle: %w", err)
		}
	}

	entityID, err := w.searchEntity(ctx, name)
	if err != nil {
		return model.Location{}, err
	}

	hqID, err := w.headquartersID(ctx, entityID)
	if err != nil {
		return model.Location{}, err
	}

	return w.coordinates(ctx, hqID)
}

func (w *Wikidata) searchEntity(ctx context.Context, name string) (string, error) {
	q := url.Values{}
	q.Set("action", "wbsearchentities")
	q.Set("language", "en")
	q.Set("format", "json")
	q.Set("search", name)

	var resp wbSearchResponse
	if err := w.call(ctx, q, &resp); err != nil {
		return "", fmt.Errorf("wikidata search: %w", err)
	}
	if len(resp.Search) == 0 || resp.Search[0].ID == "" {
		return "", ErrNotFound
	}
	return resp.Search[0].ID, nil
}

func (w *Wikidata) headquartersID(ctx context.Context, entityID string) (string, error) {
	q := url.Values{}
	q.Set("action", "wbgetclaims")
	q.Set("entity", entityID)
	q.Set("property", propHeadquarters)
	q.Set("format", "json")

	var resp wbClaimsResponse
	if err := w.call(ctx, q, &resp); err != nil {
		return "", fmt.Errorf("wikidata claims %s: %w", entityID, err)
	}
	snaks := resp.Claims[propHeadquarters]
	if len(snaks) == 0 {
		return "", ErrNotFound
	}

	var item struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(snaks[0].Mainsnak.Datavalue.Value, &item); err != nil || item.ID == "" {
		return "", fmt.Errorf("wikidata claims %s: malformed headquarters value", entityID)
	}
	return item.ID, nil
}

func (w *Wikidata) coordinates(ctx context.Context, hqID string) (model.Location, error) {
	q := url.Values{}
	q.Set("action", "wbgetentities")
	q.Set("ids", hqID)
	q.Set("props", "claims|labels")
	q.Set("format", "json")

	var resp wbEntitiesResponse
	if err := w.call(ctx, q, &resp); err != nil {
		return model.Location{}, fmt.Errorf("wikidata entity %s: %w", hqID, err)
	}

	entity, ok := resp.Entities[hqID]
	if !ok {
		return model.Location{}, ErrNotFound
	}
	label, ok := entity.Labels["en"]
	if !ok {
		return model.Location{}, fmt.Errorf("wikidata entity %s: no english label", hqID)
	}
	snaks := entity.Claims[propCoordinates]
	if len(snaks) == 0 {
		return model.Location{}, ErrNotFound
	}

	var coords struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.Unmarshal(snaks[0].Mainsnak.Datavalue.Value, &coords); err != nil || coords.Latitude == nil || coords.Longitude == nil {
		return model.Location{}, fmt.Errorf("wikidata entity %s: malformed coordinates", hqID)
	}

	return model.Location{
		Lat:     *coords.Latitude,
		Lon:     *coords.Longitude,
		Country: label.Value,
		Found:   true,
	}, nil
}

func (w *Wikidata) call(ctx context.Context, q url.Values, out any) error {
	return getJSON(ctx, w.httpClient, w.apiURL+"?"+q.Encode(), w.userAgent, "", w.timeout, out)
}
