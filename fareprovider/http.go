package fareprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// HTTPProvider calls a remote fare search API over HTTP. The JSON
// shape mirrors the leg-list responses this corpus's provider
// connectors already decode: a flat array of legs with flight,
// schedule, and price fields.
type HTTPProvider struct {
	baseURL    string
	name       string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPProvider builds a provider bound to baseURL, rate-limited to
// at most rps requests per second with the given burst allowance.
func NewHTTPProvider(name, baseURL string, rps float64, burst int) *HTTPProvider {
	return &HTTPProvider{
		baseURL:    baseURL,
		name:       name,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (p *HTTPProvider) Name() string { return p.name }

type legResponse struct {
	Origin              string  `json:"origin"`
	Destination         string  `json:"destination"`
	OriginFullName      string  `json:"origin_name"`
	DestinationFullName string  `json:"destination_name"`
	DepartureInstant    int64   `json:"departure_unix"`
	ArrivalInstant      int64   `json:"arrival_unix"`
	FlightNumber        string  `json:"flight_number"`
	Price               float64 `json:"price"`
	Currency            string  `json:"currency"`
}

// Cheapest issues one GET against the configured upstream and decodes
// its leg list. destination == "" requests every reachable destination
// from origin; a non-empty destination narrows to inbound legs toward
// that single destination.
func (p *HTTPProvider) Cheapest(ctx context.Context, origin string, partySize int, start, end time.Time, destination string) ([]Leg, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fareprovider: rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("origin", origin)
	q.Set("party_size", strconv.Itoa(partySize))
	q.Set("start", start.Format(time.RFC3339))
	q.Set("end", end.Format(time.RFC3339))
	if destination != "" {
		q.Set("destination", destination)
	}

	reqURL := p.baseURL + "/fares?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fareprovider: build request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fareprovider: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fareprovider: upstream returned %d", resp.StatusCode)
	}

	var raw []legResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("fareprovider: decode response: %w", err)
	}

	legs := make([]Leg, 0, len(raw))
	for _, r := range raw {
		legs = append(legs, Leg{
			Origin:              r.Origin,
			Destination:         r.Destination,
			OriginFullName:      r.OriginFullName,
			DestinationFullName: r.DestinationFullName,
			DepartureInstant:    time.Unix(r.DepartureInstant, 0).UTC(),
			ArrivalInstant:      time.Unix(r.ArrivalInstant, 0).UTC(),
			FlightNumber:        r.FlightNumber,
			Price:               r.Price,
			Currency:            r.Currency,
		})
	}
	return legs, nil
}
