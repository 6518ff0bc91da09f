// Package geo resolves addresses and driving distances through OpenStreetMap
// services. Distance resolution is a hard dependency of quoting: when it fails
// after bounded retries the caller gets a typed unavailable error, never a
// guessed or stale distance.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"nordflytt_backend/platform/apperr"
	"nordflytt_backend/platform/config"
	"nordflytt_backend/platform/logger"
)

const userAgent = "NordflyttBackend/1.0"

// Resolver resolves the driving distance in kilometers between two addresses.
type Resolver interface {
	Distance(ctx context.Context, origin, destination string) (float64, error)
}

// Service is the OpenStreetMap-backed resolver: nominatim for geocoding,
// OSRM for routing.
type Service struct {
	client     *http.Client
	geocodeURL string
	routingURL string
	attempts   int
	log        *logger.Logger
}

// NewService builds the resolver from configuration.
func NewService(cfg config.GeoConfig, log *logger.Logger) *Service {
	attempts := cfg.GetDistanceResolveAttempts()
	if attempts < 1 {
		attempts = 1
	}
	return &Service{
		client:     &http.Client{Timeout: 5 * time.Second},
		geocodeURL: cfg.GetGeocodeURL(),
		routingURL: strings.TrimRight(cfg.GetRoutingURL(), "/"),
		attempts:   attempts,
		log:        log,
	}
}

// Distance geocodes both addresses in parallel and routes between them.
// Each attempt runs the full pipeline; transient upstream failures are
// retried up to the configured bound before surfacing as unavailable.
func (s *Service) Distance(ctx context.Context, origin, destination string) (float64, error) {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return 0, apperr.Wrap(apperr.KindUnavailable, "distance resolution cancelled", ctx.Err())
			case <-time.After(time.Duration(attempt-1) * 200 * time.Millisecond):
			}
		}

		km, err := s.resolveOnce(ctx, origin, destination)
		if err == nil {
			return km, nil
		}
		lastErr = err
		s.log.Warn("distance resolution attempt failed",
			"attempt", attempt, "attempts", s.attempts, "error", err)
	}

	return 0, apperr.Wrap(apperr.KindUnavailable, "distance could not be resolved", lastErr)
}

func (s *Service) resolveOnce(ctx context.Context, origin, destination string) (float64, error) {
	var from, to coordinate

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		coord, err := s.geocode(groupCtx, origin)
		if err != nil {
			return fmt.Errorf("geocode origin: %w", err)
		}
		from = coord
		return nil
	})
	group.Go(func() error {
		coord, err := s.geocode(groupCtx, destination)
		if err != nil {
			return fmt.Errorf("geocode destination: %w", err)
		}
		to = coord
		return nil
	})
	if err := group.Wait(); err != nil {
		return 0, err
	}

	return s.route(ctx, from, to)
}

func (s *Service) geocode(ctx context.Context, address string) (coordinate, error) {
	params := url.Values{}
	params.Add("q", address)
	params.Add("format", "json")
	params.Add("limit", "1")
	params.Add("countrycodes", "se")

	var results []nominatimResponse
	if err := s.getJSON(ctx, fmt.Sprintf("%s?%s", s.geocodeURL, params.Encode()), &results); err != nil {
		return coordinate{}, err
	}
	if len(results) == 0 {
		return coordinate{}, fmt.Errorf("no geocode match for %q", address)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return coordinate{}, fmt.Errorf("bad latitude in geocode payload: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return coordinate{}, fmt.Errorf("bad longitude in geocode payload: %w", err)
	}

	return coordinate{Lat: lat, Lon: lon}, nil
}

func (s *Service) route(ctx context.Context, from, to coordinate) (float64, error) {
	// OSRM wants lon,lat pairs.
	reqURL := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=false",
		s.routingURL, from.Lon, from.Lat, to.Lon, to.Lat)

	var payload osrmResponse
	if err := s.getJSON(ctx, reqURL, &payload); err != nil {
		return 0, err
	}
	if payload.Code != "Ok" || len(payload.Routes) == 0 {
		return 0, fmt.Errorf("no route found (code %s)", payload.Code)
	}

	return payload.Routes[0].DistanceMeters / 1000, nil
}

func (s *Service) getJSON(ctx context.Context, reqURL string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(target)
}

// SearchAddress returns normalized autocomplete suggestions for the frontend.
func (s *Service) SearchAddress(ctx context.Context, query string) ([]AddressSuggestion, error) {
	params := url.Values{}
	params.Add("q", query)
	params.Add("format", "json")
	params.Add("addressdetails", "1")
	params.Add("limit", "5")
	params.Add("countrycodes", "se")

	var rawResults []nominatimResponse
	if err := s.getJSON(ctx, fmt.Sprintf("%s?%s", s.geocodeURL, params.Encode()), &rawResults); err != nil {
		s.log.Error("address search failed", "error", err)
		return nil, apperr.Wrap(apperr.KindUnavailable, "address lookup unavailable", err)
	}

	suggestions := make([]AddressSuggestion, 0, len(rawResults))
	for _, raw := range rawResults {
		suggestion, ok := buildSuggestion(raw)
		if !ok {
			continue
		}
		suggestions = append(suggestions, suggestion)
	}

	return suggestions, nil
}

func buildSuggestion(raw nominatimResponse) (AddressSuggestion, bool) {
	if raw.Address.Road == "" {
		return AddressSuggestion{}, false
	}

	city := pickCity(raw.Address)
	if city == "" {
		return AddressSuggestion{}, false
	}

	suggestion := AddressSuggestion{
		Street:      raw.Address.Road,
		HouseNumber: raw.Address.HouseNumber,
		ZipCode:     raw.Address.Postcode,
		City:        city,
		Lat:         raw.Lat,
		Lon:         raw.Lon,
	}

	suggestion.Label = buildLabel(suggestion)

	return suggestion, true
}

func pickCity(address nominatimAddress) string {
	if address.City != "" {
		return address.City
	}
	if address.Town != "" {
		return address.Town
	}
	if address.Village != "" {
		return address.Village
	}
	if address.Municipality != "" {
		return address.Municipality
	}
	return address.Hamlet
}

func buildLabel(suggestion AddressSuggestion) string {
	parts := []string{suggestion.Street}
	if suggestion.HouseNumber != "" {
		parts = append(parts, suggestion.HouseNumber)
	}
	parts = append(parts, ",")
	if suggestion.ZipCode != "" {
		parts = append(parts, suggestion.ZipCode)
	}
	parts = append(parts, suggestion.City)

	label := strings.Join(parts, " ")
	label = strings.ReplaceAll(label, " ,", ",")
	return strings.TrimSpace(label)
}
