package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"nordflytt_backend/platform/apperr"
	"nordflytt_backend/platform/logger"
)

type geoConfigStub struct {
	geocodeURL string
	routingURL string
	ttl        time.Duration
	attempts   int
}

func (g geoConfigStub) GetGeocodeURL() string              { return g.geocodeURL }
func (g geoConfigStub) GetRoutingURL() string              { return g.routingURL }
func (g geoConfigStub) GetRedisURL() string                { return "" }
func (g geoConfigStub) GetDistanceCacheTTL() time.Duration { return g.ttl }
func (g geoConfigStub) GetDistanceResolveAttempts() int    { return g.attempts }

func newGeocodeServer(t *testing.T) *httptest.Server {
	t.Helper()
	coords := map[string][2]string{
		"Sveavägen 1, Stockholm": {"59.3293", "18.0686"},
		"Avenyn 1, Göteborg":     {"57.7009", "11.9746"},
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		coord, ok := coords[query]
		if !ok {
			fmt.Fprint(w, "[]")
			return
		}
		fmt.Fprintf(w, `[{"display_name":%q,"lat":%q,"lon":%q,"address":{"road":"x","city":"y"}}]`,
			query, coord[0], coord[1])
	}))
}

func newRoutingServer(distanceMeters float64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":"Ok","routes":[{"distance":%f}]}`, distanceMeters)
	}))
}

func TestDistanceResolvesViaGeocodeAndRoute(t *testing.T) {
	geocode := newGeocodeServer(t)
	defer geocode.Close()
	routing := newRoutingServer(470500)
	defer routing.Close()

	svc := NewService(geoConfigStub{
		geocodeURL: geocode.URL,
		routingURL: routing.URL,
		attempts:   1,
	}, logger.New("development"))

	km, err := svc.Distance(context.Background(), "Sveavägen 1, Stockholm", "Avenyn 1, Göteborg")
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if km != 470.5 {
		t.Fatalf("expected 470.5 km, got %f", km)
	}
}

func TestDistanceUnresolvableAddressIsUnavailable(t *testing.T) {
	geocode := newGeocodeServer(t)
	defer geocode.Close()
	routing := newRoutingServer(1000)
	defer routing.Close()

	svc := NewService(geoConfigStub{
		geocodeURL: geocode.URL,
		routingURL: routing.URL,
		attempts:   2,
	}, logger.New("development"))

	_, err := svc.Distance(context.Background(), "Nowhere 99", "Avenyn 1, Göteborg")
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestDistanceRetriesUpstreamFailures(t *testing.T) {
	geocode := newGeocodeServer(t)
	defer geocode.Close()

	var calls atomic.Int32
	routing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"code":"Ok","routes":[{"distance":12000}]}`)
	}))
	defer routing.Close()

	svc := NewService(geoConfigStub{
		geocodeURL: geocode.URL,
		routingURL: routing.URL,
		attempts:   3,
	}, logger.New("development"))

	km, err := svc.Distance(context.Background(), "Sveavägen 1, Stockholm", "Avenyn 1, Göteborg")
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if km != 12 {
		t.Fatalf("expected 12 km after retry, got %f", km)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 routing calls, got %d", got)
	}
}

func TestDistanceExhaustedRetriesFailLoud(t *testing.T) {
	geocode := newGeocodeServer(t)
	defer geocode.Close()

	var calls atomic.Int32
	routing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer routing.Close()

	svc := NewService(geoConfigStub{
		geocodeURL: geocode.URL,
		routingURL: routing.URL,
		attempts:   3,
	}, logger.New("development"))

	_, err := svc.Distance(context.Background(), "Sveavägen 1, Stockholm", "Avenyn 1, Göteborg")
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 routing attempts, got %d", got)
	}
}

type countingResolver struct {
	calls int
	km    float64
	err   error
}

func (c *countingResolver) Distance(ctx context.Context, origin, destination string) (float64, error) {
	c.calls++
	return c.km, c.err
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedResolverHitsCacheOnSecondLookup(t *testing.T) {
	_, client := newTestRedis(t)

	inner := &countingResolver{km: 470.5}
	cached := NewCachedResolver(inner, client, time.Hour, logger.New("development"))

	for i := 0; i < 3; i++ {
		km, err := cached.Distance(context.Background(), "Sveavägen 1, Stockholm", "Avenyn 1, Göteborg")
		if err != nil {
			t.Fatalf("Distance: %v", err)
		}
		if km != 470.5 {
			t.Fatalf("expected 470.5 km, got %f", km)
		}
	}

	if inner.calls != 1 {
		t.Fatalf("expected a single inner resolve, got %d", inner.calls)
	}
}

func TestCachedResolverNormalizesAddresses(t *testing.T) {
	_, client := newTestRedis(t)

	inner := &countingResolver{km: 12}
	cached := NewCachedResolver(inner, client, time.Hour, logger.New("development"))

	if _, err := cached.Distance(context.Background(), "Sveavägen 1,  Stockholm", "Avenyn 1, Göteborg"); err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if _, err := cached.Distance(context.Background(), "sveavägen 1, stockholm", "AVENYN 1, göteborg"); err != nil {
		t.Fatalf("Distance: %v", err)
	}

	if inner.calls != 1 {
		t.Fatalf("case and whitespace variants must share a cache entry, got %d resolves", inner.calls)
	}
}

func TestCachedResolverSurvivesRedisOutage(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	inner := &countingResolver{km: 99}
	cached := NewCachedResolver(inner, client, time.Hour, logger.New("development"))

	km, err := cached.Distance(context.Background(), "a b", "c d")
	if err != nil {
		t.Fatalf("cache outage must not fail resolution: %v", err)
	}
	if km != 99 {
		t.Fatalf("expected 99 km, got %f", km)
	}
}

func TestCachedResolverNeverCachesFailures(t *testing.T) {
	_, client := newTestRedis(t)

	inner := &countingResolver{err: apperr.Unavailable("distance could not be resolved")}
	cached := NewCachedResolver(inner, client, time.Hour, logger.New("development"))

	for i := 0; i < 2; i++ {
		if _, err := cached.Distance(context.Background(), "a b", "c d"); !apperr.Is(err, apperr.KindUnavailable) {
			t.Fatalf("expected unavailable error, got %v", err)
		}
	}
	if inner.calls != 2 {
		t.Fatalf("failures must not be cached, got %d resolves", inner.calls)
	}
}
