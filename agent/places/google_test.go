package places

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
)

const nearbyPayload = `{
  "status": "OK",
  "results": [
    {
      "place_id": "p1",
      "name": "Golden Thai",
      "vicinity": "1 Swanston St",
      "geometry": {"location": {"lat": -37.8146, "lng": 144.9631}},
      "price_level": 2,
      "rating": 4.6,
      "user_ratings_total": 321,
      "types": ["restaurant", "food"],
      "opening_hours": {
        "open_now": true,
        "weekday_text": [
          "Saturday: 11:00 AM – 3:00 PM, 5:00 – 10:30 PM",
          "Sunday: Open 24 hours"
        ]
      }
    },
    {
      "place_id": "p2",
      "name": "Pricey Place",
      "geometry": {"location": {"lat": -37.8200, "lng": 144.9700}},
      "price_level": 4,
      "rating": 4.9
    },
    {
      "name": "No ID"
    }
  ]
}`

type recordedRequest struct {
	path  string
	query map[string]string
}

func newGoogleTestServer(t *testing.T, routes map[string]string) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := map[string]string{}
		for k, v := range r.URL.Query() {
			q[k] = strings.Join(v, ",")
		}
		mu.Lock()
		reqs = append(reqs, recordedRequest{path: r.URL.Path, query: q})
		mu.Unlock()

		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), reqs...)
	}
}

func newTestGateway(t *testing.T, server *httptest.Server) *GoogleGateway {
	t.Helper()
	saturday := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	g, err := NewGoogleGateway(
		Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 2 * time.Second},
		WithHTTPClient(server.Client()),
		WithClock(func() time.Time { return saturday }),
	)
	if err != nil {
		t.Fatalf("NewGoogleGateway() error = %v", err)
	}
	return g
}

func TestNewGoogleGatewayRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewGoogleGateway(Config{}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestGoogleGatewayGeocodeWithTimezone(t *testing.T) {
	t.Parallel()

	server, _ := newGoogleTestServer(t, map[string]string{
		"/maps/api/geocode/json": `{"status":"OK","results":[{"formatted_address":"Melbourne VIC 3000, Australia","geometry":{"location":{"lat":-37.8136,"lng":144.9631}}}]}`,
		"/maps/api/timezone/json": `{"status":"OK","timeZoneId":"Australia/Melbourne","timeZoneName":"Australian Eastern Daylight Time","rawOffset":36000,"dstOffset":3600}`,
	})
	g := newTestGateway(t, server)

	loc, ok := g.Geocode(context.Background(), "Melbourne CBD")
	if !ok {
		t.Fatal("Geocode() not found")
	}
	if loc.Latitude != -37.8136 || loc.Longitude != 144.9631 {
		t.Fatalf("Geocode() coords = %v,%v", loc.Latitude, loc.Longitude)
	}
	if loc.TimezoneID != "Australia/Melbourne" {
		t.Fatalf("TimezoneID = %q", loc.TimezoneID)
	}
	if loc.LocationTime == "" {
		t.Fatal("LocationTime not set")
	}
}

func TestGoogleGatewayGeocodeDegradesOnFailure(t *testing.T) {
	t.Parallel()

	server, _ := newGoogleTestServer(t, map[string]string{
		"/maps/api/geocode/json": `{"status":"REQUEST_DENIED","error_message":"bad key"}`,
	})
	g := newTestGateway(t, server)

	if _, ok := g.Geocode(context.Background(), "Nowhere"); ok {
		t.Fatal("Geocode() should report not found on upstream error")
	}
	if _, ok := g.Geocode(context.Background(), "  "); ok {
		t.Fatal("Geocode() should reject blank query")
	}
}

func TestGoogleGatewayGeocodeKeepsPointWhenTimezoneFails(t *testing.T) {
	t.Parallel()

	server, _ := newGoogleTestServer(t, map[string]string{
		"/maps/api/geocode/json": `{"status":"OK","results":[{"formatted_address":"Somewhere","geometry":{"location":{"lat":1,"lng":2}}}]}`,
	})
	g := newTestGateway(t, server)

	loc, ok := g.Geocode(context.Background(), "Somewhere")
	if !ok || loc.TimezoneID != "" || loc.Latitude != 1 {
		t.Fatalf("Geocode() = %+v, %v", loc, ok)
	}
}

func TestGoogleGatewayNearbySearch(t *testing.T) {
	t.Parallel()

	server, requests := newGoogleTestServer(t, map[string]string{
		"/maps/api/place/nearbysearch/json": nearbyPayload,
	})
	g := newTestGateway(t, server)

	got := g.NearbySearch(context.Background(), contract.NearbyQuery{
		Latitude:    -37.8136,
		Longitude:   144.9631,
		RadiusM:     3000,
		Keyword:     "Thai",
		PriceLevels: []int{1, 2},
		OpenNow:     true,
		Type:        "restaurant",
	})

	if len(got) != 1 {
		t.Fatalf("NearbySearch() len = %d, want 1 (price filter and missing id)", len(got))
	}
	c := got[0]
	if c.PlaceID != "p1" || c.Name != "Golden Thai" || c.Address != "1 Swanston St" {
		t.Fatalf("candidate = %+v", c)
	}
	if !c.OpenNow || c.RatingCount != 321 || c.PriceLevel != 2 {
		t.Fatalf("candidate fields = %+v", c)
	}
	if math.Abs(c.DistanceM-111.2) > 1 {
		t.Fatalf("DistanceM = %v, want about 111", c.DistanceM)
	}
	if c.ClosingText != "Closes 10:30 PM" {
		t.Fatalf("ClosingText = %q", c.ClosingText)
	}

	reqs := requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d", len(reqs))
	}
	q := reqs[0].query
	if q["radius"] != "3000" || q["keyword"] != "Thai" || q["minprice"] != "1" || q["maxprice"] != "2" || q["type"] != "restaurant" {
		t.Fatalf("nearby query = %v", q)
	}
	if _, ok := q["opennow"]; !ok {
		t.Fatalf("opennow missing from %v", q)
	}
}

func TestGoogleGatewayNearbySearchDegradesToEmpty(t *testing.T) {
	t.Parallel()

	server, _ := newGoogleTestServer(t, map[string]string{
		"/maps/api/place/nearbysearch/json": `{not json`,
	})
	g := newTestGateway(t, server)

	if got := g.NearbySearch(context.Background(), contract.NearbyQuery{Latitude: 1, Longitude: 1, RadiusM: 1000}); len(got) != 0 {
		t.Fatalf("NearbySearch() = %v, want empty", got)
	}
}

func TestGoogleGatewayTextSearch(t *testing.T) {
	t.Parallel()

	server, requests := newGoogleTestServer(t, map[string]string{
		"/maps/api/place/textsearch/json": `{"status":"OK","results":[{"place_id":"t1","name":"Chin Chin","formatted_address":"125 Flinders Ln","geometry":{"location":{"lat":-37.8160,"lng":144.9700}},"rating":4.4}]}`,
	})
	g := newTestGateway(t, server)

	got := g.TextSearch(context.Background(), contract.TextQuery{Query: "Chin Chin", Latitude: -37.8136, Longitude: 144.9631, RadiusM: 5000})
	if len(got) != 1 || got[0].PlaceID != "t1" || got[0].Address != "125 Flinders Ln" {
		t.Fatalf("TextSearch() = %+v", got)
	}
	if q := requests()[0].query; q["query"] != "Chin Chin" {
		t.Fatalf("text query = %v", q)
	}

	if got := g.TextSearch(context.Background(), contract.TextQuery{Query: " "}); got != nil {
		t.Fatalf("TextSearch(blank) = %v", got)
	}
}

func TestGoogleGatewayNearbySearchFetchesMissingHours(t *testing.T) {
	t.Parallel()

	server, requests := newGoogleTestServer(t, map[string]string{
		"/maps/api/place/nearbysearch/json": `{"status":"OK","results":[
			{"place_id":"h1","name":"Thai Hours","geometry":{"location":{"lat":-37.81,"lng":144.96}},"opening_hours":{"open_now":true}},
			{"place_id":"h2","name":"Thai Late","geometry":{"location":{"lat":-37.82,"lng":144.96}},"opening_hours":{"open_now":true}}
		]}`,
		"/maps/api/place/details/json": `{"status":"OK","result":{"place_id":"h1","opening_hours":{"open_now":true,"weekday_text":["Saturday: 11:00\u202fAM\u2009\u2013\u200911:00\u202fPM"]}}}`,
	})
	saturday := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	g, err := NewGoogleGateway(
		Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 2 * time.Second, DetailsLimit: 1},
		WithHTTPClient(server.Client()),
		WithClock(func() time.Time { return saturday }),
	)
	if err != nil {
		t.Fatalf("NewGoogleGateway() error = %v", err)
	}

	got := g.NearbySearch(context.Background(), contract.NearbyQuery{Latitude: -37.8136, Longitude: 144.9631, RadiusM: 3000})
	if len(got) != 2 {
		t.Fatalf("NearbySearch() len = %d", len(got))
	}
	if got[0].ClosingText != "Closes 11:00 PM" {
		t.Fatalf("ClosingText = %q", got[0].ClosingText)
	}
	if got[1].ClosingText != "" {
		t.Fatalf("lookups past the limit: %q", got[1].ClosingText)
	}

	var details []recordedRequest
	for _, r := range requests() {
		if r.path == "/maps/api/place/details/json" {
			details = append(details, r)
		}
	}
	if len(details) != 1 || details[0].query["place_id"] != "h1" || details[0].query["fields"] != "opening_hours" {
		t.Fatalf("details requests = %+v", details)
	}
}

func TestClosingSnippet(t *testing.T) {
	t.Parallel()

	week := []string{
		"Monday: 11:00 AM – 10:00 PM",
		"Tuesday: Closed",
		"Wednesday: 5:00 PM – 1:00 AM",
		"Sunday: Open 24 hours",
		"Thursday: 11:00\u202fAM\u2009\u2013\u200910:30\u202fPM",
	}
	cases := map[time.Weekday]string{
		time.Monday:    "Closes 10:00 PM",
		time.Tuesday:   "",
		time.Wednesday: "Closes 1:00 AM",
		time.Sunday:    "Open 24 hours",
		time.Friday:    "",
		time.Thursday:  "Closes 10:30 PM",
	}
	for day, want := range cases {
		if got := closingSnippet(week, day); got != want {
			t.Fatalf("closingSnippet(%s) = %q, want %q", day, got, want)
		}
	}
}

func TestHaversine(t *testing.T) {
	t.Parallel()

	if got := Haversine(0, 0, 0, 0); got != 0 {
		t.Fatalf("Haversine(same) = %v", got)
	}
	// One degree of latitude is about 111.2 km on this sphere.
	if got := Haversine(0, 0, 1, 0); math.Abs(got-111195) > 1 {
		t.Fatalf("Haversine(1 deg) = %v", got)
	}
	lat, lng := offset(-37.8136, 144.9631, 600, 800)
	if got := Haversine(-37.8136, 144.9631, lat, lng); math.Abs(got-1000) > 1 {
		t.Fatalf("offset distance = %v, want 1000", got)
	}
}

func TestDemoGateway(t *testing.T) {
	t.Parallel()

	g := NewDemoGateway()
	ctx := context.Background()

	loc, ok := g.Geocode(ctx, "Melbourne CBD")
	if !ok || loc.TimezoneID != "Australia/Melbourne" {
		t.Fatalf("Geocode() = %+v, %v", loc, ok)
	}
	again, _ := g.Geocode(ctx, "Springfield")
	other, _ := g.Geocode(ctx, "Springfield")
	if again != other {
		t.Fatal("demo geocode should be deterministic")
	}

	got := g.NearbySearch(ctx, contract.NearbyQuery{
		Latitude: loc.Latitude, Longitude: loc.Longitude, RadiusM: 3000, Keyword: "Thai", PriceLevels: []int{1, 2},
	})
	if len(got) != 3 {
		t.Fatalf("NearbySearch() len = %d, want 3 after price filter", len(got))
	}
	for _, c := range got {
		if !strings.Contains(c.Name, DemoLabel) || !strings.Contains(c.Name, "Thai") {
			t.Fatalf("demo candidate %q not labeled", c.Name)
		}
		if c.DistanceM > 3000 {
			t.Fatalf("demo candidate outside radius: %v", c.DistanceM)
		}
	}

	text := g.TextSearch(ctx, contract.TextQuery{Query: "Chin Chin", Latitude: loc.Latitude, Longitude: loc.Longitude})
	if len(text) != 1 || !strings.HasPrefix(text[0].Name, "Chin Chin") {
		t.Fatalf("TextSearch() = %+v", text)
	}
}
