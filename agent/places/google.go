package places

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"googlemaps.github.io/maps"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
	statex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/timing"
	logx "github.com/tanpawarit/Chative-Restaurant-Recommender/pkg/logger"
)

type Config struct {
	APIKey    string        `envconfig:"API_KEY" split_words:"true"`
	BaseURL   string        `split_words:"true"`
	Language  string        `split_words:"true" default:"en"`
	Timeout   time.Duration `split_words:"true" default:"10s"`
	RateLimit int           `split_words:"true" default:"10"`
	// DetailsLimit caps the Place Details lookups made per nearby search for
	// results that came back without weekly hours. Zero disables them.
	DetailsLimit int `split_words:"true" default:"5"`
}

// Option customizes GoogleGateway.
type Option func(*GoogleGateway)

func WithHTTPClient(client *http.Client) Option {
	return func(g *GoogleGateway) {
		if client != nil {
			g.httpClient = client
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *GoogleGateway) {
		if now != nil {
			g.now = now
		}
	}
}

// GoogleGateway implements contract.PlacesGateway on the Google Maps web
// services. Every upstream failure is logged and degraded to an empty result.
type GoogleGateway struct {
	client       *maps.Client
	httpClient   *http.Client
	language     string
	detailsLimit int
	now          func() time.Time
}

func NewGoogleGateway(cfg Config, opts ...Option) (*GoogleGateway, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("places api key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	g := &GoogleGateway{
		httpClient:   &http.Client{Timeout: timeout},
		language:     strings.TrimSpace(cfg.Language),
		detailsLimit: max(cfg.DetailsLimit, 0),
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	clientOpts := []maps.ClientOption{
		maps.WithAPIKey(key),
		maps.WithHTTPClient(g.httpClient),
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		clientOpts = append(clientOpts, maps.WithBaseURL(base))
	}
	if cfg.RateLimit > 0 {
		clientOpts = append(clientOpts, maps.WithRateLimit(cfg.RateLimit))
	}
	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, err
	}
	g.client = client
	return g, nil
}

// Geocode resolves free text to a point and, when available, its timezone.
func (g *GoogleGateway) Geocode(ctx context.Context, query string) (statex.Location, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return statex.Location{}, false
	}
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		Address:  query,
		Language: g.language,
	})
	if err != nil {
		logx.Warn().Err(err).Str("query", query).Msg("geocode failed")
		return statex.Location{}, false
	}
	if len(results) == 0 {
		return statex.Location{}, false
	}

	top := results[0]
	loc := statex.Location{
		Latitude:         top.Geometry.Location.Lat,
		Longitude:        top.Geometry.Location.Lng,
		FormattedAddress: top.FormattedAddress,
	}

	now := g.now()
	tz, err := g.client.Timezone(ctx, &maps.TimezoneRequest{
		Location:  &top.Geometry.Location,
		Timestamp: now,
		Language:  g.language,
	})
	if err != nil {
		logx.Warn().Err(err).Str("query", query).Msg("timezone lookup failed")
		return loc, true
	}
	loc.TimezoneID = tz.TimeZoneID
	if zone, err := time.LoadLocation(tz.TimeZoneID); err == nil {
		loc.LocationTime = now.In(zone).Format(time.RFC3339)
	}
	return loc, true
}

func (g *GoogleGateway) NearbySearch(ctx context.Context, q contract.NearbyQuery) []statex.Candidate {
	origin := maps.LatLng{Lat: q.Latitude, Lng: q.Longitude}
	req := &maps.NearbySearchRequest{
		Location: &origin,
		Radius:   uint(max(q.RadiusM, 0)),
		Keyword:  strings.TrimSpace(q.Keyword),
		Language: g.language,
		OpenNow:  q.OpenNow,
	}
	if q.Type != "" {
		req.Type = maps.PlaceType(q.Type)
	}
	if lo, hi, ok := priceBounds(q.PriceLevels); ok {
		req.MinPrice = maps.PriceLevel(strconv.Itoa(lo))
		req.MaxPrice = maps.PriceLevel(strconv.Itoa(hi))
	}

	resp, err := g.client.NearbySearch(ctx, req)
	if err != nil {
		logx.Warn().Err(err).
			Float64("lat", q.Latitude).
			Float64("lng", q.Longitude).
			Int("radius_m", q.RadiusM).
			Str("keyword", q.Keyword).
			Msg("nearby search failed")
		return nil
	}
	candidates := filterPriceLevels(g.toCandidates(origin, resp.Results), q.PriceLevels)
	return g.withOpeningHours(ctx, candidates)
}

// withOpeningHours fills ClosingText through Place Details for the first
// detailsLimit results that Nearby Search returned without weekly hours.
func (g *GoogleGateway) withOpeningHours(ctx context.Context, candidates []statex.Candidate) []statex.Candidate {
	weekday := g.now().Weekday()
	lookups := 0
	for i := range candidates {
		if lookups >= g.detailsLimit || ctx.Err() != nil {
			break
		}
		if candidates[i].ClosingText != "" {
			continue
		}
		lookups++
		details, err := g.client.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
			PlaceID:  candidates[i].PlaceID,
			Language: g.language,
			Fields:   []maps.PlaceDetailsFieldMask{maps.PlaceDetailsFieldMaskOpeningHours},
		})
		if err != nil {
			logx.Warn().Err(err).Str("place_id", candidates[i].PlaceID).Msg("place details failed")
			continue
		}
		if details.OpeningHours != nil {
			candidates[i].ClosingText = closingSnippet(details.OpeningHours.WeekdayText, weekday)
		}
	}
	return candidates
}

func (g *GoogleGateway) TextSearch(ctx context.Context, q contract.TextQuery) []statex.Candidate {
	query := strings.TrimSpace(q.Query)
	if query == "" {
		return nil
	}
	origin := maps.LatLng{Lat: q.Latitude, Lng: q.Longitude}
	resp, err := g.client.TextSearch(ctx, &maps.TextSearchRequest{
		Query:    query,
		Location: &origin,
		Radius:   uint(max(q.RadiusM, 0)),
		Language: g.language,
	})
	if err != nil {
		logx.Warn().Err(err).Str("query", query).Msg("text search failed")
		return nil
	}
	return g.toCandidates(origin, resp.Results)
}

func (g *GoogleGateway) toCandidates(origin maps.LatLng, results []maps.PlacesSearchResult) []statex.Candidate {
	weekday := g.now().Weekday()
	out := make([]statex.Candidate, 0, len(results))
	for _, r := range results {
		if strings.TrimSpace(r.PlaceID) == "" {
			continue
		}
		c := statex.Candidate{
			PlaceID:     r.PlaceID,
			Name:        r.Name,
			Latitude:    r.Geometry.Location.Lat,
			Longitude:   r.Geometry.Location.Lng,
			Address:     firstNonEmpty(r.Vicinity, r.FormattedAddress),
			PriceLevel:  r.PriceLevel,
			Rating:      float64(r.Rating),
			RatingCount: r.UserRatingsTotal,
			Types:       r.Types,
		}
		c.DistanceM = Haversine(origin.Lat, origin.Lng, c.Latitude, c.Longitude)
		if r.OpeningHours != nil {
			if r.OpeningHours.OpenNow != nil {
				c.OpenNow = *r.OpeningHours.OpenNow
			}
			c.ClosingText = closingSnippet(r.OpeningHours.WeekdayText, weekday)
		}
		out = append(out, c)
	}
	return out
}

// closingSnippet turns a weekday line such as "Monday: 11:00 AM – 10:00 PM"
// into "Closes 10:00 PM".
func closingSnippet(weekdayText []string, day time.Weekday) string {
	prefix := strings.ToLower(day.String()) + ":"
	for _, line := range weekdayText {
		line = strings.TrimSpace(timing.NormalizeSpaces(line))
		lower := strings.ToLower(line)
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		hours := strings.TrimSpace(line[len(prefix):])
		if strings.Contains(strings.ToLower(hours), "24 hours") {
			return "Open 24 hours"
		}
		// Use the end of the last range for split shifts.
		ranges := strings.Split(hours, ",")
		last := ranges[len(ranges)-1]
		for _, sep := range []string{"–", "—", "-"} {
			if i := strings.LastIndex(last, sep); i >= 0 {
				return "Closes " + strings.TrimSpace(last[i+len(sep):])
			}
		}
	}
	return ""
}

func priceBounds(levels []int) (int, int, bool) {
	if len(levels) == 0 {
		return 0, 0, false
	}
	lo, hi := levels[0], levels[0]
	for _, l := range levels[1:] {
		lo = min(lo, l)
		hi = max(hi, l)
	}
	return lo, hi, true
}

// filterPriceLevels drops results with a known price outside levels.
func filterPriceLevels(candidates []statex.Candidate, levels []int) []statex.Candidate {
	if len(levels) == 0 {
		return candidates
	}
	allowed := make(map[int]bool, len(levels))
	for _, l := range levels {
		allowed[l] = true
	}
	out := candidates[:0]
	for _, c := range candidates {
		if c.PriceLevel <= 0 || allowed[c.PriceLevel] {
			out = append(out, c)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ contract.PlacesGateway = (*GoogleGateway)(nil)
