package places

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
	statex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
)

// DemoLabel marks every place the demo gateway invents.
const DemoLabel = "(demo)"

type knownCity struct {
	names    []string
	lat, lng float64
	address  string
	timezone string
}

var demoCities = []knownCity{
	{[]string{"melbourne"}, -37.8136, 144.9631, "Melbourne VIC, Australia", "Australia/Melbourne"},
	{[]string{"sydney"}, -33.8688, 151.2093, "Sydney NSW, Australia", "Australia/Sydney"},
	{[]string{"brisbane"}, -27.4698, 153.0251, "Brisbane QLD, Australia", "Australia/Brisbane"},
	{[]string{"new york", "nyc", "manhattan"}, 40.7128, -74.0060, "New York, NY, USA", "America/New_York"},
	{[]string{"london"}, 51.5072, -0.1276, "London, UK", "Europe/London"},
	{[]string{"bangkok"}, 13.7563, 100.5018, "Bangkok, Thailand", "Asia/Bangkok"},
	{[]string{"tokyo"}, 35.6762, 139.6503, "Tokyo, Japan", "Asia/Tokyo"},
}

var demoNames = map[string][]string{
	"Thai":      {"Golden Thai Kitchen", "Pad Thai Express", "Thai Orchid Fine Dining", "Siam Street Thai", "Bangkok Night Thai"},
	"Italian":   {"Bella Italia Restaurant", "Pasta Perfetto", "Italian Trattoria Fine Dining", "Nonna's Pizzeria", "Osteria Roma"},
	"Japanese":  {"Golden Sushi Bar", "Tokyo Express Ramen", "Sakura Japanese Fine Dining", "Izakaya Hana", "Udon Ya"},
	"Mexican":   {"Casa Mexico", "Taco Express", "El Pueblo Mexican Fine Dining", "Taqueria Sol", "Cantina Verde"},
	"Indian":    {"Taj Mahal Indian Cuisine", "Curry Express", "Maharaja Fine Dining", "Masala House", "Tandoor Nights"},
	"Chinese":   {"Golden Dragon Chinese", "Beijing Express", "Dynasty Fine Dining", "Dumpling Republic", "Szechuan Wok"},
	"Fast Food": {"Burger Express", "Fried Chicken Shack", "Quick Pizza Express", "Late Night Burger", "Express Wraps"},
}

type demoSlot struct {
	fraction float64
	price    int
	rating   float64
	count    int
	closing  string
}

var demoSlots = []demoSlot{
	{0.25, 2, 4.5, 150, "Closes 10 PM"},
	{0.4, 1, 4.2, 200, "Closes 11 PM"},
	{0.6, 3, 4.7, 320, "Open until 23:30"},
	{0.8, 2, 4.0, 90, "Closes Midnight"},
	{0.95, 4, 4.8, 410, "Open 24 hours"},
}

// DemoGateway returns deterministic, clearly labeled placeholder data so the
// dialogue can run without a places API key.
type DemoGateway struct{}

func NewDemoGateway() *DemoGateway {
	return &DemoGateway{}
}

func (DemoGateway) Geocode(_ context.Context, query string) (statex.Location, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return statex.Location{}, false
	}
	for _, city := range demoCities {
		for _, name := range city.names {
			if strings.Contains(q, name) {
				return demoLocation(city.lat, city.lng, city.address, city.timezone), true
			}
		}
	}
	// Unknown places land at a stable point derived from the text.
	h := fnv.New32a()
	_, _ = h.Write([]byte(q))
	sum := h.Sum32()
	lat := float64(sum%12000)/100 - 60
	lng := float64((sum/12000)%36000)/100 - 180
	return demoLocation(lat, lng, strings.TrimSpace(query)+" "+DemoLabel, ""), true
}

func demoLocation(lat, lng float64, address, tz string) statex.Location {
	loc := statex.Location{Latitude: lat, Longitude: lng, FormattedAddress: address, TimezoneID: tz}
	if zone, err := time.LoadLocation(tz); err == nil && tz != "" {
		loc.LocationTime = time.Now().In(zone).Format(time.RFC3339)
	}
	return loc
}

func (DemoGateway) NearbySearch(_ context.Context, q contract.NearbyQuery) []statex.Candidate {
	cuisine := demoCuisine(q.Keyword)
	names, ok := demoNames[cuisine]
	if !ok {
		names = []string{
			cuisine + " Kitchen", cuisine + " Express", cuisine + " Fine Dining",
			cuisine + " House", cuisine + " Corner",
		}
	}
	radius := float64(q.RadiusM)
	if radius <= 0 {
		radius = statex.DefaultSearchRadiusM
	}

	out := make([]statex.Candidate, 0, len(demoSlots))
	for i, slot := range demoSlots {
		dist := radius * slot.fraction
		lat, lng := offset(q.Latitude, q.Longitude, dist*0.6, dist*0.8)
		out = append(out, statex.Candidate{
			PlaceID:     fmt.Sprintf("demo-%s-%d", strings.ToLower(strings.ReplaceAll(cuisine, " ", "-")), i+1),
			Name:        names[i%len(names)] + " " + DemoLabel,
			Latitude:    lat,
			Longitude:   lng,
			Address:     DemoLabel,
			DistanceM:   Haversine(q.Latitude, q.Longitude, lat, lng),
			PriceLevel:  slot.price,
			Rating:      slot.rating,
			RatingCount: slot.count,
			OpenNow:     true,
			ClosingText: slot.closing,
			Types:       []string{"restaurant", "food"},
		})
	}
	return filterPriceLevels(out, q.PriceLevels)
}

func (DemoGateway) TextSearch(_ context.Context, q contract.TextQuery) []statex.Candidate {
	query := strings.TrimSpace(q.Query)
	if query == "" {
		return nil
	}
	lat, lng := offset(q.Latitude, q.Longitude, 480, 640)
	return []statex.Candidate{{
		PlaceID:     "demo-text-" + strings.ToLower(strings.Join(strings.Fields(query), "-")),
		Name:        query + " " + DemoLabel,
		Latitude:    lat,
		Longitude:   lng,
		Address:     DemoLabel,
		DistanceM:   Haversine(q.Latitude, q.Longitude, lat, lng),
		PriceLevel:  2,
		Rating:      4.3,
		RatingCount: 120,
		OpenNow:     true,
		ClosingText: "Closes 11 PM",
		Types:       []string{"restaurant"},
	}}
}

func demoCuisine(keyword string) string {
	k := strings.TrimSpace(keyword)
	if k == "" {
		return "Local"
	}
	for name := range demoNames {
		if strings.EqualFold(name, k) {
			return name
		}
	}
	return strings.ToUpper(k[:1]) + k[1:]
}

var _ contract.PlacesGateway = DemoGateway{}
