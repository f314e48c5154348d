package slots

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const FastFood = "Fast Food"

var DefaultCuisines = []string{
	"Thai", "Japanese", "Italian", "Mexican", "Indian", "Chinese",
	"Vietnamese", "Korean", "French", "Mediterranean", "American", "Brazilian",
}

var exhaustionVocabulary = []string{
	"exhausted", "completely exhausted", "dead tired", "shattered", "knackered",
	"wiped", "worn out", "beat", "drained", "too tired", "so tired",
}

var energyRules = Rules[int]{
	Phrases(2, "tired", "long day", "sleepy", "low energy", "not much energy", "a bit slow"),
	Phrases(3, "moderate", "ok", "okay", "alright", "so so", "in between", "average", "medium", "normal"),
	Phrases(5, "very energetic", "full of energy", "lots of energy", "pumped", "buzzing", "super energetic"),
	Phrases(4, "energetic", "energy", "ready", "explore", "adventure", "adventurous", "enthusiastic", "fresh"),
}

var budgetRules = Rules[int]{
	Phrases(1, "cheap", "budget", "$", "affordable", "casual", "quick", "inexpensive", "low cost"),
	Phrases(2, "mid", "mid range", "midrange", "moderate", "$$", "comfortable", "normal", "regular", "medium", "reasonable"),
	Phrases(3, "upscale", "nice", "$$$", "fine dining", "classy", "treat", "treat myself"),
	Phrases(4, "fancy", "expensive", "$$$$", "special", "splurge", "luxury", "high end"),
}

var groupRules = Rules[int]{
	Phrases(2, "me and a friend", "with a friend", "and a friend", "me and my", "plus one", "two of us"),
	Phrases(1, "just me", "alone", "solo", "myself", "only me", "by myself", "single"),
	Phrases(2, "couple", "date", "partner", "pair"),
	Phrases(3, "few", "small group"),
	Phrases(4, "family", "kids"),
	Phrases(5, "friends", "group", "team", "colleagues", "coworkers", "gang"),
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12,
}

// cuisineSynonyms maps dishes and descriptors to a cuisine.
var cuisineSynonyms = []struct {
	phrase  string
	cuisine string
}{
	{"fast food", FastFood}, {"drive thru", FastFood}, {"drive through", FastFood},
	{"mcdonalds", FastFood}, {"kfc", FastFood}, {"takeaway", FastFood},
	{"pad thai", "Thai"}, {"tom yum", "Thai"}, {"green curry", "Thai"},
	{"sushi", "Japanese"}, {"ramen", "Japanese"}, {"udon", "Japanese"}, {"izakaya", "Japanese"}, {"teriyaki", "Japanese"},
	{"pizza", "Italian"}, {"pasta", "Italian"}, {"risotto", "Italian"}, {"lasagna", "Italian"},
	{"tacos", "Mexican"}, {"taco", "Mexican"}, {"burrito", "Mexican"}, {"nachos", "Mexican"}, {"quesadilla", "Mexican"},
	{"curry", "Indian"}, {"biryani", "Indian"}, {"tandoori", "Indian"}, {"naan", "Indian"},
	{"dim sum", "Chinese"}, {"dumplings", "Chinese"}, {"fried rice", "Chinese"}, {"peking duck", "Chinese"},
	{"pho", "Vietnamese"}, {"banh mi", "Vietnamese"},
	{"kimchi", "Korean"}, {"bibimbap", "Korean"}, {"korean bbq", "Korean"},
	{"croissant", "French"}, {"bistro", "French"}, {"crepes", "French"},
	{"greek", "Mediterranean"}, {"falafel", "Mediterranean"}, {"hummus", "Mediterranean"}, {"kebab", "Mediterranean"},
	{"burger", "American"}, {"burgers", "American"}, {"bbq", "American"}, {"steak", "American"}, {"diner", "American"},
	{"churrasco", "Brazilian"}, {"churrascaria", "Brazilian"},
}

// cuisineKeywords are name fragments used to filter search results.
var cuisineKeywords = map[string][]string{
	"Thai":          {"thai", "siam", "bangkok", "pad", "tom yum"},
	"Japanese":      {"japanese", "sushi", "ramen", "izakaya", "udon", "yakitori", "teppanyaki", "tokyo"},
	"Italian":       {"italian", "pizza", "pizzeria", "pasta", "trattoria", "osteria", "ristorante"},
	"Mexican":       {"mexican", "taco", "taqueria", "cantina", "burrito"},
	"Indian":        {"indian", "curry", "tandoor", "masala", "biryani", "spice"},
	"Chinese":       {"chinese", "dumpling", "dim sum", "noodle", "wok", "szechuan", "canton"},
	"Vietnamese":    {"vietnamese", "pho", "banh mi", "saigon", "hanoi"},
	"Korean":        {"korean", "bbq", "kimchi", "seoul", "bibimbap"},
	"French":        {"french", "bistro", "brasserie", "patisserie", "cafe"},
	"Mediterranean": {"mediterranean", "greek", "lebanese", "falafel", "kebab", "mezze"},
	"American":      {"american", "burger", "grill", "diner", "bbq", "steakhouse"},
	"Brazilian":     {"brazilian", "churrasco", "churrascaria", "rio"},
	FastFood:        {"burger", "fried chicken", "pizza", "express", "kfc", "mcdonald", "subway", "hungry jack"},
}

var (
	acceptVocabulary = []string{
		"yes", "yeah", "yep", "yup", "sure", "ok", "okay", "fine", "sounds good", "good",
		"perfect", "great", "that works", "works for me", "alright", "correct", "confirm",
		"go ahead", "lets go", "do it", "y",
	}
	rejectVocabulary = []string{
		"no", "nah", "nope", "too far", "too close", "not that far", "closer", "shorter",
		"less", "farther", "further", "different", "change",
	}
	affirmativeVocabulary = []string{
		"yes", "yeah", "yep", "yup", "sure", "ok", "okay", "that one", "sounds good",
		"perfect", "great", "lets do it", "book it", "go for it", "y",
	}
	expandVocabulary = []string{
		"expand", "further", "farther", "wider", "bigger radius", "broaden", "increase", "more options",
	}
)

var (
	distancePattern = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+|,\d{1,2})?)\s*(kilometers|kilometres|km|kms|k|meters|metres|meter|metre|m|miles|mile|mi)\b`)
	groupPattern    = regexp.MustCompile(`(?i)\b(\d{1,2}|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)\s+(?:people|persons|ppl|pax|of us|guests|adults)\b`)
	forPattern      = regexp.MustCompile(`(?i)\b(?:for|party of|table for)\s+(\d{1,2}|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)\b`)
	placePattern    = regexp.MustCompile(`(?i)\b(?:how about|what about|let'?s try|can we try|try|is there|search for|look for)\s+(.+)$`)
	skipPattern     = regexp.MustCompile(`(?i)\b(?:skip|just)\b.*?\b(?:search|find|look|show)\w*(?:\s+(?:for|me))*\s*(.*)$`)
)

// Extractor holds the configured cuisine list used by the slot parsers.
type Extractor struct {
	cuisines []string
}

// NewExtractor builds an extractor. Fast Food is always recognised.
func NewExtractor(cuisines []string) *Extractor {
	list := make([]string, 0, len(cuisines)+1)
	for _, c := range cuisines {
		if c = strings.TrimSpace(c); c != "" {
			list = append(list, c)
		}
	}
	if len(list) == 0 {
		list = append(list, DefaultCuisines...)
	}
	hasFastFood := false
	for _, c := range list {
		if strings.EqualFold(c, FastFood) {
			hasFastFood = true
		}
	}
	if !hasFastFood {
		list = append(list, FastFood)
	}
	return &Extractor{cuisines: list}
}

func (x *Extractor) Cuisines() []string {
	return append([]string(nil), x.cuisines...)
}

// DefaultCuisine is the first configured cuisine.
func (x *Extractor) DefaultCuisine() string {
	return x.cuisines[0]
}

// IsExhausted matches the extreme-tiredness vocabulary only; plain "tired"
// does not qualify.
func (x *Extractor) IsExhausted(text string) bool {
	return ContainsAny(text, exhaustionVocabulary...)
}

// EnergyLevel returns a level 1-5 or false when nothing matched.
func (x *Extractor) EnergyLevel(text string) (int, bool) {
	if n, ok := IntInRange(text, 1, 5); ok {
		return n, true
	}
	return energyRules.First(text)
}

func (x *Extractor) BudgetLevel(text string) (int, bool) {
	if n, ok := IntInRange(text, 1, 4); ok {
		return n, true
	}
	return budgetRules.First(text)
}

// GroupSize returns a party size between 1 and 20.
func (x *Extractor) GroupSize(text string) (int, bool) {
	if n, ok := IntInRange(text, 1, 20); ok {
		return n, true
	}
	for _, re := range []*regexp.Regexp{groupPattern, forPattern} {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, ok := parseCount(m[1]); ok && n >= 1 && n <= 20 {
				return n, true
			}
		}
	}
	if n, ok := numberWords[Normalize(text)]; ok {
		return n, true
	}
	return groupRules.First(text)
}

func parseCount(tok string) (int, bool) {
	tok = strings.ToLower(tok)
	if n, ok := numberWords[tok]; ok {
		return n, true
	}
	n, err := strconv.Atoi(tok)
	return n, err == nil
}

// CuisineMatch is a recognised cuisine and, when a dish triggered the match,
// the dish itself.
type CuisineMatch struct {
	Cuisine string
	Dish    string
}

// Cuisine finds a configured cuisine named directly or through a dish synonym.
func (x *Extractor) Cuisine(text string) (CuisineMatch, bool) {
	norm := Normalize(text)
	if norm == "" {
		return CuisineMatch{}, false
	}
	for _, c := range x.cuisines {
		if containsNormalized(norm, Normalize(c)) {
			return CuisineMatch{Cuisine: c}, true
		}
	}
	for _, syn := range cuisineSynonyms {
		if !containsNormalized(norm, Normalize(syn.phrase)) {
			continue
		}
		if c, ok := x.canonical(syn.cuisine); ok {
			dish := syn.phrase
			if c == FastFood {
				dish = ""
			}
			return CuisineMatch{Cuisine: c, Dish: dish}, true
		}
	}
	return CuisineMatch{}, false
}

func (x *Extractor) canonical(cuisine string) (string, bool) {
	for _, c := range x.cuisines {
		if strings.EqualFold(c, cuisine) {
			return c, true
		}
	}
	return "", false
}

// CuisineKeywords returns lowercase name fragments for a cuisine, always
// including the cuisine name itself.
func CuisineKeywords(cuisine string) []string {
	out := []string{strings.ToLower(cuisine)}
	for k, v := range cuisineKeywords {
		if strings.EqualFold(k, cuisine) {
			out = append(out, v...)
		}
	}
	return out
}

// Distance parses "2km", "2 km", "2000m", "2000 meters" or "1.5 miles" into
// meters.
func Distance(text string) (int, bool) {
	m := distancePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(decimalNumber(m[1]), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "kilometers", "kilometres", "km", "kms", "k":
		value *= 1000
	case "miles", "mile", "mi":
		value *= 1609.344
	}
	return int(math.Round(value)), true
}

// decimalNumber reads "1,500" as a thousands separator and "1,5" as a
// decimal comma.
func decimalNumber(s string) string {
	if i := strings.LastIndexByte(s, ','); i >= 0 && len(s)-i-1 <= 2 && !strings.Contains(s, ".") {
		return strings.Replace(s, ",", ".", 1)
	}
	return strings.ReplaceAll(s, ",", "")
}

func IsAccept(text string) bool      { return ContainsAny(text, acceptVocabulary...) }
func IsReject(text string) bool      { return ContainsAny(text, rejectVocabulary...) }
func IsAffirmative(text string) bool { return ContainsAny(text, affirmativeVocabulary...) }
func WantsExpansion(text string) bool {
	return ContainsAny(text, expandVocabulary...)
}

// PlaceQuery extracts X from "how about X", "what about X", "try X" and
// similar proposals of a specific place.
func PlaceQuery(text string) (string, bool) {
	m := placePattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	q := strings.TrimRight(strings.TrimSpace(m[1]), "?!. ")
	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(strings.ToLower(q), article) {
			q = q[len(article):]
		}
	}
	q = strings.TrimSpace(q)
	return q, q != ""
}

// placeFillers are words that can sit around a dish without naming a venue,
// as in "how about some good sushi tonight".
var placeFillers = map[string]bool{
	"some": true, "good": true, "nice": true, "great": true, "food": true, "place": true,
	"places": true, "restaurant": true, "restaurants": true, "instead": true, "then": true,
	"tonight": true, "maybe": true, "please": true, "for": true, "dinner": true, "lunch": true,
}

// NamesPlace reports whether a place query that matched cuisine through a dish
// also carries other words, so "Sushi Hub" or "Pizza Hut" name a venue while
// "sushi" alone stays a cuisine request.
func NamesPlace(query string, m CuisineMatch) bool {
	if m.Dish == "" {
		return false
	}
	dish := Normalize(m.Dish)
	rest := strings.Replace(" "+Normalize(query)+" ", " "+dish+" ", " ", 1)
	for _, w := range strings.Fields(rest) {
		if !placeFillers[w] {
			return true
		}
	}
	return false
}

// SkipAndSearch matches "skip ... and search for X" style overrides. The
// returned text is whatever follows the search verb and may be empty.
func SkipAndSearch(text string) (string, bool) {
	m := skipPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	return strings.TrimRight(strings.TrimSpace(m[1]), "?!. "), true
}
