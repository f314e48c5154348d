package nodes

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
	statex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
)

var discoverySuggestions = []string{
	"Try a different cuisine",
	"Expand the search radius",
	"Name a specific restaurant",
}

func greetingMessage(env contract.Environment) string {
	return fmt.Sprintf(
		"Hi! I'm your restaurant recommender. You're reaching me on a %s at %s. "+
			"Where are you right now? A suburb, street or landmark is enough.",
		env.Weekday, env.LocalTime,
	)
}

// formatDistance renders meters as "800m" or "2.5km".
func formatDistance(meters float64) string {
	if meters < 0 {
		return "an unknown distance"
	}
	if meters < 1000 {
		return fmt.Sprintf("%dm", int(math.Round(meters)))
	}
	km := strconv.FormatFloat(math.Round(meters/100)/10, 'f', -1, 64)
	return km + "km"
}

func energyDescription(level int) string {
	switch {
	case level <= 1:
		return "completely drained"
	case level == 2:
		return "a bit tired"
	case level == 3:
		return "moderate energy"
	case level == 4:
		return "energetic"
	default:
		return "full of energy"
	}
}

func budgetDescription(level int) string {
	switch level {
	case 1:
		return "casual and affordable"
	case 2:
		return "mid-range"
	case 3:
		return "upscale"
	default:
		return "a special occasion"
	}
}

func groupDescription(size int) string {
	if size <= 1 {
		return "for just you"
	}
	return fmt.Sprintf("for %d people", size)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func choiceRange(n int) string {
	if n <= 1 {
		return "1"
	}
	return fmt.Sprintf("1-%d", n)
}

func cuisineExamples(cuisines []string) string {
	if len(cuisines) > 6 {
		cuisines = cuisines[:6]
	}
	return strings.Join(cuisines, ", ")
}

func formatRecommendations(recs []statex.Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here are my top %d %s:\n", len(recs), plural(len(recs), "recommendation", "recommendations"))
	for _, r := range recs {
		fmt.Fprintf(&b, "\n%d. %s", r.Rank, r.Name)
		if r.Rating > 0 {
			fmt.Fprintf(&b, " (%.1f★)", r.Rating)
		}
		fmt.Fprintf(&b, " - %s away\n   %s", formatDistance(r.DistanceM), r.Rationale)
	}
	return b.String()
}
