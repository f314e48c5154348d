// Package timing decides whether a diner can reach a restaurant and eat
// before it closes.
package timing

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
	"unicode"
)

const (
	DefaultClosingHour    = 23
	DefaultSpeedKmh       = 30.0
	DefaultDwellMinutes   = 30.0
	RushHourMultiplier    = 1.3
	nextDayCutoffHour     = 6
	allDayRemainingMinute = 24 * 60
)

// Closing is a parsed closing time. AllDay marks places open around the clock.
type Closing struct {
	Hour   int
	Minute int
	AllDay bool
}

var (
	allDayPattern  = regexp.MustCompile(`(?i)\b(?:open\s+24\s+hours|24\s*hours|24\s*/\s*7)\b`)
	closingPattern = regexp.MustCompile(`(?i)\b(?:closes(?:\s+at)?|closing\s+at|open\s+(?:until|till|til))\s+(midnight|noon|(\d{1,2})(?:[:.](\d{2}))?\s*([ap])\.?\s*m\.?\b|(\d{1,2})(?:[:.](\d{2}))?)`)
)

// ParseClosing reads a closing time from an opening-hours snippet.
//
//	closing := "closes" ["at"] time | "closing at" time | "open until" time | "open 24 hours"
//	time    := "midnight" | "noon" | H[:MM] ("am"|"pm") | H[:MM]
//
// Without a meridiem the hour is read as a 24-hour clock.
func ParseClosing(snippet string) (Closing, bool) {
	snippet = NormalizeSpaces(snippet)
	if allDayPattern.MatchString(snippet) {
		return Closing{AllDay: true}, true
	}
	m := closingPattern.FindStringSubmatch(snippet)
	if m == nil {
		return Closing{}, false
	}
	switch strings.ToLower(m[1]) {
	case "midnight":
		return Closing{Hour: 0}, true
	case "noon":
		return Closing{Hour: 12}, true
	}

	if m[2] != "" {
		hour, _ := strconv.Atoi(m[2])
		minute, ok := parseMinute(m[3])
		if !ok || hour < 1 || hour > 12 {
			return Closing{}, false
		}
		pm := strings.EqualFold(m[4], "p")
		switch {
		case pm && hour != 12:
			hour += 12
		case !pm && hour == 12:
			hour = 0
		}
		return Closing{Hour: hour, Minute: minute}, true
	}

	hour, _ := strconv.Atoi(m[5])
	minute, ok := parseMinute(m[6])
	if !ok || hour > 24 || (hour == 24 && minute != 0) {
		return Closing{}, false
	}
	return Closing{Hour: hour % 24, Minute: minute}, true
}

// NormalizeSpaces maps every Unicode space, such as the narrow no-break space
// Google puts before AM/PM, to an ASCII space.
func NormalizeSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
}

func parseMinute(raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	m, err := strconv.Atoi(raw)
	if err != nil || m > 59 {
		return 0, false
	}
	return m, true
}

// MinutesUntilClose is the time left between now and the closing time in the
// snippet, falling back to defaultHour:00 when the snippet is unparseable.
// Early-morning closing times already in the past roll over to the next day.
func MinutesUntilClose(snippet string, now time.Time, defaultHour int) float64 {
	closing, ok := ParseClosing(snippet)
	if !ok {
		closing = Closing{Hour: defaultHour}
	}
	if closing.AllDay {
		return allDayRemainingMinute
	}
	closeAt := time.Date(now.Year(), now.Month(), now.Day(), closing.Hour, closing.Minute, 0, 0, now.Location())
	if closeAt.Before(now) && closing.Hour < nextDayCutoffHour {
		closeAt = closeAt.AddDate(0, 0, 1)
	}
	return closeAt.Sub(now).Minutes()
}

// TravelMinutes assumes a constant average speed.
func TravelMinutes(distanceM, speedKmh float64) float64 {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	if distanceM < 0 {
		distanceM = 0
	}
	return distanceM / 1000 / speedKmh * 60
}

// Feasible reports whether there is time to travel and stay dwell minutes.
func Feasible(remainingMinutes, travelMinutes, dwellMinutes float64) bool {
	return remainingMinutes >= travelMinutes+dwellMinutes
}

// TrafficMultiplier is 1.3 during 07:00-10:00 and 17:00-19:00, else 1.
func TrafficMultiplier(local time.Time) float64 {
	h := local.Hour()
	if (h >= 7 && h < 10) || (h >= 17 && h < 19) {
		return RushHourMultiplier
	}
	return 1
}

// LocalTime converts now into the IANA zone, or process-local time when the
// zone is empty or unknown.
func LocalTime(now time.Time, timezoneID string) time.Time {
	if tz := strings.TrimSpace(timezoneID); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return now.In(loc)
		}
	}
	return now.In(time.Local)
}
