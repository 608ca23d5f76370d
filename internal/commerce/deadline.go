package commerce

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationPattern = regexp.MustCompile(`(?i)(\d+)\s*(day|week|month|year)s?`)

// Deadline returns when access bought at from expires for a course lasting
// duration, e.g. "6 weeks" or "1 year". Unparseable durations get three
// months.
func Deadline(from time.Time, duration string) time.Time {
	m := durationPattern.FindStringSubmatch(duration)
	if m == nil {
		return from.AddDate(0, 3, 0)
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return from.AddDate(0, 3, 0)
	}

	switch strings.ToLower(m[2]) {
	case "day":
		return from.AddDate(0, 0, n)
	case "week":
		return from.AddDate(0, 0, 7*n)
	case "month":
		return from.AddDate(0, n, 0)
	default:
		return from.AddDate(n, 0, 0)
	}
}

// daysRemaining rounds up, so any time left on the last day counts as a day.
func daysRemaining(now, deadline time.Time) int {
	return int(math.Ceil(deadline.Sub(now).Hours() / 24))
}
