// interval.go - Parsing of the "dd.mm.yy-dd.mm.yy" interval shorthand the
// front end collects, plus the today helper. A malformed interval is a
// validation error: nothing was queried, fix and retry.
package ledger

import (
	"fmt"
	"strings"
	"time"
)

const intervalLayout = "02.01.06"

// ParseDateInterval parses "dd.mm.yy-dd.mm.yy" into an inclusive interval
// spanning [first day 00:00:00, last day 23:59:59].
func ParseDateInterval(s string) (DateInterval, error) {
	s = strings.ReplaceAll(s, " ", "")
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return DateInterval{}, fmt.Errorf("%w: want dd.mm.yy-dd.mm.yy, got %q", ErrInvalidInterval, s)
	}

	start, err := time.ParseInLocation(intervalLayout, parts[0], time.Local)
	if err != nil {
		return DateInterval{}, fmt.Errorf("%w: %q", ErrInvalidInterval, parts[0])
	}
	end, err := time.ParseInLocation(intervalLayout, parts[1], time.Local)
	if err != nil {
		return DateInterval{}, fmt.Errorf("%w: %q", ErrInvalidInterval, parts[1])
	}
	if end.Before(start) {
		return DateInterval{}, fmt.Errorf("%w: end before start", ErrInvalidInterval)
	}

	return DateInterval{
		Start: start,
		End:   endOfDay(end),
	}, nil
}

// TodayInterval covers the current local day.
func TodayInterval(now time.Time) DateInterval {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return DateInterval{Start: start, End: endOfDay(start)}
}

func endOfDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, day.Location())
}
