package dashboard

import (
	"errors"
	"fmt"
	"strings"
)

// Granularity selects the time bucket width of a trend chart.
type Granularity int

const (
	Day Granularity = iota
	Week
	Month
)

// BucketCount is the fixed length of every label axis.
const BucketCount = 12

// ErrUnknownGranularity is returned when a granularity token cannot be parsed.
var ErrUnknownGranularity = errors.New("dashboard: unknown granularity")

// ParseGranularity accepts the selector tokens "Day", "Week" and "Month".
func ParseGranularity(token string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "day":
		return Day, nil
	case "week":
		return Week, nil
	case "month":
		return Month, nil
	default:
		return Day, fmt.Errorf("%w: %q", ErrUnknownGranularity, token)
	}
}

func (g Granularity) String() string {
	switch g {
	case Day:
		return "Day"
	case Week:
		return "Week"
	case Month:
		return "Month"
	default:
		return fmt.Sprintf("Granularity(%d)", int(g))
	}
}

// MarshalText lets granularities travel as their selector token.
func (g Granularity) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText parses a selector token.
func (g *Granularity) UnmarshalText(text []byte) error {
	parsed, err := ParseGranularity(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Granularities lists every supported granularity in selector order.
var Granularities = []Granularity{Day, Week, Month}
