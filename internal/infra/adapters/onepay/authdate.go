package onepay

import (
	"fmt"
	"strings"
	"time"

	"onepay-payment-adapter/internal/domain"
)

// Go's parser does not resolve the PDT/PST abbreviations the provider uses.
var authDateZones = map[string]*time.Location{
	"PST": time.FixedZone("PST", -8*3600),
	"PDT": time.FixedZone("PDT", -7*3600),
}

var authDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"20060102150405",
}

// ParseAuthDate parses the provider's authentication timestamp into UTC.
// Parsing is fallible and the failure is explicit: callers apply the
// documented default-to-now policy themselves instead of relying on a
// silently swallowed error.
func ParseAuthDate(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty authentication date", domain.ErrMalformedInput)
	}

	loc := time.UTC
	for abbr, zone := range authDateZones {
		if strings.HasSuffix(s, " "+abbr) {
			s = strings.TrimSuffix(s, " "+abbr)
			loc = zone
			break
		}
	}

	for _, layout := range authDateLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable authentication date %q", domain.ErrMalformedInput, value)
}
