package answer

import (
	"fmt"
	"time"

	"github.com/epicollect5/epicollect5-server-sub003/internal/schema"
)

// isoLayouts are the encodings the mobile and web apps store answers in.
// A fractional second is accepted after the seconds field by time.Parse.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// canonicalDatetime reads s either as an ISO timestamp or with the display
// layouts of format, and renders it with only the components format shows.
// The wall clock is kept as written; no timezone conversion happens.
func canonicalDatetime(format schema.DatetimeFormat, s string) (string, error) {
	rules, ok := format.Rules()
	if !ok {
		return "", fmt.Errorf("%w: unknown format %q", ErrInvalidDatetime, format)
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(rules.Canonical), nil
		}
	}
	for _, layout := range rules.Layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(rules.Canonical), nil
		}
	}
	return "", fmt.Errorf("%w: %q is not %s", ErrInvalidDatetime, s, format)
}
