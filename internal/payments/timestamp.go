package payments

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"dreamboard/internal/domain"
)

// DefaultTimestampTolerance bounds how far a notification timestamp may drift
// from the server clock.
const DefaultTimestampTolerance = 30 * time.Minute

// TimestampPolicy checks notification freshness.
type TimestampPolicy struct {
	Tolerance time.Duration
	Now       func() time.Time
}

var (
	zoneSuffix = regexp.MustCompile(`(Z|[+-]\d{2}:?\d{2})$`)
	digitsOnly = regexp.MustCompile(`^\d+$`)
)

// Check parses v and verifies it falls within the tolerance window.
func (p TimestampPolicy) Check(v any) (time.Time, error) {
	ts, err := ParseTimestamp(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", domain.ErrInvalidTimestamp, err)
	}
	tolerance := p.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTimestampTolerance
	}
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}
	drift := now.Sub(ts)
	if drift < 0 {
		drift = -drift
	}
	if drift > tolerance {
		return ts, fmt.Errorf("%w: drift %s exceeds %s", domain.ErrInvalidTimestamp, drift.Round(time.Second), tolerance)
	}
	return ts, nil
}

// ParseTimestamp accepts epoch seconds or milliseconds (as digits or JSON
// numbers), RFC 3339 strings and zone-less "YYYY-MM-DD HH:MM:SS" values,
// which are read as UTC.
func ParseTimestamp(v any) (time.Time, error) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q is not a number", x)
		}
		return fromEpoch(f), nil
	case float64:
		return fromEpoch(x), nil
	case int64:
		return fromEpoch(float64(x)), nil
	case string:
		return parseTimestampString(strings.TrimSpace(x))
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
}

func fromEpoch(v float64) time.Time {
	if v < 1e12 {
		return time.UnixMilli(int64(v * 1000)).UTC()
	}
	return time.UnixMilli(int64(v)).UTC()
}

func parseTimestampString(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if digitsOnly.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		switch len(s) {
		case 10:
			return time.Unix(n, 0).UTC(), nil
		case 13:
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("timestamp %q has an unsupported digit count", s)
	}
	if !strings.Contains(s, "T") {
		s = strings.Replace(s, " ", "T", 1)
	}
	if !zoneSuffix.MatchString(s) {
		s += "Z"
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999Z0700"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q is not a recognised format", s)
}

// firstValue returns the first non-empty value among keys.
func firstValue(fields map[string]any, keys ...string) any {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

// stringField returns the first string value among keys.
func stringField(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := fields[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
