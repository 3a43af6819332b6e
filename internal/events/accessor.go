package events

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"safetyrelay/pkg/models"
)

// firstNonEmpty returns the first candidate that is non-blank after trimming.
func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if s := strings.TrimSpace(c); s != "" {
			return s
		}
	}
	return ""
}

// lookup resolves a dotted path ("vehicle.name") against nested objects.
func lookup(rec models.RawRecord, path string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(rec)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case models.RawRecord:
		return m, true
	}
	return nil, false
}

func stringValue(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	}
	return ""
}

// firstString returns the first non-blank string found at any of the paths,
// in the order given.
func firstString(rec models.RawRecord, paths ...string) string {
	values := make([]string, 0, len(paths))
	for _, p := range paths {
		if v, ok := lookup(rec, p); ok {
			values = append(values, stringValue(v))
		}
	}
	return firstNonEmpty(values...)
}

func firstFloat(rec models.RawRecord, paths ...string) (float64, bool) {
	for _, p := range paths {
		v, ok := lookup(rec, p)
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func firstTime(rec models.RawRecord, paths ...string) (time.Time, bool) {
	for _, p := range paths {
		v, ok := lookup(rec, p)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if ts, err := ParseTime(t); err == nil {
				return ts, true
			}
		case float64:
			return epochToTime(int64(t)), true
		}
	}
	return time.Time{}, false
}

// ParseTime accepts RFC 3339 (with or without fractional seconds) and epoch
// seconds or milliseconds.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) >= 10 {
		return epochToTime(n), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format: %q", s)
}

func epochToTime(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
