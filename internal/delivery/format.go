package delivery

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"safetyrelay/internal/constants"
	"safetyrelay/pkg/models"
)

// Formatter renders events as HTML-mode chat messages.
type Formatter struct {
	loc *time.Location
}

// NewFormatter falls back to UTC when tz is empty or unknown.
func NewFormatter(tz string) *Formatter {
	loc, err := time.LoadLocation(tz)
	if tz == "" || err != nil {
		loc = time.UTC
	}
	return &Formatter{loc: loc}
}

// Caption is the text attached to a video, capped at the caption limit.
func (f *Formatter) Caption(ev models.UnifiedEvent, dest models.Destination) string {
	return truncate(f.render(ev, dest, ""), constants.MaxCaptionLength)
}

// Text is the standalone message used when no video is sent. note explains
// why, if anything.
func (f *Formatter) Text(ev models.UnifiedEvent, dest models.Destination, note string) string {
	return truncate(f.render(ev, dest, note), constants.MaxMessageLength)
}

func (f *Formatter) render(ev models.UnifiedEvent, dest models.Destination, note string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(PrettyLabel(ev.Type, ev.RawLabel)))

	vehicle := ev.VehicleName
	if vehicle == "" {
		vehicle = ev.AssetID
	}
	if vehicle != "" {
		fmt.Fprintf(&b, "Vehicle: %s\n", html.EscapeString(vehicle))
	}
	if driver := detailString(ev, "driver_name"); driver != "" {
		fmt.Fprintf(&b, "Driver: %s\n", html.EscapeString(driver))
	}

	fmt.Fprintf(&b, "Time: %s", ev.OccurredAt.In(f.loc).Format("2006-01-02 15:04:05 MST"))
	if ev.EndedAt != nil {
		fmt.Fprintf(&b, " (%s)", ev.EndedAt.Sub(ev.OccurredAt).Round(time.Second))
	}
	b.WriteString("\n")

	if speed := speedLine(ev); speed != "" {
		b.WriteString(speed + "\n")
	}
	if loc := locationText(ev); loc != "" {
		fmt.Fprintf(&b, "Location: %s\n", html.EscapeString(loc))
	}
	if note != "" {
		fmt.Fprintf(&b, "<i>%s</i>\n", html.EscapeString(note))
	}
	if dest.Mention != "" {
		b.WriteString(html.EscapeString(dest.Mention) + "\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// PrettyLabel turns "harsh_brake,rolling_stop" into "Harsh Brake, Rolling Stop".
func PrettyLabel(eventType, rawLabel string) string {
	if eventType == "" {
		if rawLabel != "" {
			return rawLabel
		}
		return "Safety Event"
	}
	parts := strings.Split(eventType, ",")
	for i, p := range parts {
		words := strings.Fields(strings.ReplaceAll(p, "_", " "))
		for j, w := range words {
			r, size := utf8.DecodeRuneInString(w)
			words[j] = string(unicode.ToUpper(r)) + w[size:]
		}
		parts[i] = strings.Join(words, " ")
	}
	return strings.Join(parts, ", ")
}

func speedLine(ev models.UnifiedEvent) string {
	peak, hasPeak := detailFloat(ev, "max_speed_mph")
	limit, hasLimit := detailFloat(ev, "speed_limit_mph")
	switch {
	case hasPeak && hasLimit && limit > 0:
		return fmt.Sprintf("Speed: %.0f mph (limit %.0f, +%.0f)", peak, limit, peak-limit)
	case hasPeak && peak > 0:
		return fmt.Sprintf("Speed: %.0f mph", peak)
	}
	return ""
}

func locationText(ev models.UnifiedEvent) string {
	v, ok := ev.Detail("location")
	if !ok {
		return ""
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		if s, ok := v.(string); ok {
			return s
		}
		return ""
	}
	for _, k := range []string{"address", "formattedAddress", "reverseGeo"} {
		switch a := m[k].(type) {
		case string:
			if a != "" {
				return a
			}
		case map[string]interface{}:
			if s, ok := a["formattedLocation"].(string); ok && s != "" {
				return s
			}
		}
	}
	lat, latOK := toFloat(m["latitude"])
	lon, lonOK := toFloat(m["longitude"])
	if latOK && lonOK {
		return fmt.Sprintf("%.5f, %.5f", lat, lon)
	}
	return ""
}

func detailString(ev models.UnifiedEvent, key string) string {
	v, _ := ev.Detail(key)
	s, _ := v.(string)
	return s
}

func detailFloat(ev models.UnifiedEvent, key string) (float64, bool) {
	v, ok := ev.Detail(key)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// truncate cuts s to at most limit runes without splitting an HTML entity.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	out := string(runes[:limit-1])
	if amp := strings.LastIndex(out, "&"); amp > strings.LastIndex(out, ";") {
		out = out[:amp]
	}
	return out + "…"
}
