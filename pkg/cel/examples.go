package cel

// FilterExpressionExamples are sample operator rules for filtering.rules.
var FilterExpressionExamples = map[string]string{
	"skip_yard_vehicles":    `!vehicle_name.startsWith("YARD")`,
	"only_high_severity":    `source != "safety" || severity in ["high", "critical", ""]`,
	"min_over_limit":        `source != "speeding_interval" || double(details.max_speed_mph) - double(details.speed_limit_mph) >= 20.0`,
	"daytime_only":          `occurred_at.getHours("America/Chicago") >= 5`,
	"require_video_for_red": `!type.contains("red_light") || has_video`,
	"case_insensitive_name": `vehicle_name.lowerAscii() != "test truck"`,
}
