package memcache

import (
	"math"
	"strconv"
)

// ServerStats maps server address to metric name to a typed value. Every
// metric except "version" is numeric: an int64 when the value has no
// fractional part, a float64 otherwise. "version" stays a string.
type ServerStats map[string]map[string]any

// normalizeStats converts the collaborator's raw string metrics into typed
// values. Metrics that fail to parse as numbers are kept as strings.
func normalizeStats(raw map[string]map[string]string) ServerStats {
	stats := make(ServerStats, len(raw))
	for addr, metrics := range raw {
		normalized := make(map[string]any, len(metrics))
		for name, value := range metrics {
			normalized[name] = normalizeMetric(name, value)
		}
		stats[addr] = normalized
	}
	return stats
}

func normalizeMetric(name, value string) any {
	if name == "version" {
		return value
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f <= math.MaxInt64 {
		return int64(f)
	}
	return f
}
