package analytics

import (
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ParseAmount parses a stored payment amount. Missing or malformed amounts count as 0.
func ParseAmount(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}

// topKeys returns up to n keys ordered by descending count, ties broken by key
func topKeys(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// visitStreak counts consecutive UTC days with at least one session, ending
// on the day of the most recent session
func visitStreak(sessions []SessionRecord) int {
	if len(sessions) == 0 {
		return 0
	}

	days := make(map[time.Time]bool, len(sessions))
	var latest time.Time
	for _, s := range sessions {
		day := s.StartedAt.UTC().Truncate(24 * time.Hour)
		days[day] = true
		if day.After(latest) {
			latest = day
		}
	}

	streak := 0
	for day := latest; days[day]; day = day.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

// GetClientIP extracts client IP address from request
func GetClientIP(r *http.Request) string {
	// Try X-Forwarded-For header first (proxy/load balancer)
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		// Take the first IP if multiple
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}

	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	// RemoteAddr includes port, strip it
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// GetUserAgent extracts user agent from request
func GetUserAgent(r *http.Request) string {
	return r.UserAgent()
}
