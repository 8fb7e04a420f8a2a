// Package ranking orders internship postings for the dashboard.
package ranking

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zdunecki/internnav/pkg/api"
)

type Key string

const (
	ByMatch   Key = "match"
	ByStipend Key = "stipend"
	ByCompany Key = "company"
)

// Keys lists the accepted sort keys, default first.
var Keys = []Key{ByMatch, ByStipend, ByCompany}

// ParseKey maps user input to a Key. Empty input means ByMatch.
func ParseKey(s string) (Key, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "match", "matchscore", "score":
		return ByMatch, nil
	case "stipend":
		return ByStipend, nil
	case "company":
		return ByCompany, nil
	}
	return "", fmt.Errorf("unknown sort key %q (want match, stipend or company)", s)
}

// ParseStipend keeps only the digits of s. A stipend with no digits,
// such as "Unpaid", is 0.
func ParseStipend(s string) int64 {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Sort returns a sorted copy of postings. Ties keep their input order.
func Sort(postings []api.Internship, key Key) []api.Internship {
	out := make([]api.Internship, len(postings))
	copy(out, postings)

	var less func(a, b api.Internship) bool
	switch key {
	case ByStipend:
		less = func(a, b api.Internship) bool { return ParseStipend(a.Stipend) > ParseStipend(b.Stipend) }
	case ByCompany:
		less = func(a, b api.Internship) bool { return a.Company < b.Company }
	default:
		less = func(a, b api.Internship) bool { return a.MatchScore > b.MatchScore }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Applications keeps the postings the user has applied to.
func Applications(postings []api.Internship) []api.Internship {
	var out []api.Internship
	for _, p := range postings {
		if strings.TrimSpace(p.ApplicationStatus) != "" {
			out = append(out, p)
		}
	}
	return out
}

// Top is the posting selected by default.
func Top(sorted []api.Internship) (api.Internship, bool) {
	if len(sorted) == 0 {
		return api.Internship{}, false
	}
	return sorted[0], true
}

type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

// ScoreTier buckets a match score for display.
func ScoreTier(score float64) Tier {
	switch {
	case score > 85:
		return TierHigh
	case score > 75:
		return TierMedium
	}
	return TierLow
}
