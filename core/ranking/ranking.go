// Package ranking orders deals for a given student.
package ranking

import (
	"sort"
	"strings"
	"time"
)

const (
	SavedCategoryBoost = 20
	CityMatchBoost     = 15
	RecencyBoost       = 5

	// RecencyWindow is how long after creation a deal still counts as new.
	RecencyWindow = 7 * 24 * time.Hour
)

// Candidate is what the scorer needs to know about a deal.
type Candidate struct {
	Priority     int // admin-assigned base; 0 when unset
	Category     string
	BusinessCity string
	CreatedAt    time.Time
}

// Profile is what the scorer needs to know about the student.
type Profile struct {
	SavedCategories map[string]bool
	CampusCity      string
}

// NewProfile builds a Profile from the categories of the deals the student saved.
func NewProfile(campusCity string, savedCategories ...string) Profile {
	p := Profile{SavedCategories: make(map[string]bool, len(savedCategories)), CampusCity: campusCity}
	for _, c := range savedCategories {
		p.SavedCategories[normalize(c)] = true
	}
	return p
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Score computes base + 20*savedCategory + 15*cityMatch + 5*createdWithinWeek.
func Score(c Candidate, p Profile, now time.Time) int {
	score := c.Priority
	if p.SavedCategories[normalize(c.Category)] {
		score += SavedCategoryBoost
	}
	if city := normalize(p.CampusCity); city != "" && city == normalize(c.BusinessCity) {
		score += CityMatchBoost
	}
	if !c.CreatedAt.IsZero() && !c.CreatedAt.After(now) && now.Sub(c.CreatedAt) <= RecencyWindow {
		score += RecencyBoost
	}
	return score
}

// Rank returns the indices of candidates sorted by descending score.
// Equal scores keep their input order.
func Rank(candidates []Candidate, p Profile, now time.Time) (order []int, scores []int) {
	scores = make([]int, len(candidates))
	order = make([]int, len(candidates))
	for i, c := range candidates {
		scores[i] = Score(c, p, now)
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return scores[order[i]] > scores[order[j]] })
	return order, scores
}
