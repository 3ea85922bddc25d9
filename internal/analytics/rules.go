// Package analytics derives vacancy, undesirability, fairness and utilization
// figures from parsed roster grids.
package analytics

import (
	"slices"
	"strings"
	"time"

	"github.com/peninsula-health/rosterctl/internal/models"
)

// Defaults used by DefaultRules.
const (
	DefaultShiftHours      = 10.0
	DefaultFullTimeHours   = 40.0
	DefaultFairnessPenalty = 50.0
	DefaultMaxScore        = 3
	DefaultAdminMarker     = "Admin"
)

// Points per undesirability rule.
const (
	leadershipPoints  = 3
	remoteSitePoints  = 2
	eveningPoints     = 1
	endOfWeekPMPoints = 1
)

// Rules holds the fixed heuristics used to classify shift types.
type Rules struct {
	LeadershipRoles []string
	RemoteSites     []string
	EveningMarkers  []string
	AdminMarker     string
	EndOfWeek       time.Weekday
	ShiftHours      float64
	FullTimeHours   float64
	// FairnessPenalty is the number of fairness-score points lost per unit of
	// fairness ratio above 1.0.
	FairnessPenalty float64
	MaxScore        int
}

// DefaultRules returns the rule set matching the optimizer's shift templates.
func DefaultRules() Rules {
	return Rules{
		LeadershipRoles: []string{"Blue", "Green"},
		RemoteSites:     []string{"Rosebud"},
		EveningMarkers:  []string{"PM", "Evening"},
		AdminMarker:     DefaultAdminMarker,
		EndOfWeek:       time.Friday,
		ShiftHours:      DefaultShiftHours,
		FullTimeHours:   DefaultFullTimeHours,
		FairnessPenalty: DefaultFairnessPenalty,
		MaxScore:        DefaultMaxScore,
	}
}

// ShiftClass is the classification of one shift-type label.
type ShiftClass struct {
	Admin      bool
	Leadership bool
	RemoteSite string
	Evening    bool
}

// Classify splits a label such as "Rosebud Red PM" into words and matches
// each rule against them. Matching is case-insensitive.
func (r Rules) Classify(shiftType string) ShiftClass {
	var c ShiftClass
	if r.AdminMarker != "" && strings.Contains(strings.ToLower(shiftType), strings.ToLower(r.AdminMarker)) {
		c.Admin = true
	}
	for _, word := range strings.Fields(shiftType) {
		if containsFold(r.LeadershipRoles, word) {
			c.Leadership = true
		}
		if c.RemoteSite == "" && containsFold(r.RemoteSites, word) {
			c.RemoteSite = word
		}
		if containsFold(r.EveningMarkers, word) {
			c.Evening = true
		}
	}
	return c
}

// IsClinical reports whether the shift type counts toward clinical coverage.
func (r Rules) IsClinical(shiftType string) bool {
	return !r.Classify(shiftType).Admin
}

// Score is an undesirability score and the reasons that contributed to it.
type Score struct {
	Points  int
	Reasons []string
}

// Score rates how undesirable working shiftType on date is. Rule points are
// summed and clamped to MaxScore. Admin shifts always score zero. date may be
// empty or unparsable, in which case the end-of-week rule never applies.
func (r Rules) Score(shiftType, date string) Score {
	c := r.Classify(shiftType)
	if c.Admin {
		return Score{}
	}
	var s Score
	if c.Leadership {
		s.Points += leadershipPoints
		s.Reasons = append(s.Reasons, "leadership role")
	}
	if c.RemoteSite != "" {
		s.Points += remoteSitePoints
		s.Reasons = append(s.Reasons, "remote site ("+c.RemoteSite+")")
	}
	if c.Evening {
		s.Points += eveningPoints
		s.Reasons = append(s.Reasons, "evening shift")
		if r.isEndOfWeek(date) {
			s.Points += endOfWeekPMPoints
			s.Reasons = append(s.Reasons, "end-of-week evening")
		}
	}
	if r.MaxScore > 0 && s.Points > r.MaxScore {
		s.Points = r.MaxScore
	}
	return s
}

// Urgency tiers a vacant slot: leadership or remote-site evenings are
// critical, other leadership shifts high, everything else medium.
func (r Rules) Urgency(shiftType string) models.Urgency {
	c := r.Classify(shiftType)
	switch {
	case c.Evening && (c.Leadership || c.RemoteSite != ""):
		return models.UrgencyCritical
	case c.Leadership:
		return models.UrgencyHigh
	default:
		return models.UrgencyMedium
	}
}

func (r Rules) isEndOfWeek(date string) bool {
	if date == "" {
		return false
	}
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return false
	}
	return d.Weekday() == r.EndOfWeek
}

func containsFold(list []string, word string) bool {
	return slices.ContainsFunc(list, func(s string) bool {
		return strings.EqualFold(s, word)
	})
}
