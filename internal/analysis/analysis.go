// Package analysis aggregates complaints for the admin dashboard, the
// scheduled statistics and the exported report.
package analysis

import (
	"sort"
	"time"

	"qabulxona/backend/internal/models"
)

// Summary counts complaints by status and section.
type Summary struct {
	Total     int
	ByStatus  map[models.Status]int
	BySection map[string]int
}

// SectionCount is one row of the per-section breakdown.
type SectionCount struct {
	Section string
	Count   int
}

// Summarize aggregates complaints. Every known status is present in ByStatus,
// even with a zero count.
func Summarize(complaints []models.Complaint) Summary {
	s := Summary{
		Total:     len(complaints),
		ByStatus:  make(map[models.Status]int, len(models.Statuses)),
		BySection: make(map[string]int),
	}
	for _, st := range models.Statuses {
		s.ByStatus[st] = 0
	}
	for _, c := range complaints {
		s.ByStatus[c.Status]++
		s.BySection[c.Section]++
	}
	return s
}

// Percent returns the share of status in the total, 0 for an empty set.
func (s Summary) Percent(status models.Status) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.ByStatus[status]) * 100 / float64(s.Total)
}

// Sections returns the per-section counts, largest first, ties by name.
func (s Summary) Sections() []SectionCount {
	out := make([]SectionCount, 0, len(s.BySection))
	for section, n := range s.BySection {
		out = append(out, SectionCount{Section: section, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Section < out[j].Section
	})
	return out
}

// DayBounds returns the start of t's calendar day in loc and the start of the
// next one.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// AgeDays is the number of whole days since the complaint was created.
func AgeDays(c models.Complaint, now time.Time) int {
	if now.Before(c.CreatedAt) {
		return 0
	}
	return int(now.Sub(c.CreatedAt) / (24 * time.Hour))
}

// GroupBySection groups complaints by section; sections are returned sorted.
func GroupBySection(complaints []models.Complaint) ([]string, map[string][]models.Complaint) {
	groups := make(map[string][]models.Complaint)
	for _, c := range complaints {
		section := c.Section
		if section == "" {
			section = "Boshqa"
		}
		groups[section] = append(groups[section], c)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, groups
}
