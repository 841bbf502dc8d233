package service

import (
	"strings"
	"time"

	"github.com/garyjia/ncr-tracker/internal/domain/entity"
)

// UnknownGroup is the group key for an empty category value
const UnknownGroup = "Unknown"

// Summary is the dashboard aggregate over every report
type Summary struct {
	Total           int `json:"total"`
	Open            int `json:"open"`
	InProgress      int `json:"in_progress"`
	Waiting         int `json:"waiting_for_verification"`
	Closed          int `json:"closed"`
	Overdue         int `json:"overdue"`
	ClosedThisMonth int `json:"closed_this_month"`

	ByStatus     map[string]int `json:"by_status"`
	BySeverity   map[string]int `json:"by_severity"`
	ByType       map[string]int `json:"by_type"`
	ByDepartment map[string]int `json:"by_department"`
	BySource     map[string]int `json:"by_source"`
	ByArea       map[string]int `json:"by_area"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Summarize aggregates reports as of now. Every grouped map sums to Total.
// "Closed this month" counts closure dates on or after the first instant of
// now's calendar month, in now's location.
func Summarize(reports []*entity.NonConformanceReport, now time.Time) *Summary {
	s := &Summary{
		ByStatus:     make(map[string]int, len(entity.Statuses)),
		BySeverity:   make(map[string]int),
		ByType:       make(map[string]int),
		ByDepartment: make(map[string]int),
		BySource:     make(map[string]int),
		ByArea:       make(map[string]int),
		GeneratedAt:  now,
	}
	for _, st := range entity.Statuses {
		s.ByStatus[string(st)] = 0
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	for _, r := range reports {
		s.Total++

		switch r.Status {
		case entity.StatusOpen:
			s.Open++
		case entity.StatusInProgress:
			s.InProgress++
		case entity.StatusWaitingForVerification:
			s.Waiting++
		case entity.StatusClosed:
			s.Closed++
		}
		s.ByStatus[groupKey(string(r.Status))]++

		if entity.IsOverdue(r.Status, r.TargetDate, now) {
			s.Overdue++
		}
		if r.ClosureDate != nil && !r.ClosureDate.Before(monthStart) {
			s.ClosedThisMonth++
		}

		s.BySeverity[groupKey(string(r.Severity))]++
		s.ByType[groupKey(r.NCRType)]++
		s.ByDepartment[groupKey(r.Department)]++
		s.BySource[groupKey(r.SourceType)]++
		s.ByArea[groupKey(r.Area)]++
	}
	return s
}

func groupKey(v string) string {
	if strings.TrimSpace(v) == "" {
		return UnknownGroup
	}
	return v
}
