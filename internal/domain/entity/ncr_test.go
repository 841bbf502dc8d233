package entity

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatReportNumber(t *testing.T) {
	pattern := regexp.MustCompile(`^NCR-\d{4}-\d{4,}$`)

	tests := []struct {
		year    int
		counter int
		want    string
	}{
		{2025, 1, "NCR-2025-0001"},
		{2025, 42, "NCR-2025-0042"},
		{2026, 9999, "NCR-2026-9999"},
		{2026, 10000, "NCR-2026-10000"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := FormatReportNumber(tt.year, tt.counter)
			assert.Equal(t, tt.want, got)
			assert.Regexp(t, pattern, got)
		})
	}
}

func TestComputeStatus(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	tomorrow := now.AddDate(0, 0, 1)

	tests := []struct {
		name   string
		status Status
		target *time.Time
		want   string
	}{
		{"open past target is overdue", StatusOpen, &yesterday, ComputedStatusOverdue},
		{"in progress past target is overdue", StatusInProgress, &yesterday, ComputedStatusOverdue},
		{"waiting past target is overdue", StatusWaitingForVerification, &yesterday, ComputedStatusOverdue},
		{"closed past target stays closed", StatusClosed, &yesterday, "Closed"},
		{"open future target", StatusOpen, &tomorrow, "Open"},
		{"open without target", StatusOpen, nil, "Open"},
		{"target equal to now is not overdue", StatusOpen, &now, "Open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStatus(tt.status, tt.target, now))
		})
	}
}

func TestParseEnums(t *testing.T) {
	t.Run("status variants", func(t *testing.T) {
		for _, in := range []string{"in progress", "IN_PROGRESS", "In-Progress", " In Progress "} {
			st, ok := ParseStatus(in)
			require.True(t, ok, in)
			assert.Equal(t, StatusInProgress, st)
		}
		_, ok := ParseStatus("Overdue")
		assert.False(t, ok, "Overdue is derived, never a persisted status")
	})

	t.Run("role case is normalized", func(t *testing.T) {
		for _, in := range []string{"admin", "ADMIN", "Admin"} {
			r, ok := ParseRole(in)
			require.True(t, ok)
			assert.Equal(t, RoleAdmin, r)
		}
		roles, invalid := ParseRoles([]string{"manager", "root"})
		assert.Equal(t, []Role{RoleManager}, roles)
		assert.Equal(t, []string{"root"}, invalid)
	})

	t.Run("severity", func(t *testing.T) {
		sv, ok := ParseSeverity("critical")
		require.True(t, ok)
		assert.Equal(t, SeverityCritical, sv)
		_, ok = ParseSeverity("catastrophic")
		assert.False(t, ok)
	})
}

func TestNCRUpdate(t *testing.T) {
	t.Run("empty update", func(t *testing.T) {
		u := NCRUpdate{}
		assert.True(t, u.IsEmpty())
	})

	t.Run("applies supplied fields only", func(t *testing.T) {
		target := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
		r := &NonConformanceReport{
			ID:           7,
			ReportNumber: "NCR-2025-0007",
			Description:  "scratch on housing",
			Department:   "QA",
			CreatedBy:    3,
		}
		dept := "Production"
		u := NCRUpdate{Department: &dept, TargetDate: &target}
		require.False(t, u.IsEmpty())

		u.ApplyTo(r)

		assert.Equal(t, "Production", r.Department)
		assert.Equal(t, "scratch on housing", r.Description)
		require.NotNil(t, r.TargetDate)
		assert.True(t, r.TargetDate.Equal(target))
		assert.Equal(t, int64(7), r.ID)
		assert.Equal(t, "NCR-2025-0007", r.ReportNumber)
		assert.Equal(t, int64(3), r.CreatedBy)
	})

	t.Run("clears target date", func(t *testing.T) {
		target := time.Now()
		r := &NonConformanceReport{TargetDate: &target}
		u := NCRUpdate{ClearTargetDate: true}
		u.ApplyTo(r)
		assert.Nil(t, r.TargetDate)
	})
}

func TestNCRFilter_Matches(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -3)
	r := &NonConformanceReport{
		ReportNumber: "NCR-2025-0007",
		Status:       StatusOpen,
		Severity:     SeverityMajor,
		Department:   "QA",
		SourceType:   "Internal Audit",
		NCRType:      "Process",
		Area:         "Paint Shop Line 2",
		ReportDate:   time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		TargetDate:   &past,
	}
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	early := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter NCRFilter
		want   bool
	}{
		{"empty filter", NCRFilter{}, true},
		{"severity and department", NCRFilter{Severity: SeverityMajor, Department: "QA"}, true},
		{"department mismatch", NCRFilter{Severity: SeverityMajor, Department: "Production"}, false},
		{"area partial case-insensitive", NCRFilter{Area: "paint shop"}, true},
		{"area mismatch", NCRFilter{Area: "assembly"}, false},
		{"area upper-case query", NCRFilter{Area: "PAINT SHOP"}, true},
		{"report number", NCRFilter{ReportNumber: "NCR-2025-0007"}, true},
		{"report number mismatch", NCRFilter{ReportNumber: "NCR-2025-0008"}, false},
		{"inclusive upper bound", NCRFilter{From: &from, To: &to}, true},
		{"before range", NCRFilter{To: &early}, false},
		{"overdue", NCRFilter{Overdue: true, Now: now}, true},
		{"status", NCRFilter{Status: StatusClosed}, false},
		{"source and type", NCRFilter{SourceType: "Internal Audit", NCRType: "Process"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(r))
		})
	}
}

func TestNCRFilter_AreaFoldsASCIIOnly(t *testing.T) {
	r := &NonConformanceReport{Area: "Área de Pintura"}

	assert.True(t, NCRFilter{Area: "DE PINTURA"}.Matches(r))
	assert.True(t, NCRFilter{Area: "Área"}.Matches(r))
	assert.False(t, NCRFilter{Area: "área"}.Matches(r), "non-ASCII letters compare exactly")
}
