package entity

import (
	"fmt"
	"time"
)

// NonConformanceReport is a formal record of a quality deviation
type NonConformanceReport struct {
	ID           int64     `json:"id"`
	ReportNumber string    `json:"report_number"`
	ReportDate   time.Time `json:"report_date"`

	Severity   Severity `json:"severity"`
	SourceType string   `json:"ncr_source"`
	NCRType    string   `json:"ncr_type"`
	Department string   `json:"department"`
	Area       string   `json:"area"`
	Line       string   `json:"line"`

	ProductName string `json:"product_name"`
	ProductCode string `json:"product_code"`

	Description          string `json:"description"`
	RequirementReference string `json:"requirement_reference"`
	ImmediateAction      string `json:"immediate_action"`
	RootCause            string `json:"root_cause"`
	RootCauseCategory    string `json:"root_cause_category"`
	CorrectiveAction     string `json:"corrective_action"`
	PreventiveAction     string `json:"preventive_action"`
	Remarks              string `json:"remarks"`

	RaisedByName      string `json:"raised_by_name"`
	RaisedByID        string `json:"raised_by_id"`
	ResponsiblePerson string `json:"responsible_person"`

	TargetDate  *time.Time `json:"target_date,omitempty"`
	ClosureDate *time.Time `json:"closure_date,omitempty"`

	Status         Status `json:"status"`
	ComputedStatus string `json:"computed_status"`

	AttachmentRef string `json:"attachment_ref,omitempty"`
	CreatedBy     int64  `json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FormatReportNumber renders NCR-<year>-<counter>, zero padded to four
// digits; counters past 9999 widen instead of rolling over.
func FormatReportNumber(year, counter int) string {
	return fmt.Sprintf("NCR-%d-%04d", year, counter)
}

// IsOverdue is true for a non-closed report whose target date has passed
func IsOverdue(status Status, targetDate *time.Time, now time.Time) bool {
	return status != StatusClosed && targetDate != nil && targetDate.Before(now)
}

// ComputeStatus returns "Overdue" when IsOverdue holds, else the persisted status
func ComputeStatus(status Status, targetDate *time.Time, now time.Time) string {
	if IsOverdue(status, targetDate, now) {
		return ComputedStatusOverdue
	}
	return string(status)
}

// WithComputedStatus stamps ComputedStatus relative to now and returns r
func (r *NonConformanceReport) WithComputedStatus(now time.Time) *NonConformanceReport {
	r.ComputedStatus = ComputeStatus(r.Status, r.TargetDate, now)
	return r
}

// Clone returns a deep copy so callers cannot alias stored state
func (r *NonConformanceReport) Clone() *NonConformanceReport {
	c := *r
	if r.TargetDate != nil {
		t := *r.TargetDate
		c.TargetDate = &t
	}
	if r.ClosureDate != nil {
		t := *r.ClosureDate
		c.ClosureDate = &t
	}
	return &c
}

// NCRUpdate holds the client-mutable fields of a report. A nil pointer
// means "not supplied". Identity, report number, creator, status, closure
// date and timestamps have no field here and cannot be changed through it.
type NCRUpdate struct {
	ReportDate *time.Time

	Severity   *Severity
	SourceType *string
	NCRType    *string
	Department *string
	Area       *string
	Line       *string

	ProductName *string
	ProductCode *string

	Description          *string
	RequirementReference *string
	ImmediateAction      *string
	RootCause            *string
	RootCauseCategory    *string
	CorrectiveAction     *string
	PreventiveAction     *string
	Remarks              *string

	RaisedByName      *string
	RaisedByID        *string
	ResponsiblePerson *string

	TargetDate      *time.Time
	ClearTargetDate bool

	AttachmentRef *string
}

// IsEmpty reports whether no allowed field was supplied
func (u *NCRUpdate) IsEmpty() bool {
	return u.ReportDate == nil && u.Severity == nil && u.SourceType == nil &&
		u.NCRType == nil && u.Department == nil && u.Area == nil && u.Line == nil &&
		u.ProductName == nil && u.ProductCode == nil && u.Description == nil &&
		u.RequirementReference == nil && u.ImmediateAction == nil && u.RootCause == nil &&
		u.RootCauseCategory == nil && u.CorrectiveAction == nil && u.PreventiveAction == nil &&
		u.Remarks == nil && u.RaisedByName == nil && u.RaisedByID == nil &&
		u.ResponsiblePerson == nil && u.TargetDate == nil && !u.ClearTargetDate &&
		u.AttachmentRef == nil
}

// ApplyTo copies every supplied field onto r
func (u *NCRUpdate) ApplyTo(r *NonConformanceReport) {
	if u.ReportDate != nil {
		r.ReportDate = *u.ReportDate
	}
	if u.Severity != nil {
		r.Severity = *u.Severity
	}
	setString(&r.SourceType, u.SourceType)
	setString(&r.NCRType, u.NCRType)
	setString(&r.Department, u.Department)
	setString(&r.Area, u.Area)
	setString(&r.Line, u.Line)
	setString(&r.ProductName, u.ProductName)
	setString(&r.ProductCode, u.ProductCode)
	setString(&r.Description, u.Description)
	setString(&r.RequirementReference, u.RequirementReference)
	setString(&r.ImmediateAction, u.ImmediateAction)
	setString(&r.RootCause, u.RootCause)
	setString(&r.RootCauseCategory, u.RootCauseCategory)
	setString(&r.CorrectiveAction, u.CorrectiveAction)
	setString(&r.PreventiveAction, u.PreventiveAction)
	setString(&r.Remarks, u.Remarks)
	setString(&r.RaisedByName, u.RaisedByName)
	setString(&r.RaisedByID, u.RaisedByID)
	setString(&r.ResponsiblePerson, u.ResponsiblePerson)
	setString(&r.AttachmentRef, u.AttachmentRef)

	if u.ClearTargetDate {
		r.TargetDate = nil
	} else if u.TargetDate != nil {
		t := *u.TargetDate
		r.TargetDate = &t
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// NCRFilter narrows a report listing. Zero values mean "no constraint";
// all supplied constraints must hold.
type NCRFilter struct {
	// ReportNumber matches one report exactly
	ReportNumber string

	Status     Status
	Overdue    bool
	Severity   Severity
	Department string
	SourceType string
	NCRType    string

	// Area matches anywhere in the area field, folding ASCII letters only
	// so the memory and SQLite backends agree
	Area string

	// From and To bound report_date inclusively
	From *time.Time
	To   *time.Time

	// Now anchors the Overdue constraint
	Now time.Time
}

// Matches applies the filter to a single report
func (f NCRFilter) Matches(r *NonConformanceReport) bool {
	if f.ReportNumber != "" && r.ReportNumber != f.ReportNumber {
		return false
	}
	if f.Overdue && !IsOverdue(r.Status, r.TargetDate, f.Now) {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Severity != "" && r.Severity != f.Severity {
		return false
	}
	if f.Department != "" && r.Department != f.Department {
		return false
	}
	if f.SourceType != "" && r.SourceType != f.SourceType {
		return false
	}
	if f.NCRType != "" && r.NCRType != f.NCRType {
		return false
	}
	if f.Area != "" && !containsASCIIFold(r.Area, f.Area) {
		return false
	}
	if f.From != nil && r.ReportDate.Before(*f.From) {
		return false
	}
	if f.To != nil && r.ReportDate.After(*f.To) {
		return false
	}
	return true
}
