package service

import (
	"time"

	"github.com/garyjia/ncr-tracker/internal/application/port"
	"github.com/garyjia/ncr-tracker/internal/domain/entity"
)

// ExportColumns is the fixed column order of every NCR export
var ExportColumns = []port.Column{
	{Key: "report_number", Header: "NCR Number", Width: 18},
	{Key: "report_date", Header: "Date Raised", Width: 12, Kind: port.CellDate},
	{Key: "raised_by_name", Header: "Raised By", Width: 20},
	{Key: "raised_by_id", Header: "Employee ID", Width: 15},
	{Key: "department", Header: "Department", Width: 15},
	{Key: "area", Header: "Process Area", Width: 20},
	{Key: "line", Header: "Line", Width: 12},
	{Key: "ncr_source", Header: "Source Type", Width: 18},
	{Key: "ncr_type", Header: "NCR Type", Width: 15},
	{Key: "product_name", Header: "Product Name", Width: 20},
	{Key: "product_code", Header: "Product Code", Width: 15},
	{Key: "description", Header: "Description", Width: 40},
	{Key: "requirement_reference", Header: "Requirement Ref", Width: 20},
	{Key: "severity", Header: "Severity", Width: 10},
	{Key: "immediate_action", Header: "Immediate Correction", Width: 30},
	{Key: "root_cause", Header: "Root Cause", Width: 30},
	{Key: "root_cause_category", Header: "Root Cause Category", Width: 20},
	{Key: "corrective_action", Header: "Corrective Action", Width: 30},
	{Key: "preventive_action", Header: "Preventive Action", Width: 30},
	{Key: "responsible_person", Header: "Responsible Person", Width: 20},
	{Key: "target_date", Header: "Target Date", Width: 12, Kind: port.CellDate},
	{Key: "closure_date", Header: "Closure Date", Width: 12, Kind: port.CellDate},
	{Key: "status", Header: "Status", Width: 12},
	{Key: "computed_status", Header: "Current Status", Width: 14},
	{Key: "remarks", Header: "Remarks", Width: 30},
	{Key: "created_at", Header: "Created At", Width: 18, Kind: port.CellDateTime},
	{Key: "updated_at", Header: "Updated At", Width: 18, Kind: port.CellDateTime},
}

// ExportRows converts reports into cells in ExportColumns order
func ExportRows(reports []*entity.NonConformanceReport) [][]port.Cell {
	rows := make([][]port.Cell, 0, len(reports))
	for _, r := range reports {
		reportDate := r.ReportDate
		createdAt := r.CreatedAt
		updatedAt := r.UpdatedAt
		rows = append(rows, []port.Cell{
			text(r.ReportNumber),
			timeCell(&reportDate),
			text(r.RaisedByName),
			text(r.RaisedByID),
			text(r.Department),
			text(r.Area),
			text(r.Line),
			text(r.SourceType),
			text(r.NCRType),
			text(r.ProductName),
			text(r.ProductCode),
			text(r.Description),
			text(r.RequirementReference),
			text(string(r.Severity)),
			text(r.ImmediateAction),
			text(r.RootCause),
			text(r.RootCauseCategory),
			text(r.CorrectiveAction),
			text(r.PreventiveAction),
			text(r.ResponsiblePerson),
			timeCell(r.TargetDate),
			timeCell(r.ClosureDate),
			text(string(r.Status)),
			text(r.ComputedStatus),
			text(r.Remarks),
			timeCell(&createdAt),
			timeCell(&updatedAt),
		})
	}
	return rows
}

func text(s string) port.Cell {
	return port.Cell{Text: s}
}

func timeCell(t *time.Time) port.Cell {
	if t == nil || t.IsZero() {
		return port.Cell{}
	}
	return port.Cell{Time: t}
}
