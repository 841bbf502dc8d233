package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ncr-tracker/internal/application/service"
	"github.com/garyjia/ncr-tracker/internal/domain/apperr"
	"github.com/garyjia/ncr-tracker/internal/domain/entity"
	"github.com/garyjia/ncr-tracker/pkg/utils"
)

const dateLayout = "2006-01-02"

// formFields is a request body flattened to strings. A nil value is an
// explicit JSON null.
type formFields map[string]*string

// requestBody is the decoded body of a JSON or multipart request
type requestBody struct {
	fields formFields
	files  map[string][]*multipart.FileHeader
}

func readBody(c *gin.Context) (*requestBody, error) {
	body := &requestBody{fields: formFields{}}

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		form, err := c.MultipartForm()
		if err != nil {
			return nil, apperr.Validation(fmt.Sprintf("invalid multipart body: %v", err))
		}
		for key, values := range form.Value {
			if len(values) > 0 {
				v := values[0]
				body.fields[key] = &v
			}
		}
		body.files = form.File
		return body, nil
	}

	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return body, nil
		}
		return nil, apperr.Validation(fmt.Sprintf("invalid JSON body: %v", err))
	}
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			body.fields[key] = nil
		case string:
			s := v
			body.fields[key] = &s
		case float64:
			s := strconv.FormatFloat(v, 'f', -1, 64)
			body.fields[key] = &s
		case bool:
			s := strconv.FormatBool(v)
			body.fields[key] = &s
		default:
			return nil, apperr.Validation(fmt.Sprintf("field %q must be a scalar", key), key)
		}
	}
	return body, nil
}

// lookup returns the first present key among aliases
func (f formFields) lookup(keys ...string) (value *string, present bool) {
	for _, k := range keys {
		if v, ok := f[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// text returns the sanitized value of the first present alias, or ""
func (f formFields) text(keys ...string) string {
	v, _ := f.lookup(keys...)
	if v == nil {
		return ""
	}
	return utils.SanitizeString(*v)
}

// optionalText is text for partial updates: nil when no alias is present
func (f formFields) optionalText(keys ...string) *string {
	v, ok := f.lookup(keys...)
	if !ok {
		return nil
	}
	s := ""
	if v != nil {
		s = utils.SanitizeString(*v)
	}
	return &s
}

// date parses the first present alias. Empty or null yields nil.
func (f formFields) date(field string, keys ...string) (*time.Time, bool, error) {
	v, ok := f.lookup(keys...)
	if !ok {
		return nil, false, nil
	}
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, true, nil
	}
	t, _, err := parseDate(*v)
	if err != nil {
		return nil, true, apperr.Validation(fmt.Sprintf("%s must be YYYY-MM-DD or RFC3339", field), field)
	}
	return &t, true, nil
}

// parseDate accepts YYYY-MM-DD or RFC3339 and reports whether s was date-only
func parseDate(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}

var (
	departmentKeys  = []string{"department", "responsible_department"}
	areaKeys        = []string{"area", "process_area"}
	sourceKeys      = []string{"source_type", "ncr_source"}
	descriptionKeys = []string{"description", "nonconformity_description"}
	immediateKeys   = []string{"immediate_action", "immediate_correction"}
	reportDateKeys  = []string{"report_date", "date_raised"}
)

func createNCRInput(body *requestBody) (service.CreateNCRInput, error) {
	f := body.fields
	in := service.CreateNCRInput{
		Severity:             f.text("severity"),
		SourceType:           f.text(sourceKeys...),
		NCRType:              f.text("ncr_type"),
		Department:           f.text(departmentKeys...),
		Area:                 f.text(areaKeys...),
		Line:                 f.text("line"),
		ProductName:          f.text("product_name"),
		ProductCode:          f.text("product_code"),
		Description:          f.text(descriptionKeys...),
		RequirementReference: f.text("requirement_reference"),
		ImmediateAction:      f.text(immediateKeys...),
		RootCause:            f.text("root_cause"),
		RootCauseCategory:    f.text("root_cause_category"),
		CorrectiveAction:     f.text("corrective_action"),
		PreventiveAction:     f.text("preventive_action"),
		Remarks:              f.text("remarks"),
		ResponsiblePerson:    f.text("responsible_person"),
	}

	var err error
	if in.ReportDate, _, err = f.date("report_date", reportDateKeys...); err != nil {
		return in, err
	}
	if in.TargetDate, _, err = f.date("target_date", "target_date"); err != nil {
		return in, err
	}

	upload, err := singleUpload(body, "attachment")
	if err != nil {
		return in, err
	}
	in.Attachment = upload
	return in, nil
}

// updateNCRInput maps only client-mutable fields; anything else in the body is ignored
func updateNCRInput(body *requestBody) (service.UpdateNCRInput, error) {
	f := body.fields
	u := entity.NCRUpdate{
		SourceType:           f.optionalText(sourceKeys...),
		NCRType:              f.optionalText("ncr_type"),
		Department:           f.optionalText(departmentKeys...),
		Area:                 f.optionalText(areaKeys...),
		Line:                 f.optionalText("line"),
		ProductName:          f.optionalText("product_name"),
		ProductCode:          f.optionalText("product_code"),
		Description:          f.optionalText(descriptionKeys...),
		RequirementReference: f.optionalText("requirement_reference"),
		ImmediateAction:      f.optionalText(immediateKeys...),
		RootCause:            f.optionalText("root_cause"),
		RootCauseCategory:    f.optionalText("root_cause_category"),
		CorrectiveAction:     f.optionalText("corrective_action"),
		PreventiveAction:     f.optionalText("preventive_action"),
		Remarks:              f.optionalText("remarks"),
		RaisedByName:         f.optionalText("raised_by_name"),
		RaisedByID:           f.optionalText("raised_by_id", "raised_by_employee_id"),
		ResponsiblePerson:    f.optionalText("responsible_person"),
	}

	if raw := f.optionalText("severity"); raw != nil {
		sev, ok := entity.ParseSeverity(*raw)
		if !ok {
			return service.UpdateNCRInput{}, apperr.Validation(
				fmt.Sprintf("invalid severity %q; valid values: Minor, Major, Critical", *raw), "severity")
		}
		u.Severity = &sev
	}

	reportDate, present, err := f.date("report_date", reportDateKeys...)
	if err != nil {
		return service.UpdateNCRInput{}, err
	}
	if present && reportDate != nil {
		u.ReportDate = reportDate
	}

	targetDate, present, err := f.date("target_date", "target_date")
	if err != nil {
		return service.UpdateNCRInput{}, err
	}
	if present {
		if targetDate == nil {
			u.ClearTargetDate = true
		} else {
			u.TargetDate = targetDate
		}
	}

	upload, err := singleUpload(body, "attachment")
	if err != nil {
		return service.UpdateNCRInput{}, err
	}
	return service.UpdateNCRInput{Fields: u, Attachment: upload}, nil
}

func createRejectionInput(body *requestBody) (service.CreateRejectionInput, error) {
	f := body.fields
	in := service.CreateRejectionInput{
		MaterialType:      f.text("material_type", "materialType"),
		MaterialName:      f.text("material_name", "materialName"),
		SupplierName:      f.text("supplier_name", "supplierName"),
		DefectCategory:    f.text("defect_category", "defectCategory"),
		DefectDescription: f.text("defect_description", "defectDescription"),
		Shift:             f.text("shift"),
		ProcessArea:       f.text("process_area", "processArea"),
	}

	if raw := f.text("quantity_rejected", "quantityRejected"); raw != "" {
		q, err := strconv.Atoi(raw)
		if err != nil {
			return in, apperr.Validation("quantity_rejected must be a whole number", "quantity_rejected")
		}
		in.QuantityRejected = q
	}

	uploads, err := readUploads(body.files["images"])
	if err != nil {
		return in, err
	}
	in.Images = uploads
	return in, nil
}

func singleUpload(body *requestBody, field string) (*service.Upload, error) {
	headers := body.files[field]
	if len(headers) == 0 {
		return nil, nil
	}
	uploads, err := readUploads(headers[:1])
	if err != nil {
		return nil, err
	}
	return &uploads[0], nil
}

func readUploads(headers []*multipart.FileHeader) ([]service.Upload, error) {
	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		file, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open upload %q: %w", fh.Filename, err)
		}
		content, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read upload %q: %w", fh.Filename, err)
		}
		uploads = append(uploads, service.Upload{Filename: fh.Filename, Content: content})
	}
	return uploads, nil
}

// listFilter reads the list/export query. Unparseable values are ignored.
func listFilter(c *gin.Context) entity.NCRFilter {
	var f entity.NCRFilter

	f.ReportNumber = strings.ToUpper(strings.TrimSpace(c.Query("report_number")))
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		if strings.EqualFold(raw, entity.ComputedStatusOverdue) {
			f.Overdue = true
		} else if st, ok := entity.ParseStatus(raw); ok {
			f.Status = st
		}
	}
	if sev, ok := entity.ParseSeverity(c.Query("severity")); ok {
		f.Severity = sev
	}

	f.Department = firstQuery(c, departmentKeys...)
	f.SourceType = firstQuery(c, sourceKeys...)
	f.NCRType = firstQuery(c, "ncr_type")
	f.Area = firstQuery(c, areaKeys...)

	if raw := c.Query("from"); raw != "" {
		if t, _, err := parseDate(raw); err == nil {
			f.From = &t
		}
	}
	if raw := c.Query("to"); raw != "" {
		if t, dateOnly, err := parseDate(raw); err == nil {
			if dateOnly {
				t = t.Add(24*time.Hour - time.Nanosecond)
			}
			f.To = &t
		}
	}
	return f
}

func firstQuery(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(c.Query(k)); v != "" {
			return v
		}
	}
	return ""
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id", "id")
	}
	return id, nil
}
