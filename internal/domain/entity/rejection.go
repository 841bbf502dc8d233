package entity

import "time"

// Rejection records material rejected at inspection
type Rejection struct {
	ID                int64     `json:"id"`
	MaterialType      string    `json:"material_type"`
	MaterialName      string    `json:"material_name"`
	SupplierName      string    `json:"supplier_name"`
	DefectCategory    string    `json:"defect_category"`
	DefectDescription string    `json:"defect_description"`
	QuantityRejected  int       `json:"quantity_rejected"`
	Shift             string    `json:"shift"`
	ProcessArea       string    `json:"process_area"`
	Images            []string  `json:"images"`
	CreatedBy         int64     `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
}

// Clone returns a copy that does not share the Images slice
func (r *Rejection) Clone() *Rejection {
	c := *r
	c.Images = append([]string(nil), r.Images...)
	return &c
}
