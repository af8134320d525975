package vision

// SupplyItem is a single extracted supply line
type SupplyItem struct {
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	OriginalText string `json:"originalText"`
}

// GradeList groups supply items under one grade label. Grade may be empty
// when the document does not name one.
type GradeList struct {
	Grade       string       `json:"grade"`
	SupplyItems []SupplyItem `json:"supplyItems"`
}

// ItemCount returns the number of supply items in the list
func (g *GradeList) ItemCount() int {
	return len(g.SupplyItems)
}

// ExtractionResult is the structured outcome of processing one or more images
type ExtractionResult struct {
	SchoolName  string      `json:"schoolName"`
	Year        string      `json:"year"`
	TeacherName string      `json:"teacherName"`
	GradeLists  []GradeList `json:"gradeLists"`
}

// HasItems reports whether any grade list carries at least one supply item
func (r *ExtractionResult) HasItems() bool {
	for _, g := range r.GradeLists {
		if len(g.SupplyItems) > 0 {
			return true
		}
	}
	return false
}

// TotalItems counts supply items across all grade lists
func (r *ExtractionResult) TotalItems() int {
	total := 0
	for _, g := range r.GradeLists {
		total += len(g.SupplyItems)
	}
	return total
}
