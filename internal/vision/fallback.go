package vision

import (
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/gradecart/gradecart/internal/errors"
)

// Regex fallback for when the AI provider is unconfigured and the caller
// supplies raw OCR text instead of an image. Much weaker than the provider
// path: one grade list, heuristic item detection.

var (
	schoolPattern  = regexp.MustCompile(`(?i)(.*school|.*academy|.*elementary|.*middle|.*high)`)
	gradePattern   = regexp.MustCompile(`(?i)(kindergarten|grade\s*[k0-9]{1,2}|[0-9]{1,2}(st|nd|rd|th)\s*grade)`)
	teacherPattern = regexp.MustCompile(`([Mm][rs]\.?\s+[A-Z][a-z]+|[Tt]eacher\s*:\s*[A-Z][a-z]+)`)
	yearPattern    = regexp.MustCompile(`20[0-9]{2}(-|/)20[0-9]{2}|20[0-9]{2}`)
	quantityLine   = regexp.MustCompile(`^(\d+)\s+(.+)`)
	bulletLine     = regexp.MustCompile(`^[•\-\*]\s*(.+)`)
)

var supplyTerms = []string{
	"pencil", "pen", "notebook", "folder", "binder", "paper",
	"marker", "crayon", "scissor", "glue", "eraser", "ruler",
	"calculator", "highlighter", "backpack", "box", "tissue",
	"wipe", "sanitizer", "book", "sheet", "divider",
}

// FallbackExtract runs a regex pass over OCR'd text. It returns the same
// negative results as the provider path: ErrNoItemsFound when nothing
// resembling a supply item is present.
func FallbackExtract(text string) (*ExtractionResult, error) {
	result := &ExtractionResult{}

	lines := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	// School name is typically near the top of the document
	for i := 0; i < len(lines) && i < 5; i++ {
		if m := schoolPattern.FindString(lines[i]); m != "" {
			result.SchoolName = strings.TrimSpace(m)
			break
		}
	}

	grade := strings.TrimSpace(gradePattern.FindString(text))
	if m := teacherPattern.FindString(text); m != "" {
		result.TeacherName = strings.TrimSpace(m)
	}
	if m := yearPattern.FindString(text); m != "" {
		result.Year = strings.TrimSpace(m)
	}

	var items []SupplyItem
	for _, line := range lines {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "school supply") ||
			strings.Contains(lower, "grade") ||
			strings.Contains(lower, "teacher") ||
			strings.Contains(lower, "year") ||
			len(line) < 3 {
			continue
		}

		qtyMatch := quantityLine.FindStringSubmatch(line)
		bulletMatch := bulletLine.FindStringSubmatch(line)
		hasTerm := false
		for _, term := range supplyTerms {
			if strings.Contains(lower, term) {
				hasTerm = true
				break
			}
		}
		if qtyMatch == nil && bulletMatch == nil && !hasTerm {
			continue
		}

		name := line
		quantity := 1
		if bulletMatch != nil {
			name = bulletMatch[1]
		}
		if qtyMatch != nil {
			if q, err := strconv.Atoi(qtyMatch[1]); err == nil {
				quantity = q
			}
			name = qtyMatch[2]
		}

		items = append(items, SupplyItem{
			Name:         strings.TrimSpace(name),
			Quantity:     quantity,
			OriginalText: line,
		})
	}

	if len(items) == 0 {
		return nil, apperrors.New(apperrors.ErrNoItemsFound.Code, "no supply items recognized in text")
	}

	result.GradeLists = []GradeList{{Grade: grade, SupplyItems: items}}
	return result, nil
}
