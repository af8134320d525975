package scan

import (
	"fmt"

	apperrors "github.com/gradecart/gradecart/internal/errors"
	"github.com/gradecart/gradecart/internal/vision"
)

// GradeOption is one selectable sublist presented to the shopper
type GradeOption struct {
	Index     int    `json:"index"`
	Label     string `json:"label"`
	ItemCount int    `json:"itemCount"`
}

// Resolution holds an extraction result while the shopper narrows it down
// to a single grade list. Selecting is a pure read: the same Resolution can
// be queried repeatedly and out-of-range indexes never mutate it.
type Resolution struct {
	result *vision.ExtractionResult
}

// Resolve wraps an extraction result for grade selection
func Resolve(result *vision.ExtractionResult) *Resolution {
	return &Resolution{result: result}
}

// NeedsSelection reports whether the shopper must pick among multiple lists
func (r *Resolution) NeedsSelection() bool {
	return len(r.result.GradeLists) > 1
}

// Result returns the underlying extraction result
func (r *Resolution) Result() *vision.ExtractionResult {
	return r.result
}

// Options lists the selectable grades in document order. Lists whose grade
// label is missing get a positional "List N" label; duplicate labels stay
// independently selectable by index.
func (r *Resolution) Options() []GradeOption {
	options := make([]GradeOption, len(r.result.GradeLists))
	for i, list := range r.result.GradeLists {
		label := list.Grade
		if label == "" {
			label = fmt.Sprintf("List %d", i+1)
		}
		options[i] = GradeOption{
			Index:     i,
			Label:     label,
			ItemCount: list.ItemCount(),
		}
	}
	return options
}

// Select returns the grade list at the given zero-based index
func (r *Resolution) Select(index int) (*vision.GradeList, error) {
	if index < 0 || index >= len(r.result.GradeLists) {
		return nil, apperrors.New(apperrors.ErrGradeOutOfRange.Code,
			fmt.Sprintf("grade index %d out of range (have %d lists)", index, len(r.result.GradeLists)))
	}
	return &r.result.GradeLists[index], nil
}

// Auto returns the single grade list when no selection is needed
func (r *Resolution) Auto() (*vision.GradeList, bool) {
	if len(r.result.GradeLists) != 1 {
		return nil, false
	}
	return &r.result.GradeLists[0], true
}
