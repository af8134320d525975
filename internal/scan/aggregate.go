package scan

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/gradecart/gradecart/internal/errors"
	"github.com/gradecart/gradecart/internal/vision"
)

// Extractor is the capability boundary to the AI extraction provider
type Extractor interface {
	Extract(ctx context.Context, imagePayload string) (*vision.ExtractionResult, error)
}

// PageError identifies which page of a multi-page batch failed. Pages are
// numbered from 1 in capture order.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// Aggregator merges per-page extraction results into one logical document
type Aggregator struct {
	extractor Extractor
	logger    *zap.Logger
}

// NewAggregator creates a new multi-page aggregator
func NewAggregator(extractor Extractor, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		extractor: extractor,
		logger:    logger,
	}
}

// Aggregate extracts every page in capture order and merges the results.
//
// Merge rules: schoolName/year/teacherName come from the first page that
// supplies them and are never overwritten; gradeLists are concatenated in
// page order with no cross-page merging of same-named grades. A transport
// or parse failure on any page fails the whole batch with a PageError. A
// page that is semantically empty (not a supply list, or no items on that
// page) contributes nothing but does not fail the batch; if every page is
// empty the aggregate itself is the semantic negative.
func (a *Aggregator) Aggregate(ctx context.Context, pages []string) (*vision.ExtractionResult, error) {
	if len(pages) == 0 {
		return nil, apperrors.New(apperrors.ErrBadRequest.Code, "no pages to process")
	}

	merged := &vision.ExtractionResult{}
	sawNotSupplyList := false

	for i, page := range pages {
		result, err := a.extractor.Extract(ctx, page)
		if err != nil {
			switch apperrors.GetCode(err) {
			case apperrors.ErrNotSupplyList.Code:
				sawNotSupplyList = true
				a.logger.Info("Page is not a supply list, skipping", zap.Int("page", i+1))
				continue
			case apperrors.ErrNoItemsFound.Code:
				a.logger.Info("Page has no supply items, skipping", zap.Int("page", i+1))
				continue
			}
			return nil, &PageError{Page: i + 1, Err: err}
		}

		if merged.SchoolName == "" {
			merged.SchoolName = result.SchoolName
		}
		if merged.Year == "" {
			merged.Year = result.Year
		}
		if merged.TeacherName == "" {
			merged.TeacherName = result.TeacherName
		}
		merged.GradeLists = append(merged.GradeLists, result.GradeLists...)
	}

	if !merged.HasItems() {
		if sawNotSupplyList {
			return nil, apperrors.New(apperrors.ErrNotSupplyList.Code,
				"none of the pages appear to be a school supply list")
		}
		return nil, apperrors.New(apperrors.ErrNoItemsFound.Code,
			"no supply items were found across the scanned pages")
	}

	a.logger.Info("Pages aggregated",
		zap.Int("pages", len(pages)),
		zap.Int("grade_lists", len(merged.GradeLists)),
		zap.Int("items", merged.TotalItems()),
	)

	return merged, nil
}
