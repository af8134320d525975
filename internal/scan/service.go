package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/gradecart/gradecart/internal/errors"
	"github.com/gradecart/gradecart/internal/imaging"
	"github.com/gradecart/gradecart/internal/metrics"
	"github.com/gradecart/gradecart/internal/vision"
)

// Outcome is what a scan produces: either an active list of cart
// candidates, or a pending grade selection the shopper must resolve first.
type Outcome struct {
	NeedsSelection bool          `json:"needsSelection"`
	Grades         []GradeOption `json:"grades,omitempty"`
	Items          []CartItem    `json:"items,omitempty"`
	School         SchoolInfo    `json:"school"`
}

// Service runs the scan pipeline: preprocess pages, extract, aggregate,
// resolve grades, normalize into the session.
type Service struct {
	aggregator *Aggregator
	optimizer  *imaging.Optimizer
	sessions   *Manager
	maxPages   int
	logger     *zap.Logger
}

// NewService creates the scan pipeline service
func NewService(aggregator *Aggregator, optimizer *imaging.Optimizer, sessions *Manager, maxPages int, logger *zap.Logger) *Service {
	return &Service{
		aggregator: aggregator,
		optimizer:  optimizer,
		sessions:   sessions,
		maxPages:   maxPages,
		logger:     logger,
	}
}

// Scan processes one or more photographed pages as a single document
func (s *Service) Scan(ctx context.Context, pages []string) (*Outcome, error) {
	if len(pages) == 0 {
		return nil, apperrors.New(apperrors.ErrBadRequest.Code, "no images provided")
	}
	if s.maxPages > 0 && len(pages) > s.maxPages {
		return nil, apperrors.New(apperrors.ErrBadRequest.Code,
			fmt.Sprintf("too many pages: %d (limit %d)", len(pages), s.maxPages))
	}

	start := time.Now()
	payloads := make([]string, len(pages))
	for i, page := range pages {
		payloads[i] = s.optimizer.Optimize(imaging.StripDataURL(page))
	}

	result, err := s.aggregator.Aggregate(ctx, payloads)
	metrics.PagesProcessed.Add(float64(len(pages)))
	metrics.ExtractionSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ScansTotal.WithLabelValues(scanStatus(err)).Inc()
		return nil, err
	}
	metrics.ScansTotal.WithLabelValues("ok").Inc()

	resolution := Resolve(result)
	if list, ok := resolution.Auto(); ok {
		school := SchoolInfo{
			SchoolName:  result.SchoolName,
			Grade:       list.Grade,
			TeacherName: result.TeacherName,
			Year:        result.Year,
		}
		items := Normalize(list)
		s.sessions.Activate(school, items)
		s.logger.Info("Scan complete",
			zap.String("school", school.SchoolName),
			zap.String("grade", school.Grade),
			zap.Int("items", len(items)),
		)
		return &Outcome{Items: items, School: school}, nil
	}

	s.sessions.BeginResolution(resolution)
	s.logger.Info("Scan needs grade selection",
		zap.String("school", result.SchoolName),
		zap.Int("grade_lists", len(result.GradeLists)),
	)
	return &Outcome{
		NeedsSelection: true,
		Grades:         resolution.Options(),
		School: SchoolInfo{
			SchoolName:  result.SchoolName,
			TeacherName: result.TeacherName,
			Year:        result.Year,
		},
	}, nil
}

// ScanText runs the regex fallback over raw OCR text. Weaker than the
// provider path but keeps the pipeline usable without a provider key.
func (s *Service) ScanText(text string) (*Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.New(apperrors.ErrBadRequest.Code, "no text provided")
	}

	result, err := vision.FallbackExtract(text)
	if err != nil {
		metrics.ScansTotal.WithLabelValues(scanStatus(err)).Inc()
		return nil, err
	}
	metrics.ScansTotal.WithLabelValues("ok").Inc()

	// The fallback always produces a single grade list
	list := &result.GradeLists[0]
	school := SchoolInfo{
		SchoolName:  result.SchoolName,
		Grade:       list.Grade,
		TeacherName: result.TeacherName,
		Year:        result.Year,
	}
	items := Normalize(list)
	s.sessions.Activate(school, items)
	s.logger.Info("Text scan complete", zap.Int("items", len(items)))
	return &Outcome{Items: items, School: school}, nil
}

// SelectGrade resolves a pending multi-grade scan
func (s *Service) SelectGrade(index int) (*Outcome, error) {
	items, school, err := s.sessions.SelectPending(index)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Grade selected",
		zap.String("grade", school.Grade),
		zap.Int("items", len(items)),
	)
	return &Outcome{Items: items, School: school}, nil
}

func scanStatus(err error) string {
	switch apperrors.GetCode(err) {
	case apperrors.ErrNotSupplyList.Code:
		return "not_supply_list"
	case apperrors.ErrNoItemsFound.Code:
		return "no_items"
	default:
		return "error"
	}
}
