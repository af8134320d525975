package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/gradecart/gradecart/internal/errors"
	"github.com/gradecart/gradecart/internal/scan"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   "0.1.0",
		"vision":    s.config.VisionReady(),
		"timestamp": time.Now().Unix(),
	})
}

// respondError maps the error taxonomy onto HTTP statuses. Semantic scan
// negatives are 422 so the client can show a specific message instead of a
// generic failure.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	code := apperrors.GetCode(err)

	status := 500
	switch code {
	case apperrors.ErrBadRequest.Code, apperrors.ErrGradeOutOfRange.Code,
		apperrors.ErrEmptySelection.Code, apperrors.ErrUnmatchedItems.Code:
		status = 400
	case apperrors.ErrNotFound.Code:
		status = 404
	case apperrors.ErrNoActiveScan.Code:
		status = 409
	case apperrors.ErrNotSupplyList.Code, apperrors.ErrNoItemsFound.Code,
		apperrors.ErrUnreadableReply.Code:
		status = 422
	case apperrors.ErrProviderNotReady.Code:
		status = 503
	case apperrors.ErrUnauthorized.Code:
		status = 401
	}

	if status == 500 {
		s.logger.Error("Request failed", zap.String("code", code), zap.Error(err))
	}

	var message string
	if appErr, ok := apperrors.From(err); ok {
		message = appErr.Message
	} else {
		message = err.Error()
	}

	return c.Status(status).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}

// ==================== Scan ====================

func (s *Server) handleScan(c *fiber.Ctx) error {
	var req struct {
		Image string `json:"image"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.Image == "" {
		return c.Status(400).JSON(fiber.Map{"error": "image is required"})
	}

	outcome, err := s.scans.Scan(c.Context(), []string{req.Image})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(outcome)
}

func (s *Server) handleScanPages(c *fiber.Ctx) error {
	var req struct {
		Images []string `json:"images"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if len(req.Images) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "images are required"})
	}

	outcome, err := s.scans.Scan(c.Context(), req.Images)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(outcome)
}

func (s *Server) handleScanText(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	outcome, err := s.scans.ScanText(req.Text)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(outcome)
}

func (s *Server) handleGradeOptions(c *fiber.Ctx) error {
	options, err := s.sessions.PendingOptions()
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"grades": options})
}

func (s *Server) handleGradeSelect(c *fiber.Ctx) error {
	var req struct {
		Index int `json:"index"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	outcome, err := s.scans.SelectGrade(req.Index)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(outcome)
}

// ==================== Items ====================

func (s *Server) handleListItems(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"items":  s.sessions.Items(),
		"school": s.sessions.School(),
	})
}

func (s *Server) handleUpdateItem(c *fiber.Ctx) error {
	id := c.Params("id")

	var patch scan.ItemPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	item, err := s.sessions.UpdateItem(id, patch)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(item)
}

func (s *Server) handleMatchItems(c *fiber.Ctx) error {
	items := s.sessions.Items()
	if len(items) == 0 {
		return s.respondError(c, apperrors.ErrNoActiveScan)
	}

	matched := s.matcher.Match(c.Context(), items)
	s.sessions.SetMatched(matched)
	return c.JSON(fiber.Map{"items": matched})
}

// ==================== Checkout ====================

func (s *Server) handleCheckout(c *fiber.Ctx) error {
	selected := s.sessions.Selected()

	// Run any still-unmatched selections through the catalog first so the
	// checkout flow only ever sees real product ids.
	needsMatching := false
	for _, item := range selected {
		if item.ProductID == 0 {
			needsMatching = true
			break
		}
	}
	if needsMatching {
		s.sessions.SetMatched(s.matcher.Match(c.Context(), s.sessions.Items()))
		selected = s.sessions.Selected()
	}

	result, err := s.checkout.Run(c.Context(), selected)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(result)
}

// ==================== Session ====================

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"school": s.sessions.School(),
		"items":  s.sessions.Items(),
	})
}

func (s *Server) handleResetSession(c *fiber.Ctx) error {
	s.sessions.Reset()
	return c.SendStatus(204)
}

// ==================== History ====================

func (s *Server) handleHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)

	entries, err := s.sessions.History(limit)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"history": entries})
}
